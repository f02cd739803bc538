package runner

import (
	"fmt"
	"math"
	"time"

	"github.com/viant/stepflow/model/step"
)

// Config controls retries and timeouts of step bodies.
type Config struct {
	// MaxAttempts counts the first attempt.
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts" env:"MAX_ATTEMPTS"`
	RetryDelay  time.Duration `json:"retryDelay" yaml:"retryDelay" env:"RETRY_DELAY"`
	Multiplier  float64       `json:"multiplier" yaml:"multiplier" env:"MULTIPLIER"`
	MaxDelay    time.Duration `json:"maxDelay" yaml:"maxDelay" env:"MAX_DELAY"`
	// StepTimeout bounds every attempt of a step body.
	StepTimeout time.Duration `json:"stepTimeout" yaml:"stepTimeout" env:"STEP_TIMEOUT"`
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 4,
		RetryDelay:  time.Second,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		StepTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("maxAttempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RetryDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}
	if c.StepTimeout <= 0 {
		return fmt.Errorf("stepTimeout must be positive")
	}
	return nil
}

// shouldRetry returns whether another attempt is allowed after attempts
// failures, and the delay before it.
func (c *Config) shouldRetry(retry *step.Retry, attempts int) (bool, time.Duration) {
	maxAttempts := c.MaxAttempts
	baseDelay := c.RetryDelay
	multiplier := c.Multiplier
	maxDelay := c.MaxDelay
	if retry != nil {
		if retry.MaxAttempts > 0 {
			maxAttempts = retry.MaxAttempts
		}
		if retry.Delay > 0 {
			baseDelay = retry.Delay
		}
		if retry.Multiplier > 0 {
			multiplier = retry.Multiplier
		}
		if retry.MaxDelay > 0 {
			maxDelay = retry.MaxDelay
		}
	}
	if attempts >= maxAttempts {
		return false, 0
	}
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(baseDelay) * math.Pow(multiplier, float64(attempts-1))
	if maxDelay > 0 && time.Duration(delay) > maxDelay {
		delay = float64(maxDelay)
	}
	return true, time.Duration(delay)
}

func (c *Config) timeout(s *step.Step) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return c.StepTimeout
}
