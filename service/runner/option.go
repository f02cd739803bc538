package runner

import (
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/step/store"
)

// Option configures the runner.
type Option func(*Service)

// WithInstanceDAO sets the instance store.
func WithInstanceDAO(instances dao.Service[string, instance.Instance]) Option {
	return func(s *Service) {
		s.instances = instances
	}
}

// WithStepStore sets the step record store.
func WithStepStore(steps store.Store) Option {
	return func(s *Service) {
		s.steps = steps
	}
}

// WithConfig sets the configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithMaxAttempts overrides the default attempt budget.
func WithMaxAttempts(attempts int) Option {
	return func(s *Service) {
		s.config.MaxAttempts = attempts
	}
}
