package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/model/step"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/step/store"
	"github.com/viant/stepflow/tracing"
)

// Service executes the ordered steps of an instance, checkpointing each
// completed step so a re-run resumes at the first incomplete one.
type Service struct {
	config    Config
	instances dao.Service[string, instance.Instance]
	steps     store.Store

	mu       sync.Mutex
	inflight map[string]struct{}
}

// ErrInFlight is returned by Run when the instance is already being run by
// this runner.
var ErrInFlight = errors.New("runner: instance already in flight")

// New creates a runner.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig(), inflight: make(map[string]struct{})}
	for _, opt := range options {
		opt(s)
	}
	if s.instances == nil {
		return nil, fmt.Errorf("instance DAO is required")
	}
	if s.steps == nil {
		return nil, fmt.Errorf("step store is required")
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	return s, nil
}

// Run executes steps for the instance.  A terminal instance is left
// untouched and its stored status returned.
//
// The returned error is a *fault.RunFailure when the instance failed,
// ErrInFlight when another caller is running it, or a context or instance
// store error when the instance could not make progress; in the latter case
// the instance stays running and a later Run resumes it.
func (s *Service) Run(ctx context.Context, instanceID string, steps []step.Step) (status *instance.Status, err error) {
	if !s.claim(instanceID) {
		return nil, ErrInFlight
	}
	defer s.release(instanceID)

	anInstance, err := s.instances.Load(ctx, instanceID)
	if err != nil {
		return nil, fault.Persistence("load instance", err)
	}
	if anInstance.State.IsTerminal() {
		return anInstance.Status(), nil
	}

	ctx, span := tracing.StartSpan(ctx, "instance "+anInstance.Kind, tracing.KindInternal)
	span.WithAttributes(map[string]string{"instance.id": anInstance.ID, "instance.kind": anInstance.Kind})
	defer func() { tracing.EndSpan(span, err) }()

	if anInstance, err = s.update(ctx, instanceID, (*instance.Instance).Start); err != nil {
		return nil, err
	}
	ctx = instance.WithContext(ctx, anInstance.Clone())
	flow := step.NewFlow(anInstance)

	for i := range steps {
		aStep := &steps[i]
		if anInstance.Cancelled {
			// LastStep stays at the last completed step.
			return s.fail(ctx, instanceID, "", &fault.RunFailure{InstanceID: instanceID, Step: aStep.Name, Err: fault.Cancelled(instanceID)})
		}

		record, err := s.lookup(ctx, flow, aStep)
		if err != nil {
			var failure *fault.RunFailure
			if errors.As(err, &failure) {
				return s.fail(ctx, instanceID, aStep.Name, failure)
			}
			return anInstance.Status(), err
		}
		if record == nil {
			if record, err = s.execute(ctx, flow, aStep); err != nil {
				var failure *fault.RunFailure
				if errors.As(err, &failure) {
					return s.fail(ctx, instanceID, aStep.Name, failure)
				}
				return anInstance.Status(), err
			}
		}
		flow.Add(aStep.Name, record.Result)

		if record.Stop {
			anInstance, err = s.update(ctx, instanceID, func(i *instance.Instance) {
				i.Progress(aStep.Name)
				i.Complete()
			})
			if err != nil {
				return nil, err
			}
			span.Event("stopped at " + aStep.Name)
			return anInstance.Status(), nil
		}
		if anInstance, err = s.update(ctx, instanceID, func(i *instance.Instance) { i.Progress(aStep.Name) }); err != nil {
			return nil, err
		}
	}

	if anInstance, err = s.update(ctx, instanceID, (*instance.Instance).Complete); err != nil {
		return nil, err
	}
	return anInstance.Status(), nil
}

func (s *Service) claim(instanceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[instanceID]; ok {
		return false
	}
	s.inflight[instanceID] = struct{}{}
	return true
}

func (s *Service) release(instanceID string) {
	s.mu.Lock()
	delete(s.inflight, instanceID)
	s.mu.Unlock()
}

// lookup reads the step record with the step's retry budget; a store that
// keeps failing fails the instance.
func (s *Service) lookup(ctx context.Context, flow *step.Flow, aStep *step.Step) (*step.Record, error) {
	for attempts := 1; ; attempts++ {
		record, err := s.steps.Get(ctx, flow.InstanceID, aStep.Name)
		if err == nil {
			return record, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if fault.KindOf(err) == fault.KindUnknown {
			err = fault.Persistence("get step record", err)
		}
		retry, delay := s.config.shouldRetry(aStep.Retry, attempts)
		if !retry {
			return nil, &fault.RunFailure{InstanceID: flow.InstanceID, Step: aStep.Name, Attempts: attempts, Err: err}
		}
		log.Printf("runner: instance %s step %q record lookup %d failed, retrying in %s: %v", flow.InstanceID, aStep.Name, attempts, delay, err)
		if err := clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// execute runs a step body until it succeeds, the budget is exhausted or
// a non-retryable failure occurs.  A nil error comes with a persisted record.
func (s *Service) execute(ctx context.Context, flow *step.Flow, aStep *step.Step) (record *step.Record, err error) {
	ctx, span := tracing.StartSpan(ctx, "step "+aStep.Name, tracing.KindInternal)
	span.WithAttributes(map[string]string{"instance.id": flow.InstanceID, "step.name": aStep.Name})
	defer func() { tracing.EndSpan(span, err) }()

	for attempts := 1; ; attempts++ {
		span.WithInt("step.attempts", attempts)
		record, err = s.attempt(ctx, flow, aStep)
		if err == nil {
			return record, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !fault.Retryable(err) {
			return nil, &fault.RunFailure{InstanceID: flow.InstanceID, Step: aStep.Name, Attempts: attempts, Err: err}
		}
		retry, delay := s.config.shouldRetry(aStep.Retry, attempts)
		if !retry {
			return nil, &fault.RunFailure{InstanceID: flow.InstanceID, Step: aStep.Name, Attempts: attempts, Err: err}
		}
		log.Printf("runner: instance %s step %q attempt %d failed, retrying in %s: %v", flow.InstanceID, aStep.Name, attempts, delay, err)
		if err := clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// attempt invokes the body once under the step timeout and persists its
// result.
func (s *Service) attempt(ctx context.Context, flow *step.Flow, aStep *step.Step) (*step.Record, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.timeout(aStep))
	defer cancel()

	result, err := invoke(attemptCtx, flow, aStep)
	stopped := false
	if err != nil {
		if result, stopped = step.IsStop(err); !stopped {
			return nil, err
		}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fault.Invalid("encode step result", err)
	}
	record := &step.Record{
		InstanceID:  flow.InstanceID,
		Name:        aStep.Name,
		Result:      raw,
		Stop:        stopped,
		CompletedAt: clock.Now(),
	}
	if err := s.steps.Put(ctx, record); err != nil {
		return nil, fault.Persistence("put step record", err)
	}
	return record, nil
}

func invoke(ctx context.Context, flow *step.Flow, aStep *step.Step) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %q panicked: %v", aStep.Name, r)
		}
	}()
	return aStep.Run(ctx, flow)
}

func (s *Service) fail(ctx context.Context, instanceID, stepName string, cause *fault.RunFailure) (*instance.Status, error) {
	anInstance, err := s.update(ctx, instanceID, func(i *instance.Instance) { i.Fail(stepName, cause) })
	if err != nil {
		return nil, err
	}
	log.Printf("runner: instance %s failed: %v", instanceID, cause)
	return anInstance.Status(), cause
}

// update applies fn through the store so concurrent flags such as
// Cancelled are not overwritten.
func (s *Service) update(ctx context.Context, instanceID string, fn func(*instance.Instance)) (*instance.Instance, error) {
	anInstance, err := s.instances.Update(ctx, instanceID, func(i *instance.Instance) error {
		fn(i)
		return nil
	})
	if err != nil {
		return nil, fault.Persistence("update instance", err)
	}
	return anInstance, nil
}
