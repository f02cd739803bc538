package processor

import (
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/messaging"
	"github.com/viant/stepflow/service/runner"
)

// Option configures the processor.
type Option func(*Service)

// WithInstanceDAO sets the instance store.
func WithInstanceDAO(instances dao.Service[string, instance.Instance]) Option {
	return func(s *Service) {
		s.instances = instances
	}
}

// WithMessageQueue sets the queue workers consume from.
func WithMessageQueue(queue messaging.Queue[instance.Ref]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithRunner sets the durable runner.
func WithRunner(runner *runner.Service) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// WithWorkflows sets the workflow resolver.
func WithWorkflows(workflows Workflows) Option {
	return func(s *Service) {
		s.workflows = workflows
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithListeners registers callbacks invoked when an instance reaches a
// terminal state.
func WithListeners(fns ...Listener) Option {
	return func(s *Service) {
		s.listeners = append(s.listeners, fns...)
	}
}

// WithConfig sets the configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}
