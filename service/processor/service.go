package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/model"
	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/messaging"
	"github.com/viant/stepflow/service/runner"
	"github.com/viant/stepflow/tracing"
)

// Config represents processor configuration.
type Config struct {
	// WorkerCount is the number of instances executed concurrently.
	WorkerCount int `json:"workerCount" yaml:"workerCount" env:"WORKERS"`
	// ConsumeBackoff is the pause after a failed Consume.
	ConsumeBackoff time.Duration `json:"consumeBackoff" yaml:"consumeBackoff" env:"CONSUME_BACKOFF"`
}

// DefaultConfig returns the default processor configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount:    4,
		ConsumeBackoff: 100 * time.Millisecond,
	}
}

// Workflows resolves a workflow by kind.
type Workflows interface {
	Workflow(kind string) (*model.Workflow, bool)
}

// Listener is notified when an instance reaches a terminal state.
type Listener func(status *instance.Status)

// Service runs queued instances.
type Service struct {
	config    Config
	instances dao.Service[string, instance.Instance]
	queue     messaging.Queue[instance.Ref]
	runner    *runner.Service
	workflows Workflows
	listeners []Listener

	mu       sync.Mutex
	workers  []*worker
	workerWg sync.WaitGroup
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New creates a processor.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig()}
	for _, opt := range options {
		opt(s)
	}
	if s.queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if s.runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if s.instances == nil {
		return nil, fmt.Errorf("instance DAO is required")
	}
	if s.workflows == nil {
		return nil, fmt.Errorf("workflows are required")
	}
	if s.config.WorkerCount <= 0 {
		s.config.WorkerCount = DefaultConfig().WorkerCount
	}
	return s, nil
}

// Start launches the worker goroutines.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.workers) > 0 {
		return fmt.Errorf("processor already started")
	}
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{id: i, service: s, ctx: workerCtx, cancelFn: cancel}
		s.workers = append(s.workers, w)
		s.workerWg.Add(1)
		go w.run()
	}
	return nil
}

func (w *worker) run() {
	defer w.service.workerWg.Done()
	for {
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("worker %d: consume failed: %v", w.id, err)
			if clock.Sleep(w.ctx, w.service.config.ConsumeBackoff) != nil {
				return
			}
			continue
		}
		if msg == nil {
			continue
		}
		if pErr := w.service.processMessage(w.ctx, msg); pErr != nil {
			log.Printf("worker %d: failed to process message: %v", w.id, pErr)
		}
	}
}

// processMessage runs one instance and settles its message.  Messages for
// instances that could not reach a terminal state are nacked for
// redelivery.
func (s *Service) processMessage(ctx context.Context, message messaging.Message[instance.Ref]) error {
	ref := message.T()
	ctx, span := tracing.StartSpan(ctx, "processor.run "+ref.Kind, tracing.KindConsumer)
	span.WithAttributes(map[string]string{"instance.id": ref.ID, "instance.kind": ref.Kind})

	status, err := s.run(ctx, ref)
	tracing.EndSpan(span, err)
	if status != nil && status.State.IsTerminal() {
		s.notify(status)
		return message.Ack()
	}
	if errors.Is(err, dao.ErrNotFound) {
		log.Printf("processor: dropping reference to unknown instance %s", ref.ID)
		return message.Ack()
	}
	if errors.Is(err, runner.ErrInFlight) {
		log.Printf("processor: dropping duplicate reference to running instance %s", ref.ID)
		return message.Ack()
	}
	if nErr := message.Nack(err); nErr != nil {
		return fmt.Errorf("%w, and failed to nack: %v", err, nErr)
	}
	return err
}

func (s *Service) run(ctx context.Context, ref *instance.Ref) (*instance.Status, error) {
	workflow, ok := s.workflows.Workflow(ref.Kind)
	if !ok {
		return s.reject(ctx, ref, fault.Invalid("resolve workflow", fmt.Errorf("unknown workflow kind %q", ref.Kind)))
	}
	return s.runner.Run(ctx, ref.ID, workflow.Steps)
}

// reject fails an instance that cannot run at all.
func (s *Service) reject(ctx context.Context, ref *instance.Ref, cause error) (*instance.Status, error) {
	anInstance, err := s.instances.Update(ctx, ref.ID, func(i *instance.Instance) error {
		i.Fail("", cause)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return anInstance.Status(), cause
}

func (s *Service) notify(status *instance.Status) {
	for _, listener := range s.listeners {
		listener(status)
	}
}

// Shutdown stops the workers and waits for in-flight instances to yield.
func (s *Service) Shutdown() {
	s.mu.Lock()
	workers := s.workers
	s.workers = nil
	s.mu.Unlock()
	for _, w := range workers {
		w.cancelFn()
	}
	s.workerWg.Wait()
}
