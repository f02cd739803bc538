// Package registry creates instances, hands them to the workers and answers
// status queries.  Creation is asynchronous: Create persists a pending
// instance and publishes a reference on the work queue.
package registry

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/viant/stepflow/internal/idgen"
	"github.com/viant/stepflow/model"
	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/messaging"
	"github.com/viant/stepflow/tracing"
)

// Service is the instance registry.
type Service struct {
	instances dao.Service[string, instance.Instance]
	queue     messaging.Queue[instance.Ref]

	mux       sync.RWMutex
	workflows map[string]*model.Workflow

	waitMux sync.Mutex
	waiters map[string][]chan *instance.Status

	// queued holds instances this registry published that have not yet
	// finished.
	queuedMux sync.Mutex
	queued    map[string]struct{}
}

// New creates a registry.
func New(instances dao.Service[string, instance.Instance], queue messaging.Queue[instance.Ref]) *Service {
	return &Service{
		instances: instances,
		queue:     queue,
		workflows: make(map[string]*model.Workflow),
		waiters:   make(map[string][]chan *instance.Status),
		queued:    make(map[string]struct{}),
	}
}

// Register adds a workflow; kinds are unique.
func (s *Service) Register(workflow *model.Workflow) error {
	if workflow == nil {
		return fmt.Errorf("workflow was nil")
	}
	if issues := workflow.Validate(); len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			msgs = append(msgs, issue.Error())
		}
		return fmt.Errorf("invalid workflow %s: %s", workflow.Kind, strings.Join(msgs, "; "))
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.workflows[workflow.Kind]; ok {
		return fmt.Errorf("workflow %s already registered", workflow.Kind)
	}
	s.workflows[workflow.Kind] = workflow
	return nil
}

// Workflow returns a registered workflow.
func (s *Service) Workflow(kind string) (*model.Workflow, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	workflow, ok := s.workflows[kind]
	return workflow, ok
}

// Kinds returns the registered workflow kinds.
func (s *Service) Kinds() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ret := make([]string, 0, len(s.workflows))
	for kind := range s.workflows {
		ret = append(ret, kind)
	}
	sort.Strings(ret)
	return ret
}

// Create persists a pending instance of kind and queues it for execution.
// When ctx carries a running instance it is recorded as the parent.
func (s *Service) Create(ctx context.Context, kind string, params instance.Parameters) (anInstance *instance.Instance, err error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Create "+kind, tracing.KindProducer)
	defer func() { tracing.EndSpan(span, err) }()

	workflow, ok := s.Workflow(kind)
	if !ok {
		return nil, fault.Invalid("create instance", fmt.Errorf("unknown workflow kind %q", kind))
	}
	if err := workflow.ValidateParameters(params); err != nil {
		return nil, fault.Invalid("create "+kind+" instance", err)
	}
	anInstance = instance.New(idgen.For(kind), kind, params)
	if parent := instance.FromContext(ctx); parent != nil {
		anInstance.ParentID = parent.ID
	}
	span.WithAttributes(map[string]string{"instance.id": anInstance.ID})
	if err := s.instances.Save(ctx, anInstance); err != nil {
		return nil, fault.Persistence("save instance", err)
	}
	if err := s.publish(ctx, anInstance); err != nil {
		return nil, err
	}
	return anInstance.Clone(), nil
}

// Get returns the instance; a missing id yields dao.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*instance.Instance, error) {
	return s.instances.Load(ctx, id)
}

// Status returns the operator view of an instance.
func (s *Service) Status(ctx context.Context, id string) (*instance.Status, error) {
	anInstance, err := s.instances.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return anInstance.Status(), nil
}

// List returns instances matching the State/Kind parameters.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	return s.instances.List(ctx, parameters...)
}

// Cancel flags the instance; the runner refuses to start further steps.
// Cancelling a terminal instance is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) error {
	_, err := s.instances.Update(ctx, id, func(anInstance *instance.Instance) error {
		if !anInstance.State.IsTerminal() {
			anInstance.Cancelled = true
		}
		return nil
	})
	return err
}

// Recover re-queues instances left pending or running by a previous
// process and returns how many were queued.  Instances this registry
// already queued are skipped, and a durable queue is trusted to still hold
// the references of a previous process.
func (s *Service) Recover(ctx context.Context) (int, error) {
	if messaging.IsDurable(s.queue) {
		return 0, nil
	}
	unfinished, err := s.instances.List(ctx, dao.NewParameter("State", string(instance.StatePending), string(instance.StateRunning)))
	if err != nil {
		return 0, fault.Persistence("list instances", err)
	}
	count := 0
	for _, anInstance := range unfinished {
		if s.isQueued(anInstance.ID) {
			continue
		}
		if err := s.publish(ctx, anInstance); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		log.Printf("registry: re-queued %d unfinished instance(s)", count)
	}
	return count, nil
}

func (s *Service) publish(ctx context.Context, anInstance *instance.Instance) error {
	s.queuedMux.Lock()
	s.queued[anInstance.ID] = struct{}{}
	s.queuedMux.Unlock()
	if err := s.queue.Publish(ctx, anInstance.Ref()); err != nil {
		s.unqueue(anInstance.ID)
		return fault.Persistence("queue instance", err)
	}
	return nil
}

func (s *Service) isQueued(id string) bool {
	s.queuedMux.Lock()
	defer s.queuedMux.Unlock()
	_, ok := s.queued[id]
	return ok
}

func (s *Service) unqueue(id string) {
	s.queuedMux.Lock()
	delete(s.queued, id)
	s.queuedMux.Unlock()
}

// Wait blocks until the instance is terminal or ctx is done.
func (s *Service) Wait(ctx context.Context, id string) (*instance.Status, error) {
	ch := make(chan *instance.Status, 1)
	s.waitMux.Lock()
	s.waiters[id] = append(s.waiters[id], ch)
	s.waitMux.Unlock()
	defer s.removeWaiter(id, ch)

	status, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if status.State.IsTerminal() {
		return status, nil
	}
	select {
	case status := <-ch:
		return status, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Finished wakes up waiters of a terminal instance.
func (s *Service) Finished(status *instance.Status) {
	s.unqueue(status.ID)
	s.waitMux.Lock()
	waiters := s.waiters[status.ID]
	delete(s.waiters, status.ID)
	s.waitMux.Unlock()
	for _, ch := range waiters {
		select {
		case ch <- status:
		default:
		}
	}
}

func (s *Service) removeWaiter(id string, ch chan *instance.Status) {
	s.waitMux.Lock()
	defer s.waitMux.Unlock()
	waiters := s.waiters[id]
	for i, candidate := range waiters {
		if candidate == ch {
			s.waiters[id] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(s.waiters[id]) == 0 {
		delete(s.waiters, id)
	}
}
