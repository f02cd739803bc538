package stepflow

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/processor"
	"github.com/viant/stepflow/service/registry"
	"github.com/viant/stepflow/service/subscription"
	"github.com/viant/stepflow/story"
)

// Runtime is the control surface of a running engine.
type Runtime struct {
	registry      *registry.Service
	processor     *processor.Service
	subscriptions *subscription.Store
	closers       []func() error
	closeOnce     sync.Once
}

// Start launches the workers and re-queues instances a previous process
// left unfinished.  A duplicate reference is harmless: the runner refuses
// to run an instance twice at once.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.processor.Start(ctx); err != nil {
		return err
	}
	if _, err := r.registry.Recover(ctx); err != nil {
		log.Printf("stepflow: failed to recover instances: %v", err)
	}
	return nil
}

// Shutdown stops the workers and releases the stores.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.processor != nil {
		r.processor.Shutdown()
	}
	return r.close()
}

func (r *Runtime) close() error {
	var err error
	r.closeOnce.Do(func() {
		for i := len(r.closers) - 1; i >= 0; i-- {
			err = errors.Join(err, r.closers[i]())
		}
	})
	return err
}

// Create queues a new instance of kind.
func (r *Runtime) Create(ctx context.Context, kind string, params instance.Parameters) (*instance.Instance, error) {
	return r.registry.Create(ctx, kind, params)
}

// Invoke queues a poll of every subscribed office; dev runs bypass change
// detection and notify dev destinations only.
func (r *Runtime) Invoke(ctx context.Context, dev bool) (*instance.Instance, error) {
	return r.registry.Create(ctx, story.KindPoll, instance.Parameters{"dev": dev})
}

// Status returns the operator view of an instance.
func (r *Runtime) Status(ctx context.Context, id string) (*instance.Status, error) {
	return r.registry.Status(ctx, id)
}

// Instance returns an instance.
func (r *Runtime) Instance(ctx context.Context, id string) (*instance.Instance, error) {
	return r.registry.Get(ctx, id)
}

// Instances lists instances matching parameters.
func (r *Runtime) Instances(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	return r.registry.List(ctx, parameters...)
}

// Cancel stops an instance before its next step.
func (r *Runtime) Cancel(ctx context.Context, id string) error {
	return r.registry.Cancel(ctx, id)
}

// Wait blocks until the instance finishes or ctx is done.
func (r *Runtime) Wait(ctx context.Context, id string) (*instance.Status, error) {
	return r.registry.Wait(ctx, id)
}

// Kinds returns the registered workflow kinds.
func (r *Runtime) Kinds() []string {
	return r.registry.Kinds()
}

// Subscriptions returns the subscription store.
func (r *Runtime) Subscriptions() *subscription.Store {
	return r.subscriptions
}
