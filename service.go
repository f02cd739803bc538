package stepflow

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/stepflow/model"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/blob"
	"github.com/viant/stepflow/service/dao"
	ifs "github.com/viant/stepflow/service/dao/instance/fs"
	imemory "github.com/viant/stepflow/service/dao/instance/memory"
	"github.com/viant/stepflow/service/dao/sqlite"
	"github.com/viant/stepflow/service/fanout"
	"github.com/viant/stepflow/service/fetch"
	"github.com/viant/stepflow/service/messaging"
	qfs "github.com/viant/stepflow/service/messaging/fs"
	qmemory "github.com/viant/stepflow/service/messaging/memory"
	"github.com/viant/stepflow/service/notify"
	"github.com/viant/stepflow/service/processor"
	"github.com/viant/stepflow/service/registry"
	"github.com/viant/stepflow/service/runner"
	"github.com/viant/stepflow/service/step/store"
	sfs "github.com/viant/stepflow/service/step/store/fs"
	smemory "github.com/viant/stepflow/service/step/store/memory"
	ssqlite "github.com/viant/stepflow/service/step/store/sqlite"
	"github.com/viant/stepflow/service/subject"
	subfs "github.com/viant/stepflow/service/subject/fs"
	submemory "github.com/viant/stepflow/service/subject/memory"
	subsqlite "github.com/viant/stepflow/service/subject/sqlite"
	"github.com/viant/stepflow/service/subscription"
	"github.com/viant/stepflow/story"
	"github.com/viant/stepflow/tracing"
)

// Service wires the engine and the story workflows.
type Service struct {
	config     *Config
	runtime    *Runtime
	instances  dao.Service[string, instance.Instance]
	steps      store.Store
	state      subject.Store
	queue      messaging.Queue[instance.Ref]
	db         *sql.DB
	transport  notify.Transport
	httpClient *http.Client
	workflows  []*model.Workflow
	listeners  []processor.Listener
}

// New creates a service; stores the options leave unset are built from
// the configuration.
func New(options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig(), runtime: &Runtime{}}
	if err := ret.init(context.Background(), options); err != nil {
		ret.runtime.close()
		return nil, err
	}
	return ret, nil
}

// NewFromConfig creates a service from cfg.
func NewFromConfig(cfg *Config, options ...Option) (*Service, error) {
	return New(append([]Option{WithConfig(cfg)}, options...)...)
}

// Runtime returns the runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	cfg := s.config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Tracing.Enabled {
		if err := tracing.Init(cfg.Tracing.Service, "", cfg.Tracing.Output); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if err := s.ensureBaseSetup(ctx); err != nil {
		return err
	}
	if s.httpClient == nil {
		s.httpClient = http.DefaultClient
	}
	if s.transport == nil {
		s.transport = notify.NewWebhook(
			notify.WithHTTPClient(s.httpClient),
			notify.WithTimeout(cfg.HTTP.NotifyTimeout),
			notify.WithUserAgent(cfg.HTTP.UserAgent),
		)
	}

	rt := s.runtime
	aRunner, err := runner.New(runner.WithInstanceDAO(s.instances), runner.WithStepStore(s.steps), runner.WithConfig(cfg.Runner))
	if err != nil {
		return err
	}
	rt.registry = registry.New(s.instances, s.queue)
	rt.subscriptions = subscription.New(s.db)
	stories, err := story.New(
		story.WithConfig(cfg.Story),
		story.WithFetchClient(fetch.New(
			fetch.WithHTTPClient(s.httpClient),
			fetch.WithUserAgent(cfg.HTTP.UserAgent),
			fetch.WithTimeout(cfg.HTTP.Timeout),
		)),
		story.WithDetector(subject.New(s.state)),
		story.WithBlobStore(blob.New(cfg.Blob.URL, cfg.Blob.PublicBase)),
		story.WithSubscriptions(rt.subscriptions),
		story.WithDispatcher(fanout.New(rt.registry)),
		story.WithNotifier(notify.New(s.transport)),
	)
	if err != nil {
		return err
	}
	for _, workflow := range append(stories.Workflows(), s.workflows...) {
		if err := rt.registry.Register(workflow); err != nil {
			return err
		}
	}
	rt.processor, err = processor.New(
		processor.WithInstanceDAO(s.instances),
		processor.WithMessageQueue(s.queue),
		processor.WithRunner(aRunner),
		processor.WithWorkflows(rt.registry),
		processor.WithConfig(cfg.Processor),
		processor.WithListeners(append([]processor.Listener{rt.registry.Finished}, s.listeners...)...),
	)
	return err
}

func (s *Service) ensureBaseSetup(ctx context.Context) error {
	cfg := s.config
	rt := s.runtime
	var err error
	if s.db == nil {
		if s.db, err = sqlite.Open(cfg.Store.Database); err != nil {
			return err
		}
		rt.closers = append(rt.closers, s.db.Close)
	}
	if s.instances == nil {
		if cfg.Store.Kind == StoreFS || cfg.Store.URL != "" {
			if s.instances, err = ifs.New(ctx, url.Join(cfg.Store.URL, "instances")); err != nil {
				return err
			}
		} else {
			s.instances = imemory.New()
		}
	}
	if s.steps == nil {
		switch cfg.Store.Kind {
		case StoreFS:
			s.steps = sfs.New(url.Join(cfg.Store.URL, "steps"))
		case StoreSQLite:
			s.steps = ssqlite.New(s.db)
		default:
			s.steps = smemory.New()
		}
	}
	if s.state == nil {
		switch cfg.Store.Kind {
		case StoreFS:
			s.state = subfs.New(url.Join(cfg.Store.URL, "state"))
		case StoreSQLite:
			s.state = subsqlite.New(s.db)
		default:
			s.state = submemory.New()
		}
	}
	if s.queue == nil {
		switch cfg.Queue.Kind {
		case StoreFS:
			queueConfig := qfs.DefaultConfig(cfg.Queue.URL)
			queueConfig.MaxRedeliveries = cfg.Queue.MaxRedeliveries
			queueConfig.PollInterval = cfg.Queue.PollInterval
			if s.queue, err = qfs.NewQueue[instance.Ref](ctx, afs.New(), queueConfig); err != nil {
				return err
			}
		default:
			queueConfig := qmemory.DefaultConfig()
			queueConfig.MaxRedeliveries = cfg.Queue.MaxRedeliveries
			queueConfig.RedeliveryDelay = cfg.Queue.RedeliveryDelay
			queue := qmemory.NewQueue[instance.Ref](queueConfig)
			rt.closers = append(rt.closers, func() error {
				queue.Close()
				return nil
			})
			s.queue = queue
		}
	}
	return nil
}
