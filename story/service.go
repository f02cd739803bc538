// Package story implements the weather story workflows: polling offices
// with subscribers, detecting story changes per office and notifying the
// subscribed destinations.
package story

import (
	"context"
	"fmt"

	"github.com/viant/stepflow/model"
	"github.com/viant/stepflow/service/blob"
	"github.com/viant/stepflow/service/fanout"
	"github.com/viant/stepflow/service/fetch"
	"github.com/viant/stepflow/service/notify"
	"github.com/viant/stepflow/service/subject"
	"github.com/viant/stepflow/service/subscription"
)

// Subscriptions is the relational store the workflows read and write.
type Subscriptions interface {
	ActiveOffices(ctx context.Context) ([]subscription.Office, error)
	Destinations(ctx context.Context, officeID int, dev bool) ([]string, error)
	Office(ctx context.Context, callSign string) (*subscription.Office, error)
	Subscribe(ctx context.Context, aSubscription *subscription.Subscription) error
	Unsubscribe(ctx context.Context, scope subscription.Scope, channel string, officeID int) (int64, error)
}

// Service builds the story workflows over their collaborators.
type Service struct {
	config        Config
	client        *fetch.Client
	detector      *subject.Detector
	blobs         *blob.Store
	subscriptions Subscriptions
	dispatcher    *fanout.Service
	notifier      *notify.Service
}

// Option configures the service.
type Option func(*Service)

// WithConfig sets the presentation settings.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithFetchClient sets the page and image client.
func WithFetchClient(client *fetch.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithDetector sets the change detector.
func WithDetector(detector *subject.Detector) Option {
	return func(s *Service) {
		s.detector = detector
	}
}

// WithBlobStore sets the image cache.
func WithBlobStore(blobs *blob.Store) Option {
	return func(s *Service) {
		s.blobs = blobs
	}
}

// WithSubscriptions sets the subscription store.
func WithSubscriptions(subscriptions Subscriptions) Option {
	return func(s *Service) {
		s.subscriptions = subscriptions
	}
}

// WithDispatcher sets the fan-out used to start office instances.
func WithDispatcher(dispatcher *fanout.Service) Option {
	return func(s *Service) {
		s.dispatcher = dispatcher
	}
}

// WithNotifier sets the destination fan-out.
func WithNotifier(notifier *notify.Service) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// New creates the story service.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig()}
	for _, opt := range options {
		opt(s)
	}
	if s.client == nil {
		s.client = fetch.New()
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	switch {
	case s.detector == nil:
		return nil, fmt.Errorf("story: change detector was nil")
	case s.blobs == nil:
		return nil, fmt.Errorf("story: blob store was nil")
	case s.subscriptions == nil:
		return nil, fmt.Errorf("story: subscription store was nil")
	case s.dispatcher == nil:
		return nil, fmt.Errorf("story: dispatcher was nil")
	case s.notifier == nil:
		return nil, fmt.Errorf("story: notifier was nil")
	}
	return s, nil
}

// Workflows returns every story workflow.
func (s *Service) Workflows() []*model.Workflow {
	return []*model.Workflow{
		s.PollWorkflow(),
		s.OfficeWorkflow(),
		s.SubscribeWorkflow(),
		s.UnsubscribeWorkflow(),
	}
}
