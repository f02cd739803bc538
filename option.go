package stepflow

import (
	"database/sql"
	"net/http"

	"github.com/viant/stepflow/model"
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/messaging"
	"github.com/viant/stepflow/service/notify"
	"github.com/viant/stepflow/service/processor"
	"github.com/viant/stepflow/service/step/store"
	"github.com/viant/stepflow/service/subject"
	"github.com/viant/stepflow/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the service.
type Option func(s *Service)

// WithConfig sets the configuration; nil keeps DefaultConfig.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

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

// WithSubjectStore sets the subject state store.
func WithSubjectStore(state subject.Store) Option {
	return func(s *Service) {
		s.state = state
	}
}

// WithQueue sets the work queue.
func WithQueue(queue messaging.Queue[instance.Ref]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithDatabase sets the relational store; the caller keeps ownership.
func WithDatabase(db *sql.DB) Option {
	return func(s *Service) {
		s.db = db
	}
}

// WithTransport replaces the webhook transport of notifications.
func WithTransport(transport notify.Transport) Option {
	return func(s *Service) {
		s.transport = transport
	}
}

// WithHTTPClient sets the client used for fetches and webhooks.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

// WithWorkflows registers workflows next to the story workflows.
func WithWorkflows(workflows ...*model.Workflow) Option {
	return func(s *Service) {
		s.workflows = append(s.workflows, workflows...)
	}
}

// WithListeners adds listeners notified when an instance finishes.
func WithListeners(listeners ...processor.Listener) Option {
	return func(s *Service) {
		s.listeners = append(s.listeners, listeners...)
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom exporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
