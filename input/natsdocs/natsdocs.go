// Package natsdocs provides a document source fed by a NATS subject. Each
// message is decoded from the document wire format and pushed into the node
// graph; malformed messages are counted and dropped so one bad publisher
// cannot wedge the pipeline.
package natsdocs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/metric"
	"github.com/c360/docstreams/natsclient"
	"github.com/c360/docstreams/node"
)

// Config holds configuration for a Source.
type Config struct {
	// Subject is the NATS subject carrying wire-format documents.
	Subject string `json:"subject"`
}

// Source receives documents from NATS and emits them into the node graph.
type Source struct {
	node.Emitter

	client  *natsclient.Client
	subject string

	mu  sync.Mutex
	sub *nats.Subscription

	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *sourceMetrics
}

var _ node.Producer = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// WithMetrics registers the source's metrics with the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Source) { s.registry = registry }
}

// New creates an unstarted Source.
func New(name string, client *natsclient.Client, cfg Config, opts ...Option) (*Source, error) {
	if client == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil NATS client", errors.ErrInvalidConfig),
			"Source", "New", "config validation")
	}
	if cfg.Subject == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty subject", errors.ErrMissingConfig),
			"Source", "New", "config validation")
	}

	s := &Source{
		Emitter: node.NewEmitter(name),
		client:  client,
		subject: cfg.Subject,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry != nil {
		metrics, err := newSourceMetrics(s.registry, name)
		if err != nil {
			s.logger.Error("failed to initialize source metrics", "component", name, "error", err)
		} else {
			s.metrics = metrics
		}
	}
	return s, nil
}

// Start subscribes to the configured subject.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Source", "Start", "lifecycle check")
	}

	sub, err := s.client.Subscribe(s.subject, s.handle)
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.Info("document source started", "component", s.Name(), "subject", s.subject)
	return nil
}

// Stop unsubscribes from the subject.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.sub = nil
	if err != nil {
		return errors.WrapTransient(err, "Source", "Stop", "unsubscribe")
	}
	return nil
}

func (s *Source) handle(msg *nats.Msg) {
	var doc document.Document
	if err := json.Unmarshal(msg.Data, &doc); err != nil {
		s.metrics.recordDecodeError(s.Name())
		s.logger.Error("document decode failed",
			"component", s.Name(), "subject", msg.Subject, "error", err)
		return
	}
	s.metrics.recordReceived(s.Name(), doc.Kind())

	if err := s.Emit(doc); err != nil {
		s.metrics.recordPropagationError(s.Name())
		s.logger.Error("document propagation failed",
			"component", s.Name(), "kind", doc.Kind(), "uid", doc.UID(),
			"fatal", errors.IsFatal(err), "error", err)
	}
}
