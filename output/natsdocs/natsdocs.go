// Package natsdocs provides a pass-through publisher node that mirrors the
// document stream onto NATS. Documents are published under
// "<subject>.<kind>" so subscribers can pick individual kinds or the whole
// stream, and are always propagated downstream unchanged: transport trouble
// is logged and counted, never allowed to corrupt the live stream.
package natsdocs

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/metric"
	"github.com/c360/docstreams/natsclient"
	"github.com/c360/docstreams/node"
)

// Config holds configuration for a Publisher.
type Config struct {
	// Subject is the NATS subject prefix; the document kind is appended.
	Subject string `json:"subject"`
}

// Publisher publishes every document flowing through it and passes the
// document on untouched.
type Publisher struct {
	node.Emitter

	client  *natsclient.Client
	subject string

	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *publisherMetrics
}

var _ node.Consumer = (*Publisher)(nil)

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics registers the publisher's metrics with the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Publisher) { p.registry = registry }
}

// New creates a Publisher and subscribes it to upstream. A nil upstream
// leaves the publisher unwired.
func New(name string, upstream node.Producer, client *natsclient.Client, cfg Config, opts ...Option) (*Publisher, error) {
	if client == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil NATS client", errors.ErrInvalidConfig),
			"Publisher", "New", "config validation")
	}
	if cfg.Subject == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty subject", errors.ErrMissingConfig),
			"Publisher", "New", "config validation")
	}

	var upstreams []node.Node
	if upstream != nil {
		upstreams = []node.Node{upstream}
	}

	p := &Publisher{
		Emitter: node.NewEmitter(name, upstreams...),
		client:  client,
		subject: cfg.Subject,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.registry != nil {
		metrics, err := newPublisherMetrics(p.registry, name)
		if err != nil {
			p.logger.Error("failed to initialize publisher metrics", "component", name, "error", err)
		} else {
			p.metrics = metrics
		}
	}

	if upstream != nil {
		upstream.Subscribe(p)
	}
	return p, nil
}

// Consume implements node.Consumer.
func (p *Publisher) Consume(v any) error {
	doc, ok := v.(document.Document)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: expected document.Document, got %T", errors.ErrInvalidData, v),
			"Publisher", "Consume", "input type check")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapInvalid(err, "Publisher", "Consume", "document marshalling")
	}

	subject := fmt.Sprintf("%s.%s", p.subject, doc.Kind())
	if err := p.client.Publish(subject, data); err != nil {
		p.metrics.recordPublishError(p.Name())
		p.logger.Error("document publish failed",
			"component", p.Name(), "subject", subject, "uid", doc.UID(), "error", err)
	} else {
		p.metrics.recordPublished(p.Name(), doc.Kind())
	}

	return p.Emit(doc)
}
