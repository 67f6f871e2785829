package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/metric"
	"github.com/c360/docstreams/node"
)

// SinkConfig holds configuration for a SinkNode.
type SinkConfig struct {
	// Externals maps Record field names to their blob-offload
	// configuration. Values of these fields are written to blob storage in
	// the persisted copy and replaced by their references; the propagated
	// document keeps the original values.
	Externals map[string]ExternalField
}

// SinkNode is a pass-through node that persists every document flowing by.
// Persistence operates on a deep copy, so downstream consumers always see
// the pristine document regardless of external-field rewriting. Persistence
// failures are logged, never propagated: storage trouble must not corrupt
// the live stream.
type SinkNode struct {
	node.Emitter

	sink      Sink
	externals map[string]ExternalField
	writers   map[string]BlobWriter // field -> writer for the current run
	runUID    string

	ctx      context.Context
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *sinkMetrics
}

var _ node.Consumer = (*SinkNode)(nil)

// Option configures a SinkNode.
type Option func(*SinkNode)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sn *SinkNode) { sn.logger = logger }
}

// WithMetrics registers the sink node's metrics with the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(sn *SinkNode) { sn.registry = registry }
}

// WithContext sets the context passed to Persist calls.
func WithContext(ctx context.Context) Option {
	return func(sn *SinkNode) { sn.ctx = ctx }
}

// NewSinkNode creates a SinkNode over sink and subscribes it to upstream.
// A nil upstream leaves the node unwired.
func NewSinkNode(name string, upstream node.Producer, sink Sink, cfg SinkConfig, opts ...Option) (*SinkNode, error) {
	if sink == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil sink", errors.ErrInvalidConfig),
			"SinkNode", "NewSinkNode", "config validation")
	}
	for field, ext := range cfg.Externals {
		if ext.Factory == nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: external field %q has no writer factory", errors.ErrInvalidConfig, field),
				"SinkNode", "NewSinkNode", "config validation")
		}
	}

	var upstreams []node.Node
	if upstream != nil {
		upstreams = []node.Node{upstream}
	}

	sn := &SinkNode{
		Emitter:   node.NewEmitter(name, upstreams...),
		sink:      sink,
		externals: cfg.Externals,
		writers:   make(map[string]BlobWriter),
		ctx:       context.Background(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(sn)
	}

	if sn.registry != nil {
		metrics, err := newSinkMetrics(sn.registry, name)
		if err != nil {
			sn.logger.Error("failed to initialize sink metrics", "component", name, "error", err)
		} else {
			sn.metrics = metrics
		}
	}

	if upstream != nil {
		upstream.Subscribe(sn)
	}
	return sn, nil
}

// Consume implements node.Consumer.
func (sn *SinkNode) Consume(v any) error {
	doc, ok := v.(document.Document)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: expected document.Document, got %T", errors.ErrInvalidData, v),
			"SinkNode", "Consume", "input type check")
	}

	persisted := doc.Clone()
	switch p := persisted.Payload().(type) {
	case *document.RunStart:
		sn.closeWriters()
		sn.runUID = p.UIDField
	case *document.Descriptor:
		sn.markExternalKeys(p)
	case *document.Record:
		sn.offloadValues(p)
	}

	if err := sn.sink.Persist(sn.ctx, persisted); err != nil {
		sn.metrics.recordPersistFailure(sn.Name())
		sn.logger.Error("document persistence failed",
			"component", sn.Name(), "kind", doc.Kind(), "uid", doc.UID(), "error", err)
	} else {
		sn.metrics.recordPersisted(sn.Name(), doc.Kind())
	}

	if _, ok := persisted.Payload().(*document.RunStop); ok {
		sn.closeWriters()
	}

	return sn.Emit(doc)
}

// markExternalKeys stamps the medium marker onto every offloaded field's
// data key in the persisted descriptor.
func (sn *SinkNode) markExternalKeys(p *document.Descriptor) {
	for field, ext := range sn.externals {
		key, ok := p.DataKeys[field]
		if !ok {
			continue
		}
		key.External = ext.Medium
		p.DataKeys[field] = key
	}
}

// offloadValues writes each external field's value to blob storage and
// replaces it by its reference, clearing the filled flag. A failed write
// leaves the original value in place.
func (sn *SinkNode) offloadValues(p *document.Record) {
	for field := range sn.externals {
		value, ok := p.Data[field]
		if !ok {
			continue
		}

		writer, err := sn.writer(field)
		if err != nil {
			sn.logger.Error("blob writer unavailable",
				"component", sn.Name(), "field", field, "error", err)
			continue
		}

		ref, err := writer.Write(value)
		if err != nil {
			sn.metrics.recordPersistFailure(sn.Name())
			sn.logger.Error("blob write failed",
				"component", sn.Name(), "field", field, "record", p.UIDField, "error", err)
			continue
		}

		p.Data[field] = ref
		if p.Filled != nil {
			p.Filled[field] = false
		}
		sn.metrics.recordBlobWritten(sn.Name(), field)
	}
}

func (sn *SinkNode) writer(field string) (BlobWriter, error) {
	if w, ok := sn.writers[field]; ok {
		return w, nil
	}
	w, err := sn.externals[field].Factory(sn.runUID, field)
	if err != nil {
		return nil, err
	}
	sn.writers[field] = w
	return w, nil
}

func (sn *SinkNode) closeWriters() {
	for field, w := range sn.writers {
		if err := w.Close(); err != nil {
			sn.logger.Error("blob writer close failed",
				"component", sn.Name(), "field", field, "error", err)
		}
	}
	sn.writers = make(map[string]BlobWriter)
}
