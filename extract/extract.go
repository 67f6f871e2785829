package extract

import (
	"fmt"
	"log/slog"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/lineage"
	"github.com/c360/docstreams/metric"
	"github.com/c360/docstreams/node"
)

// MatchAll is the stream filter value matching every logical stream.
const MatchAll = "*"

// RunCloser is notified when the upstream run closes, so derived runs can
// close alongside it. Reason is empty for a successful upstream stop and
// carries the failure description otherwise.
type RunCloser interface {
	CloseRun(reason string) error
}

// Config holds configuration for an Extractor.
type Config struct {
	// DocType selects which document kind carries the wanted value.
	DocType document.Kind `json:"doc_type"`

	// Path is the sequence of field names descended inside the payload.
	// An empty path forwards the whole payload field view.
	Path []string `json:"path,omitempty"`

	// Stream filters Descriptors and Records by logical stream name.
	// Empty defaults to MatchAll.
	Stream string `json:"stream,omitempty"`

	// Principal marks this source's run boundaries as authoritative for
	// downstream resynchronization.
	Principal bool `json:"principal,omitempty"`
}

// Extractor is a value source: it consumes documents and emits the values
// addressed by its configuration. It owns a protocol Tracker, so a corrupt
// upstream stream surfaces as a fatal error instead of silent bad output.
type Extractor struct {
	node.Emitter

	cfg     Config
	tracker *document.Tracker

	runStartUID string
	streams     map[string]string // descriptor uid -> logical stream name
	dataKeys    map[string]document.DataKey

	closers []RunCloser

	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *extractorMetrics
}

var (
	_ node.Consumer  = (*Extractor)(nil)
	_ lineage.Source = (*Extractor)(nil)
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Extractor) { x.logger = logger }
}

// WithMetrics registers the extractor's metrics with the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(x *Extractor) { x.registry = registry }
}

// New creates an Extractor and subscribes it to upstream. A nil upstream
// leaves the extractor unwired; callers then push documents with Consume.
func New(name string, upstream node.Producer, cfg Config, opts ...Option) (*Extractor, error) {
	if !cfg.DocType.IsValid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: doc_type %q", errors.ErrInvalidConfig, cfg.DocType),
			"Extractor", "New", "config validation")
	}
	if cfg.Stream == "" {
		cfg.Stream = MatchAll
	}

	var upstreams []node.Node
	if upstream != nil {
		upstreams = []node.Node{upstream}
	}

	x := &Extractor{
		Emitter: node.NewEmitter(name, upstreams...),
		cfg:     cfg,
		tracker: document.NewTracker(),
		streams: make(map[string]string),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}

	if x.registry != nil {
		metrics, err := newExtractorMetrics(x.registry, name)
		if err != nil {
			x.logger.Error("failed to initialize extractor metrics", "component", name, "error", err)
		} else {
			x.metrics = metrics
		}
	}

	if upstream != nil {
		upstream.Subscribe(x)
	}
	return x, nil
}

// Principal implements lineage.Source.
func (x *Extractor) Principal() bool { return x.cfg.Principal }

// RunStartUID implements lineage.Source. It returns the uid of the most
// recent RunStart seen, or "" before any run has opened.
func (x *Extractor) RunStartUID() string { return x.runStartUID }

// CurrentDataKeys returns the data keys declared by the most recent
// matching Descriptor of the current run, or nil when none has arrived.
func (x *Extractor) CurrentDataKeys() map[string]document.DataKey {
	return x.dataKeys
}

// RegisterRunCloser registers c to be notified when the upstream run stops.
// Notification is synchronous and in registration order.
func (x *Extractor) RegisterRunCloser(c RunCloser) {
	x.closers = append(x.closers, c)
}

// Consume implements node.Consumer. It validates the document against the
// protocol state machine, tracks run identity, and emits the addressed
// value when the document passes the kind and stream filters. Protocol
// violations are fatal and propagate to the caller, as are failure Results:
// an extractor translates documents and cannot absorb a computation failure.
func (x *Extractor) Consume(v any) error {
	if r, ok := v.(node.Result); ok && r.Failed() {
		return errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrUpstreamFailure, r.Reason()),
			"Extractor", "Consume", "upstream failure handling")
	}

	doc, ok := v.(document.Document)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: expected document.Document, got %T", errors.ErrInvalidData, v),
			"Extractor", "Consume", "input type check")
	}

	if err := x.tracker.Validate(doc); err != nil {
		x.metrics.recordViolation(x.Name())
		x.logger.Error("document rejected",
			"component", x.Name(), "kind", doc.Kind(), "uid", doc.UID(), "error", err)
		return err
	}
	x.metrics.recordConsumed(x.Name(), doc.Kind())

	switch p := doc.Payload().(type) {
	case *document.RunStart:
		x.runStartUID = p.UIDField
		x.streams = make(map[string]string)
		x.dataKeys = nil
	case *document.Descriptor:
		x.streams[p.UIDField] = p.StreamName()
		if x.streamMatches(p.StreamName()) {
			x.dataKeys = p.DataKeys
		}
	}

	if doc.Kind() == x.cfg.DocType && x.matches(doc) {
		value, err := descend(doc.Payload().Fields(), x.cfg.Path)
		if err != nil {
			return errors.WrapFatal(err, "Extractor", "Consume",
				fmt.Sprintf("path descent in %s %q", doc.Kind(), doc.UID()))
		}
		if err := x.Emit(value); err != nil {
			return err
		}
		x.metrics.recordForwarded(x.Name())
	}

	if stop, ok := doc.Payload().(*document.RunStop); ok {
		return x.notifyClosers(stop)
	}
	return nil
}

func (x *Extractor) notifyClosers(stop *document.RunStop) error {
	reason := ""
	if stop.ExitStatus == document.ExitFailure {
		reason = stop.Reason
		if reason == "" {
			reason = "upstream run failed"
		}
	}
	for _, c := range x.closers {
		if err := c.CloseRun(reason); err != nil {
			return errors.Wrap(err, "Extractor", "Consume", "run close notification")
		}
	}
	return nil
}

// matches applies the stream filter. Run boundary documents always match;
// Descriptors match on their own stream name and Records on the stream of
// their owning descriptor.
func (x *Extractor) matches(doc document.Document) bool {
	switch p := doc.Payload().(type) {
	case *document.Descriptor:
		return x.streamMatches(p.StreamName())
	case *document.Record:
		// The tracker guarantees the descriptor is known.
		return x.streamMatches(x.streams[p.Descriptor])
	default:
		return true
	}
}

func (x *Extractor) streamMatches(name string) bool {
	return x.cfg.Stream == MatchAll || x.cfg.Stream == name
}

// descend walks a field path through the payload's addressable view.
func descend(fields map[string]any, path []string) (any, error) {
	var cur any = fields
	for _, key := range path {
		next, err := lookup(cur, key)
		if err != nil {
			return nil, fmt.Errorf("path %v: %w", path, err)
		}
		cur = next
	}
	return cur, nil
}

func lookup(v any, key string) (any, error) {
	switch m := v.(type) {
	case map[string]any:
		if val, ok := m[key]; ok {
			return val, nil
		}
	case map[string]float64:
		if val, ok := m[key]; ok {
			return val, nil
		}
	case map[string]bool:
		if val, ok := m[key]; ok {
			return val, nil
		}
	case map[string]document.DataKey:
		if val, ok := m[key]; ok {
			return val, nil
		}
	default:
		return nil, fmt.Errorf("%w: cannot descend into %T at %q", errors.ErrInvalidData, v, key)
	}
	return nil, fmt.Errorf("%w: %q", errors.ErrMissingField, key)
}
