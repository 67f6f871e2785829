package assemble

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sort"

	"github.com/google/uuid"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/extract"
	"github.com/c360/docstreams/lineage"
	"github.com/c360/docstreams/metric"
	"github.com/c360/docstreams/node"
	"github.com/c360/docstreams/pkg/timestamp"
)

// Config holds configuration for an Assembler.
type Config struct {
	// Fields names the output Record fields, one per slot of the incoming
	// value tuple, in tuple order.
	Fields []string `json:"fields"`

	// DataKeys optionally declares the output schema explicitly. When nil
	// the schema is inferred from the first value tuple of each run.
	DataKeys map[string]document.DataKey `json:"data_keys,omitempty"`

	// Metadata is merged into every emitted RunStart.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// schemaDeclarer is the optional source capability consulted when inferring
// the output schema: sources declaring conflicting upstream schemas cannot
// be combined into one derived stream.
type schemaDeclarer interface {
	CurrentDataKeys() map[string]document.DataKey
}

// closerRegistrar is the optional source capability for run-close
// notification.
type closerRegistrar interface {
	RegisterRunCloser(extract.RunCloser)
}

// Assembler consumes value tuples and emits tagged documents. It owns the
// derived run's identity and sequencing state; propagation is
// single-threaded, so no locking is needed.
type Assembler struct {
	node.Emitter

	cfg        Config
	graph      *lineage.Graph
	principals []lineage.Source

	runStartUID   string
	descriptorUID string
	seq           map[string]int    // descriptor uid -> next seq_num
	lastSnapshot  map[string]string // principal source id -> run start uid

	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *assemblerMetrics
}

var (
	_ node.Consumer     = (*Assembler)(nil)
	_ extract.RunCloser = (*Assembler)(nil)
)

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// WithMetrics registers the assembler's metrics with the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(a *Assembler) { a.registry = registry }
}

// New creates an Assembler, subscribes it to upstream, walks the node graph
// backward to discover its sources, and registers itself for run-close
// notification with every source that supports it.
func New(name string, upstream node.Producer, cfg Config, opts ...Option) (*Assembler, error) {
	if len(cfg.Fields) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no output fields", errors.ErrInvalidConfig),
			"Assembler", "New", "config validation")
	}
	if upstream == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil upstream", errors.ErrInvalidConfig),
			"Assembler", "New", "config validation")
	}

	a := &Assembler{
		Emitter: node.NewEmitter(name, upstream),
		cfg:     cfg,
		seq:     make(map[string]int),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	upstream.Subscribe(a)

	a.graph = lineage.Build(a)
	a.principals = a.graph.Principals()
	if len(a.principals) == 0 {
		// Without an explicit principal, every source governs resync.
		a.principals = a.graph.Sources()
	}
	if len(a.principals) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no value sources reachable from %q", errors.ErrInvalidConfig, name),
			"Assembler", "New", "lineage walk")
	}

	for _, s := range a.graph.Sources() {
		if r, ok := s.(closerRegistrar); ok {
			r.RegisterRunCloser(a)
		}
	}

	if a.registry != nil {
		metrics, err := newAssemblerMetrics(a.registry, name)
		if err != nil {
			a.logger.Error("failed to initialize assembler metrics", "component", name, "error", err)
		} else {
			a.metrics = metrics
		}
	}

	return a, nil
}

// Graph returns the discovered lineage graph.
func (a *Assembler) Graph() *lineage.Graph { return a.graph }

// RunStartUID returns the uid of the currently open derived run, or ""
// when none is open.
func (a *Assembler) RunStartUID() string { return a.runStartUID }

// Consume implements node.Consumer. Failure Results close the current run
// with a failure RunStop; value tuples open, resynchronize, and extend the
// derived run as the principal sources' identity dictates.
func (a *Assembler) Consume(v any) error {
	if r, ok := v.(node.Result); ok {
		if r.Failed() {
			return a.failRun(r.Reason())
		}
		v = r.Value()
	}

	values, ok := v.([]any)
	if !ok {
		values = []any{v}
	}

	for _, val := range values {
		if r, ok := val.(node.Result); ok && r.Failed() {
			return a.failRun(r.Reason())
		}
	}
	if err := checkAligned(values); err != nil {
		return err
	}

	if len(values) != len(a.cfg.Fields) {
		return errors.WrapFatal(
			fmt.Errorf("%w: got %d values for %d fields",
				errors.ErrInvalidData, len(values), len(a.cfg.Fields)),
			"Assembler", "Consume", "tuple arity check")
	}

	snapshot := a.snapshotPrincipals()
	switch {
	case a.runStartUID == "":
		if err := a.openRun(snapshot, values); err != nil {
			return err
		}
	case !maps.Equal(snapshot, a.lastSnapshot):
		if err := a.resync(snapshot, values); err != nil {
			return err
		}
	}

	return a.emitRecord(values)
}

// CloseRun implements extract.RunCloser. A non-empty reason closes the run
// as a failure; otherwise the run closes successfully. Closing with no open
// run is a no-op.
func (a *Assembler) CloseRun(reason string) error {
	if a.runStartUID == "" {
		return nil
	}
	if reason != "" {
		return a.failRun(reason)
	}
	if err := a.emitStop(document.ExitSuccess, ""); err != nil {
		return err
	}
	a.clearRun()
	return nil
}

// failRun closes the current run with a failure RunStop. A failure with no
// open run is logged and dropped: there is nothing to close.
func (a *Assembler) failRun(reason string) error {
	if a.runStartUID == "" {
		a.logger.Warn("failure with no open run",
			"component", a.Name(), "reason", reason)
		return nil
	}
	if err := a.emitStop(document.ExitFailure, reason); err != nil {
		return err
	}
	a.clearRun()
	return nil
}

// resync closes the current run successfully and opens a fresh one bound
// to the new principal snapshot. The schema is resolved before anything is
// emitted, so a mismatch aborts with the old run still open.
func (a *Assembler) resync(snapshot map[string]string, values []any) error {
	if _, err := a.resolveDataKeys(values); err != nil {
		return err
	}
	if err := a.emitStop(document.ExitSuccess, ""); err != nil {
		return err
	}
	a.clearRun()
	a.metrics.recordResync(a.Name())
	a.logger.Info("resynchronized to new upstream run", "component", a.Name())
	return a.openRun(snapshot, values)
}

// openRun emits the RunStart and Descriptor for a new derived run.
func (a *Assembler) openRun(snapshot map[string]string, values []any) error {
	keys, err := a.resolveDataKeys(values)
	if err != nil {
		return err
	}

	start := &document.RunStart{
		UIDField:   uuid.New().String(),
		Time:       timestamp.Now(),
		Parents:    parentRuns(snapshot),
		Provenance: a.provenance(snapshot),
		Metadata:   a.cfg.Metadata,
	}
	if err := a.emit(document.New(start)); err != nil {
		return err
	}

	desc := &document.Descriptor{
		UIDField: uuid.New().String(),
		Time:     timestamp.Now(),
		RunStart: start.UIDField,
		Name:     document.DefaultStream,
		DataKeys: keys,
	}
	if err := a.emit(document.New(desc)); err != nil {
		return err
	}

	a.runStartUID = start.UIDField
	a.descriptorUID = desc.UIDField
	a.seq[desc.UIDField] = 0
	a.lastSnapshot = snapshot
	a.metrics.recordRunOpened(a.Name())
	return nil
}

func (a *Assembler) emitRecord(values []any) error {
	now := timestamp.Now()
	data := make(map[string]any, len(values))
	timestamps := make(map[string]float64, len(values))
	filled := make(map[string]bool, len(values))
	for i, field := range a.cfg.Fields {
		data[field] = values[i]
		timestamps[field] = now
		filled[field] = true
	}

	rec := &document.Record{
		UIDField:   uuid.New().String(),
		Time:       now,
		Descriptor: a.descriptorUID,
		Data:       data,
		Timestamps: timestamps,
		Filled:     filled,
		SeqNum:     a.seq[a.descriptorUID],
	}
	if err := a.emit(document.New(rec)); err != nil {
		return err
	}
	a.seq[a.descriptorUID]++
	return nil
}

func (a *Assembler) emitStop(exitStatus, reason string) error {
	stop := &document.RunStop{
		UIDField:   uuid.New().String(),
		Time:       timestamp.Now(),
		RunStart:   a.runStartUID,
		ExitStatus: exitStatus,
		Reason:     reason,
	}
	if err := a.emit(document.New(stop)); err != nil {
		return err
	}
	a.metrics.recordRunClosed(a.Name(), exitStatus)
	return nil
}

func (a *Assembler) emit(doc document.Document) error {
	if err := a.Emit(doc); err != nil {
		return err
	}
	a.metrics.recordEmitted(a.Name(), doc.Kind())
	return nil
}

// clearRun drops the closed run's identity, including the superseded
// descriptor's sequence counter: stale counters would otherwise accumulate
// across resyncs for the life of the assembler.
func (a *Assembler) clearRun() {
	delete(a.seq, a.descriptorUID)
	a.runStartUID = ""
	a.descriptorUID = ""
	a.lastSnapshot = nil
}

func (a *Assembler) snapshotPrincipals() map[string]string {
	snap := make(map[string]string, len(a.principals))
	for _, s := range a.principals {
		snap[s.ID()] = s.RunStartUID()
	}
	return snap
}

// provenance records how the derived run was produced: the serialized
// lineage graph and the parent run of every principal source.
func (a *Assembler) provenance(snapshot map[string]string) map[string]any {
	parents := make(map[string]any, len(snapshot))
	for _, s := range a.principals {
		parents[s.Name()] = snapshot[s.ID()]
	}
	return map[string]any{
		"graph":   a.graph.Serialize(),
		"parents": parents,
	}
}

// resolveDataKeys returns the output schema. Explicit configuration wins;
// otherwise sources' declared schemas are checked for agreement and the
// schema is inferred from the value tuple.
func (a *Assembler) resolveDataKeys(values []any) (map[string]document.DataKey, error) {
	if a.cfg.DataKeys != nil {
		return a.cfg.DataKeys, nil
	}

	var declared map[string]document.DataKey
	for _, s := range a.graph.Sources() {
		d, ok := s.(schemaDeclarer)
		if !ok {
			continue
		}
		keys := d.CurrentDataKeys()
		if keys == nil {
			continue
		}
		if declared == nil {
			declared = keys
			continue
		}
		if !document.DataKeysEqual(declared, keys) {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: sources declare conflicting schemas", errors.ErrSchemaMismatch),
				"Assembler", "Consume", "schema agreement check")
		}
	}

	keys := make(map[string]document.DataKey, len(values))
	for i, field := range a.cfg.Fields {
		keys[field] = inferDataKey(values[i])
	}
	return keys, nil
}

// parentRuns returns the sorted, deduplicated run uids of the snapshot.
func parentRuns(snapshot map[string]string) []string {
	seen := make(map[string]bool, len(snapshot))
	var out []string
	for _, run := range snapshot {
		if run == "" || seen[run] {
			continue
		}
		seen[run] = true
		out = append(out, run)
	}
	sort.Strings(out)
	return out
}

// checkAligned rejects tuples mixing documents of different kinds: zipped
// branches that drifted out of phase must not be silently combined.
func checkAligned(values []any) error {
	kind := document.Kind("")
	for _, v := range values {
		doc, ok := v.(document.Document)
		if !ok {
			continue
		}
		if kind == "" {
			kind = doc.Kind()
			continue
		}
		if doc.Kind() != kind {
			return errors.WrapFatal(
				fmt.Errorf("%w: tuple mixes %s and %s documents",
					errors.ErrMisalignedStreams, kind, doc.Kind()),
				"Assembler", "Consume", "tuple alignment check")
		}
	}
	return nil
}

// inferDataKey derives a data key from a sample value.
func inferDataKey(v any) document.DataKey {
	key := document.DataKey{Source: "analysis", Dtype: inferDtype(v)}
	rv := reflect.ValueOf(v)
	if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		key.Shape = []int{rv.Len()}
	}
	return key
}

func inferDtype(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "number"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
