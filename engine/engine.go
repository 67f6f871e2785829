package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/docstreams/assemble"
	"github.com/c360/docstreams/config"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/extract"
	inputnats "github.com/c360/docstreams/input/natsdocs"
	"github.com/c360/docstreams/input/wsdocs"
	"github.com/c360/docstreams/metric"
	"github.com/c360/docstreams/natsclient"
	"github.com/c360/docstreams/node"
	outputnats "github.com/c360/docstreams/output/natsdocs"
	"github.com/c360/docstreams/storage"
	"github.com/c360/docstreams/storage/filestore"
	"github.com/c360/docstreams/storage/objectstore"
)

// Engine runs the configured pipelines over a shared NATS connection,
// storage backend, and metrics registry.
type Engine struct {
	cfg    *config.Config
	client *natsclient.Client

	store         storage.Store
	writerFactory storage.WriterFactory
	medium        string

	pipelines     []*Pipeline
	metricsServer *metric.Server

	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// Pipeline is one wired translation pipeline. The input feeds the
// extractors, the assembler derives the output run, and the sink and
// publisher hang off the derived stream.
type Pipeline struct {
	name      string
	input     node.Producer
	assembler *assemble.Assembler
	sink      *storage.SinkNode
	publisher *outputnats.Publisher

	start func() error
	stop  func(ctx context.Context) error
}

// Name returns the pipeline's configured name.
func (p *Pipeline) Name() string { return p.name }

// Assembler returns the pipeline's assembler.
func (p *Pipeline) Assembler() *assemble.Assembler { return p.assembler }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics registers all component metrics with the given registry and
// enables the scrape endpoint.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(e *Engine) { e.registry = registry }
}

// New creates an unstarted Engine. The client must be connected before
// Start when the configuration uses NATS inputs or the objectstore backend.
func New(cfg *config.Config, client *natsclient.Client, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil config", errors.ErrInvalidConfig),
			"Engine", "New", "config validation")
	}
	if client == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil NATS client", errors.ErrInvalidConfig),
			"Engine", "New", "config validation")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start opens the storage backend, wires every configured pipeline, starts
// the inputs, and brings up the metrics endpoint.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.setup(ctx); err != nil {
		return err
	}

	for _, pl := range e.pipelines {
		if err := pl.start(); err != nil {
			return errors.Wrap(err, "Engine", "Start", fmt.Sprintf("start pipeline %q", pl.name))
		}
		e.logger.Info("pipeline started", "pipeline", pl.name)
	}

	if e.registry != nil && e.cfg.Metrics.Port > 0 {
		e.metricsServer = metric.NewServer(e.cfg.Metrics.Port, e.cfg.Metrics.Path, e.registry)
		go func() {
			if err := e.metricsServer.Start(); err != nil {
				e.logger.Error("metrics server failed", "error", err)
			}
		}()
		e.logger.Info("metrics endpoint up", "address", e.metricsServer.Address())
	}
	return nil
}

// Stop stops the inputs and the metrics endpoint. Runs left open by a dead
// input are failed so downstream consumers see a stop.
func (e *Engine) Stop(ctx context.Context) error {
	var firstErr error
	for _, pl := range e.pipelines {
		if err := pl.stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := pl.assembler.CloseRun("engine shutdown"); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.metricsServer != nil {
		if err := e.metricsServer.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// setup opens the storage backend and builds the pipelines without starting
// any inputs.
func (e *Engine) setup(ctx context.Context) error {
	if err := e.openStore(ctx); err != nil {
		return err
	}

	e.pipelines = e.pipelines[:0]
	for _, pc := range e.cfg.Pipelines {
		pl, err := e.buildPipeline(ctx, pc)
		if err != nil {
			return errors.Wrap(err, "Engine", "setup", fmt.Sprintf("build pipeline %q", pc.Name))
		}
		e.pipelines = append(e.pipelines, pl)
	}
	return nil
}

func (e *Engine) openStore(ctx context.Context) error {
	switch e.cfg.Storage.Backend {
	case config.BackendFile:
		store, err := filestore.New(e.cfg.Storage.Root)
		if err != nil {
			return err
		}
		e.store = store
		e.writerFactory = filestore.WriterFactory(e.cfg.Storage.Root)
		e.medium = filestore.Medium

	case config.BackendObjectStore:
		js, err := e.client.JetStream()
		if err != nil {
			return err
		}
		store, err := objectstore.New(ctx, js, e.cfg.Storage.Bucket)
		if err != nil {
			return err
		}
		e.store = store
		e.writerFactory = objectstore.WriterFactory(ctx, store)
		e.medium = objectstore.Medium

	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown storage backend %q", errors.ErrInvalidConfig, e.cfg.Storage.Backend),
			"Engine", "openStore", "backend selection")
	}
	return nil
}

func (e *Engine) buildPipeline(ctx context.Context, pc config.PipelineConfig) (*Pipeline, error) {
	pl := &Pipeline{name: pc.Name}

	if err := e.buildInput(ctx, pc, pl); err != nil {
		return nil, err
	}

	producers := make([]node.Producer, 0, len(pc.Sources))
	for _, sc := range pc.Sources {
		x, err := extract.New(sc.Name, pl.input, extract.Config{
			DocType:   sc.DocType,
			Path:      sc.Path,
			Stream:    sc.Stream,
			Principal: sc.Principal,
		}, extract.WithLogger(e.logger), extract.WithMetrics(e.registry))
		if err != nil {
			return nil, err
		}
		producers = append(producers, x)
	}

	upstream := producers[0]
	if len(producers) > 1 {
		upstream = node.Zip(pc.Name+"-zip", producers...)
	}

	asm, err := assemble.New(pc.Name+"-assembler", upstream, assemble.Config{
		Fields:   pc.Assembler.Fields,
		Metadata: pc.Assembler.Metadata,
	}, assemble.WithLogger(e.logger), assemble.WithMetrics(e.registry))
	if err != nil {
		return nil, err
	}
	pl.assembler = asm

	sink, err := storage.NewSinkNode(pc.Name+"-sink", asm,
		storage.NewStoreSink(e.store),
		storage.SinkConfig{Externals: e.externals(pc.Externals)},
		storage.WithLogger(e.logger),
		storage.WithMetrics(e.registry),
		storage.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	pl.sink = sink

	pub, err := outputnats.New(pc.Name+"-publisher", sink, e.client,
		outputnats.Config{Subject: pc.OutputSubject},
		outputnats.WithLogger(e.logger), outputnats.WithMetrics(e.registry))
	if err != nil {
		return nil, err
	}
	pl.publisher = pub

	return pl, nil
}

func (e *Engine) buildInput(_ context.Context, pc config.PipelineConfig, pl *Pipeline) error {
	switch pc.Input.Type {
	case "nats":
		src, err := inputnats.New(pc.Name+"-input", e.client,
			inputnats.Config{Subject: pc.Input.Subject},
			inputnats.WithLogger(e.logger), inputnats.WithMetrics(e.registry))
		if err != nil {
			return err
		}
		pl.input = src
		pl.start = src.Start
		pl.stop = func(context.Context) error { return src.Stop() }

	case "websocket":
		src, err := wsdocs.New(pc.Name+"-input", wsdocs.Config{
			Addr: pc.Input.Addr,
			Path: pc.Input.Path,
		}, wsdocs.WithLogger(e.logger))
		if err != nil {
			return err
		}
		pl.input = src
		pl.start = src.Start
		pl.stop = src.Stop

	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown input type %q", errors.ErrInvalidConfig, pc.Input.Type),
			"Engine", "buildInput", "input selection")
	}
	return nil
}

// externals binds the configured blob fields to the engine's storage
// backend.
func (e *Engine) externals(fields []string) map[string]storage.ExternalField {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]storage.ExternalField, len(fields))
	for _, field := range fields {
		out[field] = storage.ExternalField{
			Factory: e.writerFactory,
			Medium:  e.medium,
		}
	}
	return out
}
