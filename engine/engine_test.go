package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/docstreams/config"
	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/natsclient"
	"github.com/c360/docstreams/node"
	"github.com/c360/docstreams/storage"
	"github.com/c360/docstreams/testutil"
)

func testConfig(t *testing.T, externals ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Backend: config.BackendFile, Root: t.TempDir()}
	cfg.Pipelines = []config.PipelineConfig{
		{
			Name:  "identity",
			Input: config.InputConfig{Type: "websocket", Addr: "127.0.0.1:0"},
			Sources: []config.SourceConfig{
				{Name: "det", DocType: document.KindRecord, Path: []string{"data", "det"}, Principal: true},
			},
			Assembler:     config.AssemblerConfig{Fields: []string{"det"}},
			OutputSubject: "docs.derived",
			Externals:     externals,
		},
	}
	return cfg
}

func testClient(t *testing.T) *natsclient.Client {
	t.Helper()
	client, err := natsclient.New(natsclient.DefaultConfig())
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	client := testClient(t)

	_, err := New(nil, client)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = New(testConfig(t), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	bad := testConfig(t)
	bad.Pipelines[0].OutputSubject = ""
	_, err = New(bad, client)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

// inject pushes documents straight into a pipeline's input node, bypassing
// the transport.
func inject(t *testing.T, pl *Pipeline, docs ...document.Document) {
	t.Helper()
	emitter, ok := pl.input.(interface{ Emit(v any) error })
	require.True(t, ok)
	for _, doc := range docs {
		require.NoError(t, emitter.Emit(doc))
	}
}

func TestEngine_PipelineFlow(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg, testClient(t))
	require.NoError(t, err)
	require.NoError(t, e.setup(context.Background()))
	require.Len(t, e.pipelines, 1)

	pl := e.pipelines[0]
	out := testutil.NewCapture("out")
	pl.publisher.Subscribe(out)

	run := testutil.NewRun()
	desc := run.Descriptor("primary", testutil.ScalarKeys("number", "det"))
	inject(t, pl,
		run.Start(),
		desc,
		run.Record(desc.UID(), map[string]any{"det": 5}),
		run.Record(desc.UID(), map[string]any{"det": 6}),
		run.Stop(),
	)

	// Derived run reaches the publisher intact.
	kinds := out.Kinds()
	require.Equal(t, []document.Kind{
		document.KindRunStart,
		document.KindDescriptor,
		document.KindRecord,
		document.KindRecord,
		document.KindRunStop,
	}, kinds)

	docs := out.Documents()
	derivedRun := docs[0].UID()
	record, ok := docs[2].Payload().(*document.Record)
	require.True(t, ok)
	assert.Equal(t, 5, record.Data["det"])

	// Every derived document landed in the store.
	keys, err := e.store.List(context.Background(), derivedRun+"/")
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	loaded, err := storage.NewStoreSink(e.store).LoadRun(context.Background(), derivedRun)
	require.NoError(t, err)
	require.Len(t, loaded, 5)
	assert.Equal(t, document.KindRunStart, loaded[0].Kind())
	assert.Equal(t, document.KindRunStop, loaded[4].Kind())

	require.NoError(t, e.Stop(context.Background()))
}

func TestEngine_ExternalFieldsOffloaded(t *testing.T) {
	cfg := testConfig(t, "det")
	e, err := New(cfg, testClient(t))
	require.NoError(t, err)
	require.NoError(t, e.setup(context.Background()))

	pl := e.pipelines[0]
	out := testutil.NewCapture("out")
	pl.publisher.Subscribe(out)

	run := testutil.NewRun()
	desc := run.Descriptor("primary", testutil.ScalarKeys("number", "det"))
	inject(t, pl,
		run.Start(),
		desc,
		run.Record(desc.UID(), map[string]any{"det": 5}),
		run.Stop(),
	)

	docs := out.Documents()
	require.Len(t, docs, 4)
	derivedRun := docs[0].UID()

	// The propagated record keeps the live value.
	live, ok := docs[2].Payload().(*document.Record)
	require.True(t, ok)
	assert.Equal(t, 5, live.Data["det"])

	// The persisted record carries a blob reference instead.
	loaded, err := storage.NewStoreSink(e.store).LoadRun(context.Background(), derivedRun)
	require.NoError(t, err)
	stored, ok := loaded[2].Payload().(*document.Record)
	require.True(t, ok)
	ref, ok := stored.Data["det"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, ref)
	assert.False(t, stored.Filled["det"])

	data, err := e.store.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.JSONEq(t, "5", string(data))
}

func TestEngine_ZipsMultiSourcePipelines(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipelines[0].Sources = []config.SourceConfig{
		{Name: "det", DocType: document.KindRecord, Path: []string{"data", "det"}, Principal: true},
		{Name: "mon", DocType: document.KindRecord, Path: []string{"data", "mon"}},
	}
	cfg.Pipelines[0].Assembler.Fields = []string{"det", "mon"}

	e, err := New(cfg, testClient(t))
	require.NoError(t, err)
	require.NoError(t, e.setup(context.Background()))

	pl := e.pipelines[0]
	out := testutil.NewCapture("out")
	pl.publisher.Subscribe(out)

	run := testutil.NewRun()
	desc := run.Descriptor("primary", testutil.ScalarKeys("number", "det", "mon"))
	inject(t, pl,
		run.Start(),
		desc,
		run.Record(desc.UID(), map[string]any{"det": 1, "mon": 10}),
		run.Stop(),
	)

	docs := out.Documents()
	require.Len(t, docs, 4)
	record, ok := docs[2].Payload().(*document.Record)
	require.True(t, ok)
	assert.Equal(t, 1, record.Data["det"])
	assert.Equal(t, 10, record.Data["mon"])

	// Zip sits between the extractors and the assembler.
	ups := pl.assembler.Upstreams()
	require.Len(t, ups, 1)
	_, isZip := ups[0].(*node.ZipNode)
	assert.True(t, isZip)
}

func TestEngine_RejectsUnknownInputType(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg, testClient(t))
	require.NoError(t, err)

	// Validation catches this at load time; the builder still defends
	// against configs mutated after New.
	e.cfg.Pipelines[0].Input.Type = "carrier-pigeon"
	err = e.setup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
