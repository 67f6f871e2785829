package storage_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/storage"
	"github.com/c360/docstreams/testutil"
)

// recordingSink captures every persisted document.
type recordingSink struct {
	docs []document.Document
	err  error
}

func (s *recordingSink) Persist(_ context.Context, doc document.Document) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

// mockWriter hands out sequential references per field.
type mockWriter struct {
	field  string
	run    string
	refs   int
	closed bool
}

func (w *mockWriter) Write(any) (string, error) {
	if w.closed {
		return "", errors.ErrWriterClosed
	}
	ref := fmt.Sprintf("%s/%s/%d", w.run, w.field, w.refs)
	w.refs++
	return ref, nil
}

func (w *mockWriter) Close() error {
	w.closed = true
	return nil
}

// mockFactory tracks every writer it opened.
type mockFactory struct {
	writers []*mockWriter
}

func (f *mockFactory) open(runUID, field string) (storage.BlobWriter, error) {
	w := &mockWriter{field: field, run: runUID}
	f.writers = append(f.writers, w)
	return w, nil
}

func newSinkNode(t *testing.T, sink storage.Sink, cfg storage.SinkConfig) (*storage.SinkNode, *testutil.Capture) {
	t.Helper()
	sn, err := storage.NewSinkNode("sink", nil, sink, cfg)
	require.NoError(t, err)
	out := testutil.NewCapture("out")
	sn.Subscribe(out)
	return sn, out
}

func TestNewSinkNode_Validation(t *testing.T) {
	_, err := storage.NewSinkNode("sink", nil, nil, storage.SinkConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = storage.NewSinkNode("sink", nil, &recordingSink{}, storage.SinkConfig{
		Externals: map[string]storage.ExternalField{"img": {Medium: "MOCK:"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSinkNode_PersistsAndPropagatesPristine(t *testing.T) {
	sink := &recordingSink{}
	factory := &mockFactory{}
	sn, out := newSinkNode(t, sink, storage.SinkConfig{
		Externals: map[string]storage.ExternalField{
			"img": {Factory: factory.open, Medium: "MOCK:"},
		},
	})

	run := testutil.NewRun()
	keys := map[string]document.DataKey{
		"img": {Source: "camera", Dtype: "array", Shape: []int{2}},
		"det": {Source: "detector", Dtype: "number"},
	}
	desc := run.Descriptor("primary", keys)
	img := []float64{1, 2}
	rec := run.Record(desc.UID(), map[string]any{"img": img, "det": 5.0})

	for _, doc := range []document.Document{run.Start(), desc, rec, run.Stop()} {
		require.NoError(t, sn.Consume(doc))
	}

	// Downstream sees the pristine documents.
	docs := out.Documents()
	require.Len(t, docs, 4)
	liveRec := docs[2].Payload().(*document.Record)
	assert.Equal(t, img, liveRec.Data["img"])
	assert.True(t, liveRec.Filled["img"])
	liveDesc := docs[1].Payload().(*document.Descriptor)
	assert.Empty(t, liveDesc.DataKeys["img"].External)

	// The persisted copies carry the rewrite.
	require.Len(t, sink.docs, 4)
	storedDesc := sink.docs[1].Payload().(*document.Descriptor)
	assert.Equal(t, "MOCK:", storedDesc.DataKeys["img"].External)
	assert.Empty(t, storedDesc.DataKeys["det"].External)

	storedRec := sink.docs[2].Payload().(*document.Record)
	assert.Equal(t, fmt.Sprintf("%s/img/0", run.StartUID), storedRec.Data["img"])
	assert.False(t, storedRec.Filled["img"])
	assert.Equal(t, 5.0, storedRec.Data["det"])
	assert.True(t, storedRec.Filled["det"])

	// The run's writer closed with the run.
	require.Len(t, factory.writers, 1)
	assert.True(t, factory.writers[0].closed)
}

func TestSinkNode_FreshWriterPerRun(t *testing.T) {
	sink := &recordingSink{}
	factory := &mockFactory{}
	sn, _ := newSinkNode(t, sink, storage.SinkConfig{
		Externals: map[string]storage.ExternalField{
			"img": {Factory: factory.open, Medium: "MOCK:"},
		},
	})

	for iter := 0; iter < 2; iter++ {
		run := testutil.NewRun()
		desc := run.Descriptor("primary", testutil.ScalarKeys("array", "img"))
		for _, doc := range []document.Document{
			run.Start(),
			desc,
			run.Record(desc.UID(), map[string]any{"img": []float64{1}}),
			run.Stop(),
		} {
			require.NoError(t, sn.Consume(doc))
		}
	}

	require.Len(t, factory.writers, 2)
	assert.NotEqual(t, factory.writers[0].run, factory.writers[1].run)
	for _, w := range factory.writers {
		assert.True(t, w.closed)
	}
}

func TestSinkNode_PersistFailureDoesNotBlockStream(t *testing.T) {
	sink := &recordingSink{err: errors.ErrStorageUnavailable}
	sn, out := newSinkNode(t, sink, storage.SinkConfig{})

	run := testutil.NewRun()
	require.NoError(t, sn.Consume(run.Start()))

	require.Len(t, out.Documents(), 1)
	assert.Equal(t, document.KindRunStart, out.Documents()[0].Kind())
}

func TestSinkNode_RejectsNonDocument(t *testing.T) {
	sn, _ := newSinkNode(t, &recordingSink{}, storage.SinkConfig{})

	err := sn.Consume("not a document")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
