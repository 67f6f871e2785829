package natsdocs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/natsclient"
	"github.com/c360/docstreams/node"
	"github.com/c360/docstreams/testutil"
)

func testClient(t *testing.T) *natsclient.Client {
	t.Helper()
	client, err := natsclient.New(natsclient.DefaultConfig())
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	_, err := New("publisher", nil, nil, Config{Subject: "docs.out"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = New("publisher", nil, testClient(t), Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestPublisher_PropagatesDespitePublishFailure(t *testing.T) {
	// The client is never connected, so every publish fails; the document
	// must still flow downstream untouched.
	p, err := New("publisher", nil, testClient(t), Config{Subject: "docs.out"})
	require.NoError(t, err)

	out := testutil.NewCapture("out")
	p.Subscribe(out)

	run := testutil.NewRun()
	start := run.Start()
	require.NoError(t, p.Consume(start))

	docs := out.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, start.UID(), docs[0].UID())
	assert.Equal(t, document.KindRunStart, docs[0].Kind())
}

func TestPublisher_RejectsNonDocumentInput(t *testing.T) {
	p, err := New("publisher", nil, testClient(t), Config{Subject: "docs.out"})
	require.NoError(t, err)

	err = p.Consume(42)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestPublisher_SubscribesToUpstream(t *testing.T) {
	upstream := node.NewEmitter("upstream")
	p, err := New("publisher", &upstream, testClient(t), Config{Subject: "docs.out"})
	require.NoError(t, err)

	out := testutil.NewCapture("out")
	p.Subscribe(out)

	run := testutil.NewRun()
	require.NoError(t, upstream.Emit(run.Start()))
	require.Len(t, out.Documents(), 1)
	require.Len(t, p.Upstreams(), 1)
	assert.Equal(t, upstream.ID(), p.Upstreams()[0].ID())
}
