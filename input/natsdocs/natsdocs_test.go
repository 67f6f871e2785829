package natsdocs

import (
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/natsclient"
	"github.com/c360/docstreams/testutil"
)

func testClient(t *testing.T) *natsclient.Client {
	t.Helper()
	client, err := natsclient.New(natsclient.DefaultConfig())
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	_, err := New("source", nil, Config{Subject: "docs.raw"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = New("source", testClient(t), Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestSource_EmitsDecodedDocuments(t *testing.T) {
	s, err := New("source", testClient(t), Config{Subject: "docs.raw"})
	require.NoError(t, err)

	out := testutil.NewCapture("out")
	s.Subscribe(out)

	run := testutil.NewRun()
	data, err := json.Marshal(run.Start())
	require.NoError(t, err)

	s.handle(&nats.Msg{Subject: "docs.raw", Data: data})

	docs := out.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, run.StartUID, docs[0].UID())
}

func TestSource_DropsMalformedMessages(t *testing.T) {
	s, err := New("source", testClient(t), Config{Subject: "docs.raw"})
	require.NoError(t, err)

	out := testutil.NewCapture("out")
	s.Subscribe(out)

	s.handle(&nats.Msg{Subject: "docs.raw", Data: []byte("not json")})
	s.handle(&nats.Msg{Subject: "docs.raw", Data: []byte(`{"kind":"bogus","payload":{}}`)})

	assert.Empty(t, out.Values())
}

func TestSource_StartRequiresConnection(t *testing.T) {
	s, err := New("source", testClient(t), Config{Subject: "docs.raw"})
	require.NoError(t, err)

	err = s.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)

	// Stop before a successful start is a no-op.
	require.NoError(t, s.Stop())
}
