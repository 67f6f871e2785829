package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/docstreams/errors"
)

func startDoc(uid string) Document {
	return New(&RunStart{UIDField: uid})
}

func descriptorDoc(uid, run string) Document {
	return New(&Descriptor{UIDField: uid, RunStart: run, DataKeys: map[string]DataKey{"det": {}}})
}

func recordDoc(uid, descriptor string, seq int) Document {
	return New(&Record{UIDField: uid, Descriptor: descriptor, Data: map[string]any{"det": 1}, SeqNum: seq})
}

func stopDoc(uid, run string) Document {
	return New(&RunStop{UIDField: uid, RunStart: run, ExitStatus: ExitSuccess})
}

func TestTracker_WellFormedRun(t *testing.T) {
	tr := NewTracker()

	docs := []Document{
		startDoc("s1"),
		descriptorDoc("d1", "s1"),
		recordDoc("r1", "d1", 0),
		recordDoc("r2", "d1", 1),
		stopDoc("e1", "s1"),
	}
	for _, doc := range docs {
		require.NoError(t, tr.Validate(doc), doc.UID())
	}
	assert.Equal(t, "", tr.OpenRun())
}

func TestTracker_SecondRunAfterClose(t *testing.T) {
	tr := NewTracker()

	require.NoError(t, tr.Validate(startDoc("s1")))
	require.NoError(t, tr.Validate(stopDoc("e1", "s1")))
	require.NoError(t, tr.Validate(startDoc("s2")))
	assert.Equal(t, "s2", tr.OpenRun())
}

func TestTracker_DescriptorBeforeStart(t *testing.T) {
	tr := NewTracker()

	err := tr.Validate(descriptorDoc("d1", "s1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProtocolViolation)
	assert.ErrorIs(t, err, errors.ErrRunNotOpen)
	assert.True(t, errors.IsFatal(err))
}

func TestTracker_RecordBeforeDescriptor(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Validate(startDoc("s1")))

	err := tr.Validate(recordDoc("r1", "d1", 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownDescriptor)
}

func TestTracker_StopBeforeStart(t *testing.T) {
	tr := NewTracker()

	err := tr.Validate(stopDoc("e1", "s1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProtocolViolation)
}

func TestTracker_InterleavedRuns(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Validate(startDoc("s1")))

	err := tr.Validate(startDoc("s2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRunAlreadyOpen)
}

func TestTracker_DescriptorOnClosedRun(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Validate(startDoc("s1")))
	require.NoError(t, tr.Validate(stopDoc("e1", "s1")))
	require.NoError(t, tr.Validate(startDoc("s2")))

	err := tr.Validate(descriptorDoc("d1", "s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already-closed")
}

func TestTracker_RecordOfClosedRun(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Validate(startDoc("s1")))
	require.NoError(t, tr.Validate(descriptorDoc("d1", "s1")))
	require.NoError(t, tr.Validate(stopDoc("e1", "s1")))
	require.NoError(t, tr.Validate(startDoc("s2")))

	err := tr.Validate(recordDoc("r1", "d1", 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProtocolViolation)
}

func TestTracker_SequenceRules(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Validate(startDoc("s1")))
	require.NoError(t, tr.Validate(descriptorDoc("d1", "s1")))
	require.NoError(t, tr.Validate(recordDoc("r1", "d1", 0)))

	// Gap
	err := tr.Validate(recordDoc("r2", "d1", 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSequenceGap)
}

func TestTracker_NewDescriptorResetsSequence(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Validate(startDoc("s1")))
	require.NoError(t, tr.Validate(descriptorDoc("d1", "s1")))
	require.NoError(t, tr.Validate(recordDoc("r1", "d1", 0)))
	require.NoError(t, tr.Validate(recordDoc("r2", "d1", 1)))

	require.NoError(t, tr.Validate(descriptorDoc("d2", "s1")))
	require.NoError(t, tr.Validate(recordDoc("r3", "d2", 0)))
}

func TestTracker_StopOfWrongRun(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Validate(startDoc("s1")))

	err := tr.Validate(stopDoc("e1", "other"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProtocolViolation)
}

func TestTracker_ReusedRunUID(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Validate(startDoc("s1")))
	require.NoError(t, tr.Validate(stopDoc("e1", "s1")))

	err := tr.Validate(startDoc("s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")
}
