package testutil

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/pkg/timestamp"
)

// RunBuilder produces a well-formed document sequence for one run. Each
// builder owns its RunStart uid; descriptors and records reference it
// automatically so tests never hand-maintain protocol bookkeeping.
type RunBuilder struct {
	StartUID string
	seq      map[string]int // descriptor uid -> next seq_num
}

// NewRun creates a RunBuilder with a fresh run identity.
func NewRun() *RunBuilder {
	return &RunBuilder{
		StartUID: uuid.New().String(),
		seq:      make(map[string]int),
	}
}

// Start returns the run's RunStart document.
func (b *RunBuilder) Start() document.Document {
	return document.New(&document.RunStart{
		UIDField: b.StartUID,
		Time:     timestamp.Now(),
	})
}

// Descriptor returns a Descriptor for the given stream declaring keys.
// The returned document's uid is fresh; capture it to build records.
func (b *RunBuilder) Descriptor(stream string, keys map[string]document.DataKey) document.Document {
	uid := uuid.New().String()
	b.seq[uid] = 0
	return document.New(&document.Descriptor{
		UIDField: uid,
		Time:     timestamp.Now(),
		RunStart: b.StartUID,
		Name:     stream,
		DataKeys: keys,
	})
}

// Record returns the next Record for descriptorUID carrying data. Sequence
// numbers advance automatically per descriptor.
func (b *RunBuilder) Record(descriptorUID string, data map[string]any) document.Document {
	seq := b.seq[descriptorUID]
	b.seq[descriptorUID] = seq + 1

	now := timestamp.Now()
	timestamps := make(map[string]float64, len(data))
	filled := make(map[string]bool, len(data))
	for k := range data {
		timestamps[k] = now
		filled[k] = true
	}

	return document.New(&document.Record{
		UIDField:   uuid.New().String(),
		Time:       now,
		Descriptor: descriptorUID,
		Data:       data,
		Timestamps: timestamps,
		Filled:     filled,
		SeqNum:     seq,
	})
}

// Stop returns a successful RunStop for the run.
func (b *RunBuilder) Stop() document.Document {
	return document.New(&document.RunStop{
		UIDField:   uuid.New().String(),
		Time:       timestamp.Now(),
		RunStart:   b.StartUID,
		ExitStatus: document.ExitSuccess,
	})
}

// FailedStop returns a failure RunStop carrying reason.
func (b *RunBuilder) FailedStop(reason string) document.Document {
	return document.New(&document.RunStop{
		UIDField:   uuid.New().String(),
		Time:       timestamp.Now(),
		RunStart:   b.StartUID,
		ExitStatus: document.ExitFailure,
		Reason:     reason,
	})
}

// ScalarKeys builds a data-key map declaring each named field as a scalar
// of the given dtype.
func ScalarKeys(dtype string, names ...string) map[string]document.DataKey {
	keys := make(map[string]document.DataKey, len(names))
	for _, name := range names {
		keys[name] = document.DataKey{
			Source: fmt.Sprintf("test:%s", name),
			Dtype:  dtype,
		}
	}
	return keys
}
