package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_KindDerivedFromPayload(t *testing.T) {
	doc := New(&RunStart{UIDField: "s1", Time: 1.0})

	assert.Equal(t, KindRunStart, doc.Kind())
	assert.Equal(t, "s1", doc.UID())
	assert.NoError(t, doc.Validate())
}

func TestKind_IsValid(t *testing.T) {
	for _, k := range []Kind{KindRunStart, KindDescriptor, KindRecord, KindRunStop} {
		assert.True(t, k.IsValid(), k)
	}
	assert.False(t, Kind("event").IsValid())
	assert.False(t, Kind("").IsValid())
}

func TestDocument_WireRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
	}{
		{"run start", &RunStart{
			UIDField:   "s1",
			Time:       1700000000.5,
			Parents:    []string{"p1", "p2"},
			Provenance: map[string]any{"graph": []any{"a b"}},
			Metadata:   map[string]any{"operator": "cjw"},
		}},
		{"descriptor", &Descriptor{
			UIDField: "d1",
			Time:     1700000001.0,
			RunStart: "s1",
			Name:     "primary",
			DataKeys: map[string]DataKey{
				"det": {Source: "analysis", Dtype: "float64", Shape: []int{3}},
			},
		}},
		{"record", &Record{
			UIDField:   "r1",
			Time:       1700000002.0,
			Descriptor: "d1",
			Data:       map[string]any{"det": 5.0},
			Timestamps: map[string]float64{"det": 1700000002.0},
			Filled:     map[string]bool{"det": true},
			SeqNum:     0,
		}},
		{"run stop", &RunStop{
			UIDField:   "e1",
			Time:       1700000003.0,
			RunStart:   "s1",
			ExitStatus: ExitFailure,
			Reason:     "detector offline",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(New(tt.payload))
			require.NoError(t, err)

			var back Document
			require.NoError(t, json.Unmarshal(data, &back))

			assert.Equal(t, tt.payload.Kind(), back.Kind())
			assert.Equal(t, tt.payload, back.Payload())
		})
	}
}

func TestDocument_UnmarshalUnknownKind(t *testing.T) {
	var doc Document
	err := json.Unmarshal([]byte(`{"kind":"event","payload":{"uid":"x"}}`), &doc)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown document kind")
}

func TestDocument_Clone_NoAliasing(t *testing.T) {
	rec := &Record{
		UIDField:   "r1",
		Descriptor: "d1",
		Data:       map[string]any{"det": 5, "nested": map[string]any{"a": 1}},
		Filled:     map[string]bool{"det": true},
		SeqNum:     0,
	}
	doc := New(rec)

	clone := doc.Clone()
	cloned := clone.Payload().(*Record)
	cloned.Data["det"] = "replaced-by-reference"
	cloned.Data["nested"].(map[string]any)["a"] = 2
	cloned.Filled["det"] = false

	assert.Equal(t, 5, rec.Data["det"])
	assert.Equal(t, 1, rec.Data["nested"].(map[string]any)["a"])
	assert.True(t, rec.Filled["det"])
}

func TestDescriptor_StreamName(t *testing.T) {
	assert.Equal(t, DefaultStream, (&Descriptor{}).StreamName())
	assert.Equal(t, "baseline", (&Descriptor{Name: "baseline"}).StreamName())
}

func TestPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{"run start ok", &RunStart{UIDField: "s1"}, false},
		{"run start missing uid", &RunStart{}, true},
		{"descriptor missing run_start", &Descriptor{UIDField: "d1"}, true},
		{"record missing data", &Record{UIDField: "r1", Descriptor: "d1"}, true},
		{"record negative seq", &Record{UIDField: "r1", Descriptor: "d1", Data: map[string]any{}, SeqNum: -1}, true},
		{"run stop bad status", &RunStop{UIDField: "e1", RunStart: "s1", ExitStatus: "done"}, true},
		{"run stop ok", &RunStop{UIDField: "e1", RunStart: "s1", ExitStatus: ExitSuccess}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDataKeysEqual(t *testing.T) {
	a := map[string]DataKey{"det": {Dtype: "float64", Shape: []int{2, 2}}}
	b := map[string]DataKey{"det": {Dtype: "float64", Shape: []int{2, 2}}}
	c := map[string]DataKey{"det": {Dtype: "int"}}
	d := map[string]DataKey{"img": {Dtype: "float64", Shape: []int{2, 2}}}

	assert.True(t, DataKeysEqual(a, b))
	assert.False(t, DataKeysEqual(a, c))
	assert.False(t, DataKeysEqual(a, d))
	assert.True(t, DataKeysEqual(nil, map[string]DataKey{}))
}

func TestRecord_Fields(t *testing.T) {
	rec := &Record{
		UIDField:   "r1",
		Descriptor: "d1",
		Data:       map[string]any{"det": 5},
		SeqNum:     3,
	}

	fields := rec.Fields()
	assert.Equal(t, "r1", fields["uid"])
	assert.Equal(t, 3, fields["seq_num"])

	data, ok := fields["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5, data["det"])
}
