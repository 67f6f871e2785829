package document

import (
	"fmt"
	"slices"

	"github.com/c360/docstreams/errors"
)

// Kind identifies one of the four document types in the protocol.
type Kind string

// Document kinds.
const (
	KindRunStart   Kind = "run_start"
	KindDescriptor Kind = "descriptor"
	KindRecord     Kind = "record"
	KindRunStop    Kind = "run_stop"
)

// IsValid reports whether k is one of the four protocol kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindRunStart, KindDescriptor, KindRecord, KindRunStop:
		return true
	default:
		return false
	}
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	return string(k)
}

// Run exit statuses carried by RunStop documents.
const (
	ExitSuccess = "success"
	ExitFailure = "failure"
)

// DefaultStream is the logical stream name assumed when a Descriptor does
// not declare one.
const DefaultStream = "primary"

// Payload is the typed content of a document. Each of the four kinds has
// exactly one payload implementation.
type Payload interface {
	// Kind returns the document kind this payload belongs to.
	Kind() Kind

	// UID returns the globally unique identifier of this document.
	UID() string

	// Validate checks that the payload carries its required fields.
	Validate() error

	// Clone returns a deep copy sharing no mutable state with the original.
	Clone() Payload

	// Fields returns an addressable view of the payload for path-based value
	// extraction. The returned maps reference the payload's own data and
	// must be treated as read-only.
	Fields() map[string]any
}

// DataKey describes one field of a Record as declared by a Descriptor.
type DataKey struct {
	Source string `json:"source,omitempty"`
	Dtype  string `json:"dtype,omitempty"`
	Shape  []int  `json:"shape,omitempty"`

	// External marks a field whose value has been offloaded to blob storage.
	// The value is an opaque medium marker such as "OBJECTSTORE:".
	External string `json:"external,omitempty"`
}

// Equal reports whether two data keys declare the same field metadata.
func (k DataKey) Equal(o DataKey) bool {
	return k.Source == o.Source &&
		k.Dtype == o.Dtype &&
		k.External == o.External &&
		slices.Equal(k.Shape, o.Shape)
}

// DataKeysEqual reports whether two data-key mappings are identical.
func DataKeysEqual(a, b map[string]DataKey) bool {
	if len(a) != len(b) {
		return false
	}
	for name, ka := range a {
		kb, ok := b[name]
		if !ok || !ka.Equal(kb) {
			return false
		}
	}
	return true
}

// RunStart opens a run.
type RunStart struct {
	UIDField   string         `json:"uid"`
	Time       float64        `json:"time"`
	Parents    []string       `json:"parents"`
	Provenance map[string]any `json:"provenance"`

	// Metadata carries optional static metadata merged in by the emitter.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Kind implements Payload.
func (p *RunStart) Kind() Kind { return KindRunStart }

// UID implements Payload.
func (p *RunStart) UID() string { return p.UIDField }

// Validate implements Payload.
func (p *RunStart) Validate() error {
	if p.UIDField == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: run_start uid", errors.ErrMissingField),
			"RunStart", "Validate", "required field check")
	}
	return nil
}

// Clone implements Payload.
func (p *RunStart) Clone() Payload {
	return &RunStart{
		UIDField:   p.UIDField,
		Time:       p.Time,
		Parents:    slices.Clone(p.Parents),
		Provenance: deepCopyMap(p.Provenance),
		Metadata:   deepCopyMap(p.Metadata),
	}
}

// Fields implements Payload.
func (p *RunStart) Fields() map[string]any {
	f := map[string]any{
		"uid":        p.UIDField,
		"time":       p.Time,
		"parents":    p.Parents,
		"provenance": p.Provenance,
	}
	if p.Metadata != nil {
		f["metadata"] = p.Metadata
	}
	return f
}

// Descriptor declares the schema for the Records that follow it.
type Descriptor struct {
	UIDField string             `json:"uid"`
	Time     float64            `json:"time"`
	RunStart string             `json:"run_start"`
	Name     string             `json:"name,omitempty"`
	DataKeys map[string]DataKey `json:"data_keys"`
}

// Kind implements Payload.
func (p *Descriptor) Kind() Kind { return KindDescriptor }

// UID implements Payload.
func (p *Descriptor) UID() string { return p.UIDField }

// StreamName returns the logical stream name, defaulting to DefaultStream
// when the descriptor does not declare one.
func (p *Descriptor) StreamName() string {
	if p.Name == "" {
		return DefaultStream
	}
	return p.Name
}

// Validate implements Payload.
func (p *Descriptor) Validate() error {
	if p.UIDField == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: descriptor uid", errors.ErrMissingField),
			"Descriptor", "Validate", "required field check")
	}
	if p.RunStart == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: descriptor run_start", errors.ErrMissingField),
			"Descriptor", "Validate", "required field check")
	}
	return nil
}

// Clone implements Payload.
func (p *Descriptor) Clone() Payload {
	var keys map[string]DataKey
	if p.DataKeys != nil {
		keys = make(map[string]DataKey, len(p.DataKeys))
		for name, k := range p.DataKeys {
			k.Shape = slices.Clone(k.Shape)
			keys[name] = k
		}
	}
	return &Descriptor{
		UIDField: p.UIDField,
		Time:     p.Time,
		RunStart: p.RunStart,
		Name:     p.Name,
		DataKeys: keys,
	}
}

// Fields implements Payload.
func (p *Descriptor) Fields() map[string]any {
	return map[string]any{
		"uid":       p.UIDField,
		"time":      p.Time,
		"run_start": p.RunStart,
		"name":      p.StreamName(),
		"data_keys": p.DataKeys,
	}
}

// Record carries one data sample belonging to a Descriptor.
type Record struct {
	UIDField   string             `json:"uid"`
	Time       float64            `json:"time"`
	Descriptor string             `json:"descriptor"`
	Data       map[string]any     `json:"data"`
	Timestamps map[string]float64 `json:"timestamps"`
	Filled     map[string]bool    `json:"filled"`
	SeqNum     int                `json:"seq_num"`
}

// Kind implements Payload.
func (p *Record) Kind() Kind { return KindRecord }

// UID implements Payload.
func (p *Record) UID() string { return p.UIDField }

// Validate implements Payload.
func (p *Record) Validate() error {
	if p.UIDField == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: record uid", errors.ErrMissingField),
			"Record", "Validate", "required field check")
	}
	if p.Descriptor == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: record descriptor", errors.ErrMissingField),
			"Record", "Validate", "required field check")
	}
	if p.Data == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: record data", errors.ErrMissingField),
			"Record", "Validate", "required field check")
	}
	if p.SeqNum < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("negative seq_num %d", p.SeqNum),
			"Record", "Validate", "sequence number check")
	}
	return nil
}

// Clone implements Payload.
func (p *Record) Clone() Payload {
	var timestamps map[string]float64
	if p.Timestamps != nil {
		timestamps = make(map[string]float64, len(p.Timestamps))
		for k, v := range p.Timestamps {
			timestamps[k] = v
		}
	}
	var filled map[string]bool
	if p.Filled != nil {
		filled = make(map[string]bool, len(p.Filled))
		for k, v := range p.Filled {
			filled[k] = v
		}
	}
	return &Record{
		UIDField:   p.UIDField,
		Time:       p.Time,
		Descriptor: p.Descriptor,
		Data:       deepCopyMap(p.Data),
		Timestamps: timestamps,
		Filled:     filled,
		SeqNum:     p.SeqNum,
	}
}

// Fields implements Payload.
func (p *Record) Fields() map[string]any {
	return map[string]any{
		"uid":        p.UIDField,
		"time":       p.Time,
		"descriptor": p.Descriptor,
		"data":       p.Data,
		"timestamps": p.Timestamps,
		"filled":     p.Filled,
		"seq_num":    p.SeqNum,
	}
}

// RunStop closes a run.
type RunStop struct {
	UIDField   string  `json:"uid"`
	Time       float64 `json:"time"`
	RunStart   string  `json:"run_start"`
	ExitStatus string  `json:"exit_status"`
	Reason     string  `json:"reason,omitempty"`
}

// Kind implements Payload.
func (p *RunStop) Kind() Kind { return KindRunStop }

// UID implements Payload.
func (p *RunStop) UID() string { return p.UIDField }

// Validate implements Payload.
func (p *RunStop) Validate() error {
	if p.UIDField == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: run_stop uid", errors.ErrMissingField),
			"RunStop", "Validate", "required field check")
	}
	if p.RunStart == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: run_stop run_start", errors.ErrMissingField),
			"RunStop", "Validate", "required field check")
	}
	if p.ExitStatus != ExitSuccess && p.ExitStatus != ExitFailure {
		return errors.WrapInvalid(
			fmt.Errorf("exit_status %q is not %q or %q", p.ExitStatus, ExitSuccess, ExitFailure),
			"RunStop", "Validate", "exit status check")
	}
	return nil
}

// Clone implements Payload.
func (p *RunStop) Clone() Payload {
	cp := *p
	return &cp
}

// Fields implements Payload.
func (p *RunStop) Fields() map[string]any {
	return map[string]any{
		"uid":         p.UIDField,
		"time":        p.Time,
		"run_start":   p.RunStart,
		"exit_status": p.ExitStatus,
		"reason":      p.Reason,
	}
}

// deepCopyMap copies a JSON-shaped map, descending into nested maps and
// slices. Scalar values are copied by assignment.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	case []float64:
		return slices.Clone(t)
	case []int:
		return slices.Clone(t)
	default:
		return v
	}
}
