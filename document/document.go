package document

import (
	"encoding/json"
	"fmt"

	"github.com/c360/docstreams/errors"
)

// Document is the immutable envelope pairing a kind tag with its typed
// payload. The zero Document is invalid; construct with New or by
// unmarshalling the wire format.
type Document struct {
	kind    Kind
	payload Payload
}

// New wraps a payload in a Document. The kind tag is derived from the
// payload so the two can never disagree.
func New(p Payload) Document {
	return Document{kind: p.Kind(), payload: p}
}

// Kind returns the document's kind tag.
func (d Document) Kind() Kind {
	return d.kind
}

// Payload returns the typed payload.
func (d Document) Payload() Payload {
	return d.payload
}

// UID returns the payload's unique identifier.
func (d Document) UID() string {
	if d.payload == nil {
		return ""
	}
	return d.payload.UID()
}

// Clone returns a deep copy of the document. The copy shares no mutable
// state with the original, so a persisted copy can be rewritten without
// touching the document propagated downstream.
func (d Document) Clone() Document {
	if d.payload == nil {
		return Document{}
	}
	return Document{kind: d.kind, payload: d.payload.Clone()}
}

// Validate checks kind/payload consistency and the payload's required
// fields.
func (d Document) Validate() error {
	if !d.kind.IsValid() {
		return errors.WrapInvalid(
			fmt.Errorf("unknown document kind %q", d.kind),
			"Document", "Validate", "kind check")
	}
	if d.payload == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Document", "Validate", "nil payload check")
	}
	if d.payload.Kind() != d.kind {
		return errors.WrapInvalid(
			fmt.Errorf("kind tag %q does not match payload kind %q", d.kind, d.payload.Kind()),
			"Document", "Validate", "kind consistency check")
	}
	return d.payload.Validate()
}

// wireFormat is the JSON wire representation of a Document.
type wireFormat struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// payloadFactories is the dispatch table mapping each kind to its payload
// constructor. Unmarshalling dispatches through this table instead of
// matching on kind names at each call site.
var payloadFactories = map[Kind]func() Payload{
	KindRunStart:   func() Payload { return &RunStart{} },
	KindDescriptor: func() Payload { return &Descriptor{} },
	KindRecord:     func() Payload { return &Record{} },
	KindRunStop:    func() Payload { return &RunStop{} },
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.payload == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Document", "MarshalJSON", "nil payload check")
	}
	payloadData, err := json.Marshal(d.payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Document", "MarshalJSON", "payload marshalling")
	}
	return json.Marshal(wireFormat{Kind: d.kind, Payload: payloadData})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	var wire wireFormat
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.WrapInvalid(err, "Document", "UnmarshalJSON", "wire format unmarshalling")
	}

	factory, ok := payloadFactories[wire.Kind]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("unknown document kind %q", wire.Kind),
			"Document", "UnmarshalJSON", "kind dispatch")
	}

	payload := factory()
	if err := json.Unmarshal(wire.Payload, payload); err != nil {
		return errors.WrapInvalid(err, "Document", "UnmarshalJSON", "payload unmarshalling")
	}

	d.kind = wire.Kind
	d.payload = payload
	return nil
}
