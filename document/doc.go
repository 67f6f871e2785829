// Package document defines the tagged-document model used to describe a run
// of measurements, its JSON wire format, and the per-stream protocol state
// machine that enforces document sequencing rules.
//
// A run is a linear sequence of documents on one stream:
//
//	RunStart -> (Descriptor -> Record*)* -> RunStop
//
// Exactly one RunStart opens a run and exactly one RunStop closes it. A
// Descriptor declares the schema (data keys) for the Records that follow it
// until superseded; each Record carries a per-descriptor sequence number
// starting at 0 and increasing by 1. Two runs never interleave on a single
// stream.
//
// Documents are immutable once constructed. Clone produces a deep copy so
// that a persisted document can be rewritten (for example to externalize a
// payload field) without aliasing the document that continues downstream.
package document
