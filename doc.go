// Package docstreams provides a document-stream translation and
// resynchronization engine for experiment-control pipelines.
//
// Measurement runs are described as a small tagged-document protocol
// (RunStart, Descriptor, Record, RunStop). Transformation nodes are
// composed into a push-based dataflow graph that consumes such streams,
// computes derived values, and re-emits a new, protocol-conformant
// stream while tracking lineage across merged inputs and persisting
// documents as a side effect.
//
// # Architecture
//
//	┌──────────────┐    ┌───────────┐    ┌──────────────┐    ┌───────────┐
//	│ Doc Source   │───►│ Extractor │───►│ user         │───►│ Assembler │
//	│ (NATS / WS)  │    │ (extract) │    │ transform    │    │ (assemble)│
//	└──────────────┘    └───────────┘    │ (node.Map)   │    └─────┬─────┘
//	                                     └──────────────┘          │
//	                                                               ▼
//	                                                        ┌────────────┐
//	                                                        │  SinkNode  │
//	                                                        │ (storage)  │
//	                                                        └────────────┘
//
// Extractors pull a single addressable value out of a filtered document
// stream while tracking run identity. Assemblers reassemble transformed
// values into a new document stream, walking the node graph backward at
// construction time to discover the extractors whose run boundaries
// govern resynchronization. When any principal extractor's run identity
// changes between merged values, the assembler brackets its output with
// the correct RunStop/RunStart/Descriptor sequence.
//
// Propagation is single-threaded and cooperative: each document or value
// is delivered synchronously to all direct subscribers before the call
// returns. This is what makes the per-run state machines safe without
// locks.
//
// # Packages
//
// Core:
//   - document: tagged-document model, wire format, protocol tracker
//   - node: push/subscribe node contract, Map and Zip combinators
//   - extract: value-source nodes (document stream -> values)
//   - lineage: backward graph walk, provenance serialization
//   - assemble: value-sink nodes (values -> document stream)
//   - storage: persistence sinks and blob writer contracts
//
// Infrastructure:
//   - natsclient: NATS connection management
//   - input/natsdocs, input/wsdocs: document sources
//   - output/natsdocs: document publisher
//   - storage/objectstore, storage/filestore: store backends
//   - metric: Prometheus metrics registry
//   - errors: structured error handling
//   - config: pipeline configuration
//   - engine: config-driven pipeline wiring and lifecycle
package docstreams
