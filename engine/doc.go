// Package engine assembles the configured pipelines into running node
// graphs. For each pipeline it wires the document input to the extractors,
// zips multi-source pipelines, attaches the assembler, and hangs the storage
// sink and NATS publisher off the derived stream. The engine owns the
// storage backend and the metrics endpoint; the NATS connection is handed
// in already constructed.
package engine
