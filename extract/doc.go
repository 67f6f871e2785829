// Package extract translates tagged documents into bare values. An
// Extractor subscribes to a document stream, validates protocol ordering,
// filters by document kind and logical stream name, and descends a field
// path to pull one value out of each matching document. It is the graph
// boundary that lineage walks stop at, and the authority downstream
// assemblers consult for run identity and declared schemas.
package extract
