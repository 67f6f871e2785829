// Package storage provides the persistence surfaces of the engine: the
// pluggable Store backend, the document Sink, and blob writers that offload
// bulky Record values out of the document stream.
package storage

import (
	"context"

	"github.com/c360/docstreams/document"
)

// Store is the pluggable key-value backend for document persistence.
//
// Keys are hierarchical strings with "/" separators; values are binary.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores data at key. Overwrite behavior is
	// implementation-specific.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the data at key. Missing keys yield
	// errors.ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys with the given prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
}

// Sink persists documents. The document passed in is already a private
// copy: implementations may retain it but must not expect exclusive access
// to payload internals beyond the call.
type Sink interface {
	Persist(ctx context.Context, doc document.Document) error
}

// BlobWriter offloads individual Record values to external storage and
// returns an opaque reference for each.
type BlobWriter interface {
	// Write stores one value and returns its reference.
	Write(v any) (string, error)

	// Close releases the writer. Writing after Close yields
	// errors.ErrWriterClosed.
	Close() error
}

// WriterFactory opens a BlobWriter scoped to one run and field.
type WriterFactory func(runUID, field string) (BlobWriter, error)

// ExternalField configures blob offloading for one Record field.
type ExternalField struct {
	// Factory opens the writer used for this field's values.
	Factory WriterFactory

	// Medium is the marker recorded in the persisted Descriptor's data key,
	// such as "FILESTORE:" or "OBJECTSTORE:".
	Medium string
}
