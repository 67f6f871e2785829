// Package objectstore provides a NATS JetStream ObjectStore-backed Store
// and BlobWriter.
package objectstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/storage"
)

// Medium is the external marker stamped onto offloaded data keys.
const Medium = "OBJECTSTORE:"

// Store is a storage.Store backed by one JetStream ObjectStore bucket.
type Store struct {
	bucket string
	os     jetstream.ObjectStore
}

var _ storage.Store = (*Store)(nil)

// New creates a Store over the named bucket, creating the bucket when it
// does not exist yet.
func New(ctx context.Context, js jetstream.JetStream, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty bucket name", errors.ErrInvalidConfig),
			"Store", "New", "config validation")
	}

	os, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "docstreams document and blob storage",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "New", "object store creation")
	}
	return &Store{bucket: bucket, os: os}, nil
}

// Put implements storage.Store.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.os.PutBytes(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "Store", "Put",
			fmt.Sprintf("put %q in bucket %q", key, s.bucket))
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.os.GetBytes(ctx, key)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrKeyNotFound, key),
				"Store", "Get", "object lookup")
		}
		return nil, errors.WrapTransient(err, "Store", "Get",
			fmt.Sprintf("get %q from bucket %q", key, s.bucket))
	}
	return data, nil
}

// List implements storage.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := s.os.List(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "Store", "List",
			fmt.Sprintf("list bucket %q", s.bucket))
	}

	var keys []string
	for _, info := range infos {
		if strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.os.Delete(ctx, key); err != nil && !stderrors.Is(err, jetstream.ErrObjectNotFound) {
		return errors.WrapTransient(err, "Store", "Delete",
			fmt.Sprintf("delete %q from bucket %q", key, s.bucket))
	}
	return nil
}

// Writer is a storage.BlobWriter putting each value as a JSON object under
// "blobs/<run>/<field>/<uuid>".
type Writer struct {
	ctx    context.Context
	store  *Store
	prefix string
	closed bool
}

var _ storage.BlobWriter = (*Writer)(nil)

// WriterFactory returns a storage.WriterFactory opening Writers in store.
// The context bounds every blob write issued by the returned writers.
func WriterFactory(ctx context.Context, store *Store) storage.WriterFactory {
	return func(runUID, field string) (storage.BlobWriter, error) {
		return &Writer{
			ctx:    ctx,
			store:  store,
			prefix: fmt.Sprintf("blobs/%s/%s", runUID, field),
		}, nil
	}
}

// Write implements storage.BlobWriter.
func (w *Writer) Write(v any) (string, error) {
	if w.closed {
		return "", errors.WrapInvalid(errors.ErrWriterClosed, "Writer", "Write", "writer state check")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.WrapInvalid(err, "Writer", "Write", "value marshalling")
	}

	ref := fmt.Sprintf("%s/%s", w.prefix, uuid.New().String())
	if err := w.store.Put(w.ctx, ref, data); err != nil {
		return "", err
	}
	return ref, nil
}

// Close implements storage.BlobWriter.
func (w *Writer) Close() error {
	w.closed = true
	return nil
}
