// Package filestore provides a filesystem-backed Store and BlobWriter.
// Keys map directly to paths under a root directory, which makes persisted
// runs inspectable with ordinary shell tools.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/storage"
)

// Medium is the external marker stamped onto offloaded data keys.
const Medium = "FILESTORE:"

// Store is a filesystem-backed storage.Store rooted at a directory.
type Store struct {
	root string
}

var _ storage.Store = (*Store)(nil)

// New creates a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty root directory", errors.ErrInvalidConfig),
			"Store", "New", "config validation")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "Store", "New", "root directory creation")
	}
	return &Store{root: dir}, nil
}

// Put implements storage.Store.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapTransient(err, "Store", "Put", "directory creation")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapTransient(err, "Store", "Put", "file write")
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrKeyNotFound, key),
				"Store", "Get", "file read")
		}
		return nil, errors.WrapTransient(err, "Store", "Get", "file read")
	}
	return data, nil
}

// List implements storage.Store.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "List", "directory walk")
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.WrapTransient(err, "Store", "Delete", "file remove")
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Writer is a filesystem-backed storage.BlobWriter. Each value lands in
// its own JSON file under <root>/blobs/<run>/<field>/.
type Writer struct {
	dir    string
	rel    string
	next   int
	closed bool
}

var _ storage.BlobWriter = (*Writer)(nil)

// WriterFactory returns a storage.WriterFactory opening Writers under root.
func WriterFactory(root string) storage.WriterFactory {
	return func(runUID, field string) (storage.BlobWriter, error) {
		rel := filepath.ToSlash(filepath.Join("blobs", runUID, field))
		dir := filepath.Join(root, "blobs", runUID, field)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapTransient(err, "Writer", "WriterFactory", "blob directory creation")
		}
		return &Writer{dir: dir, rel: rel}, nil
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

	name := fmt.Sprintf("%06d.json", w.next)
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		return "", errors.WrapTransient(err, "Writer", "Write", "blob write")
	}
	w.next++
	return w.rel + "/" + name, nil
}

// Close implements storage.BlobWriter.
func (w *Writer) Close() error {
	w.closed = true
	return nil
}
