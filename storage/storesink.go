package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
)

// StoreSink persists documents into a Store as JSON under
// "<run uid>/<kind>/<uid>". Documents arriving before any RunStart land
// under the "orphan" run prefix rather than being dropped.
type StoreSink struct {
	store  Store
	runUID string
}

var _ Sink = (*StoreSink)(nil)

// NewStoreSink creates a StoreSink over store.
func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

// Persist implements Sink.
func (s *StoreSink) Persist(ctx context.Context, doc document.Document) error {
	switch p := doc.Payload().(type) {
	case *document.RunStart:
		s.runUID = p.UIDField
	case *document.Descriptor:
		s.runUID = p.RunStart
	case *document.RunStop:
		s.runUID = p.RunStart
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapInvalid(err, "StoreSink", "Persist", "document marshalling")
	}

	if err := s.store.Put(ctx, s.key(doc), data); err != nil {
		return errors.WrapTransient(err, "StoreSink", "Persist", "store put")
	}
	return nil
}

func (s *StoreSink) key(doc document.Document) string {
	run := s.runUID
	if run == "" {
		run = "orphan"
	}
	return fmt.Sprintf("%s/%s/%s", run, doc.Kind(), doc.UID())
}

// Load retrieves one persisted document by run, kind, and uid.
func (s *StoreSink) Load(ctx context.Context, runUID string, kind document.Kind, uid string) (document.Document, error) {
	data, err := s.store.Get(ctx, fmt.Sprintf("%s/%s/%s", runUID, kind, uid))
	if err != nil {
		return document.Document{}, errors.Wrap(err, "StoreSink", "Load", "store get")
	}
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document.Document{}, errors.WrapInvalid(err, "StoreSink", "Load", "document unmarshalling")
	}
	return doc, nil
}

// LoadRun retrieves every persisted document of one run, ordered run_start,
// descriptors, records, run_stop.
func (s *StoreSink) LoadRun(ctx context.Context, runUID string) ([]document.Document, error) {
	keys, err := s.store.List(ctx, runUID+"/")
	if err != nil {
		return nil, errors.Wrap(err, "StoreSink", "LoadRun", "store list")
	}

	byKind := make(map[document.Kind][]document.Document)
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, errors.Wrap(err, "StoreSink", "LoadRun", "store get")
		}
		var doc document.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.WrapInvalid(err,
				"StoreSink", "LoadRun", fmt.Sprintf("unmarshalling %q", key))
		}
		byKind[doc.Kind()] = append(byKind[doc.Kind()], doc)
	}

	var out []document.Document
	for _, kind := range []document.Kind{
		document.KindRunStart, document.KindDescriptor, document.KindRecord, document.KindRunStop,
	} {
		docs := byKind[kind]
		if kind == document.KindRecord {
			sortRecords(docs)
		}
		out = append(out, docs...)
	}
	return out, nil
}

func sortRecords(docs []document.Document) {
	sort.Slice(docs, func(i, j int) bool {
		a := docs[i].Payload().(*document.Record)
		b := docs[j].Payload().(*document.Record)
		if a.Descriptor != b.Descriptor {
			return a.Descriptor < b.Descriptor
		}
		return a.SeqNum < b.SeqNum
	})
}
