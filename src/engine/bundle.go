package engine

import (
	"maps"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Bundle is a named collection of documents. All updates to a bundle are serialized by
// its lock, which makes every single-document update atomic.
type Bundle struct {
	// Name is the name of the bundle.
	Name string

	// A list of documents in the bundle, similar to rows in a table.
	Documents map[string]*Document

	mu sync.Mutex
}

type Document struct {
	DocumentID string
	Fields     map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewBundle(name string) *Bundle {
	return &Bundle{
		Name:      name,
		Documents: make(map[string]*Document),
	}
}

// clone returns a deep copy of the document, so an update can be applied and
// discarded if it cannot be persisted.
func (d *Document) clone() *Document {
	fields := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = cloneValue(v)
	}
	return &Document{
		DocumentID: d.DocumentID,
		Fields:     fields,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case bson.A:
		return cloneValue([]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case bson.M:
		return cloneValue(map[string]any(t))
	}
	return v
}

// snapshot copies the document map so a failed write can restore it.
func (b *Bundle) snapshot() map[string]*Document {
	return maps.Clone(b.Documents)
}
