package document

import (
	"maps"

	"syndrlinks/src/foreignkeys"
	"syndrlinks/src/helpers"
)

// Document is a single stored document with attribute level dirty tracking.
type Document struct {
	model      *Model
	id         string
	attributes map[string]any
	// changed holds the original value of every attribute modified since the last save.
	changed   map[string]any
	persisted bool
}

var _ foreignkeys.Owner[string] = (*Document)(nil)

func newDocument(model *Model, id string, attributes map[string]any, persisted bool) *Document {
	if attributes == nil {
		attributes = make(map[string]any)
	}
	return &Document{
		model:      model,
		id:         id,
		attributes: attributes,
		changed:    make(map[string]any),
		persisted:  persisted,
	}
}

// New returns an unsaved document of model with a freshly generated id.
func New(model *Model) *Document {
	return newDocument(model, helpers.GenerateUUID(), nil, false)
}

func (d *Document) ID() string      { return d.id }
func (d *Document) Model() *Model   { return d.model }
func (d *Document) Persisted() bool { return d.persisted }

// Get returns the raw attribute value.
func (d *Document) Get(name string) (any, bool) {
	v, ok := d.attributes[name]
	return v, ok
}

// Set writes an attribute and records it as changed.
func (d *Document) Set(name string, value any) {
	if _, ok := d.changed[name]; !ok {
		d.changed[name] = d.attributes[name]
	}
	d.attributes[name] = value
}

// Changed reports whether name has been modified since the last save.
func (d *Document) Changed(name string) bool {
	_, ok := d.changed[name]
	return ok
}

// Changes returns the names of all modified attributes mapped to their original values.
func (d *Document) Changes() map[string]any {
	return maps.Clone(d.changed)
}

// ResetAttribute forgets any pending change of name.
func (d *Document) ResetAttribute(name string) {
	delete(d.changed, name)
}

func (d *Document) clean() {
	clear(d.changed)
}

// setCached stores a value without marking it as changed.
func (d *Document) setCached(name string, value any) {
	d.attributes[name] = value
}

// serialize converts an attribute into what gets written to the store.
func serialize(value any) any {
	if list, ok := value.(*foreignkeys.ReferenceList[string]); ok {
		values := make([]any, 0, list.Len())
		for _, id := range list.All() {
			values = append(values, id)
		}
		return values
	}
	return value
}

// fields returns every attribute in its stored form.
func (d *Document) fields() map[string]any {
	out := make(map[string]any, len(d.attributes))
	for name, value := range d.attributes {
		out[name] = serialize(value)
	}
	return out
}
