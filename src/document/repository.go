package document

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"syndrlinks/src/foreignkeys"
)

// Backend is the document store a Repository reads and writes through.
type Backend interface {
	foreignkeys.Store

	// Insert stores a new document with the given id.
	Insert(ctx context.Context, collection, id string, fields map[string]any) error

	// FindByID returns the stored fields of a document, without its id.
	// It returns ErrNotFound when there is no such document.
	FindByID(ctx context.Context, collection, id string) (map[string]any, error)
}

// IDGenerator is implemented by backends that choose the ids of new documents.
type IDGenerator interface {
	NewID() string
}

// Repository loads and saves documents and hands out their reference lists.
type Repository struct {
	backend Backend
	logger  *zap.SugaredLogger
}

func NewRepository(backend Backend, logger *zap.SugaredLogger) *Repository {
	return &Repository{
		backend: backend,
		logger:  logger,
	}
}

// New returns an unsaved document of model, with an id from the backend when it
// generates its own.
func (r *Repository) New(model *Model) *Document {
	if gen, ok := r.backend.(IDGenerator); ok {
		return newDocument(model, gen.NewID(), nil, false)
	}
	return New(model)
}

// Find loads a persisted document of model.
func (r *Repository) Find(ctx context.Context, model *Model, id string) (*Document, error) {
	fields, err := r.backend.FindByID(ctx, model.Collection, id)
	if err != nil {
		return nil, fmt.Errorf("error finding %s %s: %w", model.Collection, id, err)
	}
	return newDocument(model, id, fields, true), nil
}

// Save inserts a new document, or writes the changed attributes of a persisted one.
// Reference lists that propagated their changes are already clean and are skipped.
func (r *Repository) Save(ctx context.Context, d *Document) error {
	if !d.persisted {
		fields := d.fields()
		for _, name := range d.model.Fields() {
			if _, ok := fields[name]; !ok {
				fields[name] = []any{}
			}
		}
		if err := r.backend.Insert(ctx, d.model.Collection, d.id, fields); err != nil {
			return fmt.Errorf("error inserting %s %s: %w", d.model.Collection, d.id, err)
		}
		d.persisted = true
		d.clean()
		r.logger.Debugf("Inserted %s %s", d.model.Collection, d.id)
		return nil
	}

	for name := range d.changed {
		value, _ := d.Get(name)
		if err := r.backend.UpdateOne(ctx, d.model.Collection, d.id, foreignkeys.Set, name, serialize(value)); err != nil {
			return fmt.Errorf("error saving %s of %s %s: %w", name, d.model.Collection, d.id, err)
		}
		d.ResetAttribute(name)
	}
	return nil
}

// Reload replaces the attributes of d with what is currently stored.
func (r *Repository) Reload(ctx context.Context, d *Document) error {
	fields, err := r.backend.FindByID(ctx, d.model.Collection, d.id)
	if err != nil {
		return fmt.Errorf("error reloading %s %s: %w", d.model.Collection, d.id, err)
	}
	d.attributes = fields
	d.persisted = true
	d.clean()
	return nil
}

// References returns the reference list held in field. The list is built from the stored
// value, or the empty default, the first time it is read and then kept on the document,
// so later mutations are visible to Save.
func (r *Repository) References(d *Document, field string) (*foreignkeys.ReferenceList[string], error) {
	def, err := r.field(d.model, field)
	if err != nil {
		return nil, err
	}
	raw, ok := d.Get(field)
	if !ok {
		list := def.Default(d)
		d.setCached(field, list)
		return list, nil
	}
	list, err := def.Deserialize(raw, d)
	if err != nil {
		return nil, err
	}
	d.setCached(field, list)
	return list, nil
}

// SetReferences assigns the whole field. For a persisted document both sides are
// written immediately and the attribute stays clean; otherwise the change is left
// for Save.
func (r *Repository) SetReferences(ctx context.Context, d *Document, field string, ids any) (*foreignkeys.ReferenceList[string], error) {
	def, err := r.field(d.model, field)
	if err != nil {
		return nil, err
	}
	list, err := def.Serialize(ctx, ids, d)
	if err != nil {
		return nil, err
	}
	if d.persisted {
		d.setCached(field, list)
	} else {
		d.Set(field, list)
	}
	return list, nil
}

func (r *Repository) field(model *Model, name string) (*foreignkeys.ArrayField[string], error) {
	rel, ok := model.Relation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, model.Collection, name)
	}
	return &foreignkeys.ArrayField[string]{
		Name:       name,
		Metadata:   rel,
		Store:      r.backend,
		Constraint: foreignkeys.StringConstraint,
	}, nil
}
