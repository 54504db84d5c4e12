package foreignkeys

import (
	"context"
	"fmt"
	"iter"
	"slices"
)

// Owner is what a reference list needs to know about the document it is declared on.
type Owner[K comparable] interface {
	ID() K
	Persisted() bool
	// ResetAttribute marks the named attribute as clean.
	ResetAttribute(name string)
}

// ReferenceList wraps the foreign key array of a has-and-belongs-to-many relation and
// keeps the inverse side in sync when it is appended to, deleted from or replaced.
//
// When the owner is persisted every mutation performs two atomic updates directly
// against the store, target side first, and then marks the attribute clean since the
// store already holds the new value. Unsaved owners only change the local sequence.
//
// A ReferenceList is not safe for concurrent use.
type ReferenceList[K comparable] struct {
	store Store
	owner Owner[K]
	name  string
	rel   relation
	ids   []K
}

// NewReferenceList wraps values as the named foreign key field of owner. A nil or empty
// values becomes an empty list; otherwise it is copied as given. It panics when meta
// does not resolve, which is a wiring error rather than a data error.
func NewReferenceList[K comparable](store Store, owner Owner[K], meta Metadata, name string, values []K) *ReferenceList[K] {
	rel, err := resolveMetadata(meta)
	if err != nil {
		panic(err)
	}
	ids := make([]K, len(values))
	copy(ids, values)
	return &ReferenceList[K]{
		store: store,
		owner: owner,
		name:  name,
		rel:   rel,
		ids:   ids,
	}
}

// Add appends id. For a persisted owner the owner id is first added to the inverse key
// of the target document, then id is added to the owner's own stored key.
func (l *ReferenceList[K]) Add(ctx context.Context, id K) error {
	if l.persisted() {
		ownerID := l.owner.ID()
		if err := execute(ctx, l.store, AddToSet, l.rel.targetCollection, id, l.rel.inverseForeignKey, ownerID); err != nil {
			return err
		}
		if err := execute(ctx, l.store, AddToSet, l.rel.ownerCollection, ownerID, l.rel.foreignKey, id); err != nil {
			return err
		}
		l.owner.ResetAttribute(l.name)
	}
	l.ids = append(l.ids, id)
	return nil
}

// Remove deletes every occurrence of id, pulling the owner id from the target's inverse
// key and id from the owner's stored key when the owner is persisted.
func (l *ReferenceList[K]) Remove(ctx context.Context, id K) error {
	if l.persisted() {
		ownerID := l.owner.ID()
		if err := execute(ctx, l.store, Pull, l.rel.targetCollection, id, l.rel.inverseForeignKey, ownerID); err != nil {
			return err
		}
		if err := execute(ctx, l.store, Pull, l.rel.ownerCollection, ownerID, l.rel.foreignKey, id); err != nil {
			return err
		}
		l.owner.ResetAttribute(l.name)
	}
	l.ids = slices.DeleteFunc(l.ids, func(v K) bool { return v == id })
	return nil
}

// Substitute replaces the whole list with ids. For a persisted owner every target in
// ids gains the owner id and the owner's stored key is set to ids.
//
// Targets that were in the previous list and are not in ids keep their back-reference
// to the owner.
func (l *ReferenceList[K]) Substitute(ctx context.Context, ids []K) error {
	if l.persisted() {
		ownerID := l.owner.ID()
		values := toAny(ids)
		if err := l.store.UpdateMany(ctx, l.rel.targetCollection, values, AddToSet, l.rel.inverseForeignKey, ownerID); err != nil {
			return fmt.Errorf("%s %s on %s: %w", AddToSet, l.rel.inverseForeignKey, l.rel.targetCollection, err)
		}
		if err := execute(ctx, l.store, Set, l.rel.ownerCollection, ownerID, l.rel.foreignKey, values); err != nil {
			return err
		}
		l.owner.ResetAttribute(l.name)
	}
	l.ids = make([]K, len(ids))
	copy(l.ids, ids)
	return nil
}

func (l *ReferenceList[K]) persisted() bool {
	return l.owner != nil && l.owner.Persisted()
}

// Name returns the owner attribute holding this list.
func (l *ReferenceList[K]) Name() string { return l.name }

func (l *ReferenceList[K]) Len() int { return len(l.ids) }

// At returns the id at index i. It panics if i is out of range.
func (l *ReferenceList[K]) At(i int) K { return l.ids[i] }

// Index returns the index of the first occurrence of id, or -1.
func (l *ReferenceList[K]) Index(id K) int { return slices.Index(l.ids, id) }

func (l *ReferenceList[K]) Contains(id K) bool { return slices.Contains(l.ids, id) }

// All iterates over the ids in order.
func (l *ReferenceList[K]) All() iter.Seq2[int, K] {
	return slices.All(l.ids)
}

// Values returns a copy of the ids.
func (l *ReferenceList[K]) Values() []K {
	return slices.Clone(l.ids)
}

// Equal reports whether the list holds exactly ids, in order.
func (l *ReferenceList[K]) Equal(ids []K) bool {
	return slices.Equal(l.ids, ids)
}

func toAny[K any](ids []K) []any {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return values
}
