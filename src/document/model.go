package document

import (
	"fmt"
	"maps"
	"slices"

	"syndrlinks/src/foreignkeys"
)

// Model describes the documents of one collection and the many-to-many relations
// declared on them.
type Model struct {
	Collection string
	relations  map[string]foreignkeys.Relation
}

func NewModel(collection string) *Model {
	return &Model{
		Collection: collection,
		relations:  make(map[string]foreignkeys.Relation),
	}
}

// HasAndBelongsToMany declares a relation owned by this model. The owner collection
// defaults to the model's collection. The resolved relation is returned.
func (m *Model) HasAndBelongsToMany(rel foreignkeys.Relation) (foreignkeys.Relation, error) {
	if rel.Owner == "" {
		rel.Owner = m.Collection
	}
	if rel.Owner != m.Collection {
		return foreignkeys.Relation{}, fmt.Errorf("%w: relation %q is owned by %s, not %s",
			foreignkeys.ErrMisconfigured, rel.Name, rel.Owner, m.Collection)
	}
	resolved, err := rel.Resolve()
	if err != nil {
		return foreignkeys.Relation{}, err
	}
	if _, exists := m.relations[resolved.Key]; exists {
		return foreignkeys.Relation{}, fmt.Errorf("%w: field %s of %s declared twice",
			foreignkeys.ErrMisconfigured, resolved.Key, m.Collection)
	}
	m.relations[resolved.Key] = resolved
	return resolved, nil
}

// Relation returns the relation stored in field.
func (m *Model) Relation(field string) (foreignkeys.Relation, bool) {
	rel, ok := m.relations[field]
	return rel, ok
}

// Fields lists the foreign key fields declared on the model.
func (m *Model) Fields() []string {
	return slices.Sorted(maps.Keys(m.relations))
}
