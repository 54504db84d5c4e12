package foreignkeys

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// Metadata describes both sides of a many-to-many relation.
type Metadata interface {
	// TargetCollection is the collection the foreign keys point into.
	TargetCollection() string
	// InverseForeignKey is the field on the target holding owner ids.
	InverseForeignKey() string
	// OwnerCollection is the collection the reference list is declared on.
	OwnerCollection() string
	// ForeignKey is the field on the owner holding target ids.
	ForeignKey() string
}

// Relation is a declared has-and-belongs-to-many relation.
type Relation struct {
	// Name is informational, e.g. "preferences".
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
	// Target is the collection referenced by Key.
	Target string `yaml:"target"`
	// Key defaults to the singular target name plus "_ids".
	Key string `yaml:"key"`
	// InverseKey defaults to the singular owner name plus "_ids".
	InverseKey string `yaml:"inverse_key"`
}

func (r Relation) TargetCollection() string  { return r.Target }
func (r Relation) InverseForeignKey() string { return r.InverseKey }
func (r Relation) OwnerCollection() string   { return r.Owner }
func (r Relation) ForeignKey() string        { return r.Key }

// Resolve returns a copy of r with conventional key names filled in.
func (r Relation) Resolve() (Relation, error) {
	if r.Owner == "" || r.Target == "" {
		return Relation{}, fmt.Errorf("%w: relation %q needs both owner and target collections", ErrMisconfigured, r.Name)
	}
	if r.Key == "" {
		r.Key = foreignKeyFor(r.Target)
	}
	if r.InverseKey == "" {
		r.InverseKey = foreignKeyFor(r.Owner)
	}
	if r.Name == "" {
		r.Name = r.Target
	}
	return r, nil
}

// Inverse returns the same relation declared from the target side.
func (r Relation) Inverse() Relation {
	return Relation{
		Name:       r.Owner,
		Owner:      r.Target,
		Target:     r.Owner,
		Key:        r.InverseKey,
		InverseKey: r.Key,
	}
}

// foreignKeyFor converts a collection name into its key field name.
// e.g. "preferences" -> "preference_ids", "people" -> "person_ids"
func foreignKeyFor(collection string) string {
	return inflection.Singular(strings.ToLower(collection)) + "_ids"
}

// relation is the set of handles a proxy needs, read once from Metadata.
type relation struct {
	targetCollection  string
	inverseForeignKey string
	ownerCollection   string
	foreignKey        string
}

func resolveMetadata(meta Metadata) (relation, error) {
	if meta == nil {
		return relation{}, fmt.Errorf("%w: no metadata", ErrMisconfigured)
	}
	rel := relation{
		targetCollection:  meta.TargetCollection(),
		inverseForeignKey: meta.InverseForeignKey(),
		ownerCollection:   meta.OwnerCollection(),
		foreignKey:        meta.ForeignKey(),
	}
	switch {
	case rel.targetCollection == "":
		return relation{}, fmt.Errorf("%w: missing target collection", ErrMisconfigured)
	case rel.inverseForeignKey == "":
		return relation{}, fmt.Errorf("%w: missing inverse foreign key on %s", ErrMisconfigured, rel.targetCollection)
	case rel.ownerCollection == "":
		return relation{}, fmt.Errorf("%w: missing owner collection", ErrMisconfigured)
	case rel.foreignKey == "":
		return relation{}, fmt.Errorf("%w: missing foreign key on %s", ErrMisconfigured, rel.ownerCollection)
	}
	return rel, nil
}
