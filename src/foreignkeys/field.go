package foreignkeys

import (
	"context"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Constraint converts a single stored value into a foreign key.
type Constraint[K comparable] func(v any) (K, error)

// StringConstraint accepts string keys, object ids in their hex form and anything
// implementing fmt.Stringer.
func StringConstraint(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case primitive.ObjectID:
		return t.Hex(), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return "", fmt.Errorf("%w: %T is not a string key", ErrInvalidKey, v)
}

// ObjectIDConstraint accepts object ids and their hex form.
func ObjectIDConstraint(v any) (primitive.ObjectID, error) {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t, nil
	case string:
		id, err := primitive.ObjectIDFromHex(t)
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return id, nil
	}
	return primitive.NilObjectID, fmt.Errorf("%w: %T is not an object id", ErrInvalidKey, v)
}

// ArrayField is the field definition of a foreign key array. It produces a fresh
// ReferenceList whenever the field is defaulted, read from storage or assigned.
type ArrayField[K comparable] struct {
	Name       string
	Metadata   Metadata
	Store      Store
	Constraint Constraint[K]
}

// Default returns an empty list that is never shared with another document.
func (f *ArrayField[K]) Default(owner Owner[K]) *ReferenceList[K] {
	return NewReferenceList(f.Store, owner, f.Metadata, f.Name, []K{})
}

// Deserialize wraps a value read from the owner's attributes. Values that already are
// a list are returned untouched.
func (f *ArrayField[K]) Deserialize(raw any, owner Owner[K]) (*ReferenceList[K], error) {
	if list, ok := raw.(*ReferenceList[K]); ok {
		return list, nil
	}
	ids, err := f.convert(raw)
	if err != nil {
		return nil, err
	}
	return NewReferenceList(f.Store, owner, f.Metadata, f.Name, ids), nil
}

// Serialize handles assignment of the whole field. The converted keys are substituted
// into a new list, which persists both sides when the owner is already stored.
func (f *ArrayField[K]) Serialize(ctx context.Context, raw any, owner Owner[K]) (*ReferenceList[K], error) {
	ids, err := f.convert(raw)
	if err != nil {
		return nil, err
	}
	list := NewReferenceList(f.Store, owner, f.Metadata, f.Name, nil)
	if err := list.Substitute(ctx, ids); err != nil {
		return nil, err
	}
	return list, nil
}

func (f *ArrayField[K]) convert(raw any) ([]K, error) {
	switch t := raw.(type) {
	case nil:
		return []K{}, nil
	case []K:
		return t, nil
	case *ReferenceList[K]:
		return t.Values(), nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: field %s holds %T, want a list", ErrInvalidKey, f.Name, raw)
	}
	if f.Constraint == nil {
		return nil, fmt.Errorf("%w: field %s has no constraint for %T", ErrMisconfigured, f.Name, raw)
	}
	ids := make([]K, rv.Len())
	for i := range ids {
		id, err := f.Constraint(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("field %s index %d: %w", f.Name, i, err)
		}
		ids[i] = id
	}
	return ids, nil
}
