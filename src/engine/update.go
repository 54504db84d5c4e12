package engine

import (
	"fmt"
	"reflect"
	"slices"

	"go.mongodb.org/mongo-driver/bson"

	"syndrlinks/src/foreignkeys"
)

// applyUpdate applies one atomic operator to a single field of doc.
func applyUpdate(doc *Document, op foreignkeys.Operator, field string, value any) error {
	switch op {
	case foreignkeys.Set:
		doc.Fields[field] = cloneValue(normalize(value))
		return nil
	case foreignkeys.AddToSet:
		arr, err := arrayField(doc, field)
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(arr, func(e any) bool { return reflect.DeepEqual(e, value) }) {
			arr = append(arr, value)
		}
		doc.Fields[field] = arr
		return nil
	case foreignkeys.Pull:
		if _, ok := doc.Fields[field]; !ok {
			return nil
		}
		arr, err := arrayField(doc, field)
		if err != nil {
			return err
		}
		doc.Fields[field] = slices.DeleteFunc(arr, func(e any) bool { return reflect.DeepEqual(e, value) })
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
}

// arrayField returns the array stored in field. A missing field is an empty array.
func arrayField(doc *Document, field string) ([]any, error) {
	switch t := doc.Fields[field].(type) {
	case nil:
		return []any{}, nil
	case []any:
		return t, nil
	case bson.A:
		return []any(t), nil
	default:
		return nil, fmt.Errorf("%w: %s holds %T", ErrNotAnArray, field, t)
	}
}

// normalize turns typed slices such as []string into []any so stored arrays have a
// single representation.
func normalize(value any) any {
	if value == nil {
		return nil
	}
	switch value.(type) {
	case []any, bson.A, []byte:
		return value
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return value
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
