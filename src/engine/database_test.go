package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"syndrlinks/src/document"
	"syndrlinks/src/foreignkeys"
)

func openTestDatabase(t *testing.T, dir string) *Database {
	t.Helper()
	db, err := OpenDatabase(dir, Options{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDatabase_AddToSetIsIdempotent(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "preferences", "R", map[string]any{"name": "testing"}))

	require.NoError(t, db.UpdateOne(ctx, "preferences", "R", foreignkeys.AddToSet, "person_ids", "P"))
	require.NoError(t, db.UpdateOne(ctx, "preferences", "R", foreignkeys.AddToSet, "person_ids", "P"))

	fields, err := db.FindByID(ctx, "preferences", "R")
	require.NoError(t, err)
	assert.Equal(t, []any{"P"}, fields["person_ids"])
	assert.Equal(t, "testing", fields["name"])
}

func TestDatabase_PullRemovesEveryOccurrence(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "people", "P", map[string]any{"preference_ids": []string{"R", "S", "R"}}))

	require.NoError(t, db.UpdateOne(ctx, "people", "P", foreignkeys.Pull, "preference_ids", "R"))

	fields, err := db.FindByID(ctx, "people", "P")
	require.NoError(t, err)
	assert.Equal(t, []any{"S"}, fields["preference_ids"])
}

func TestDatabase_PullOnMissingFieldIsNoop(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "people", "P", nil))

	require.NoError(t, db.UpdateOne(ctx, "people", "P", foreignkeys.Pull, "preference_ids", "R"))

	fields, err := db.FindByID(ctx, "people", "P")
	require.NoError(t, err)
	assert.NotContains(t, fields, "preference_ids")
}

func TestDatabase_SetReplacesField(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "people", "P", map[string]any{"preference_ids": []any{"OLD"}}))

	require.NoError(t, db.UpdateOne(ctx, "people", "P", foreignkeys.Set, "preference_ids", []string{"R2", "R1"}))

	fields, err := db.FindByID(ctx, "people", "P")
	require.NoError(t, err)
	assert.Equal(t, []any{"R2", "R1"}, fields["preference_ids"])
}

func TestDatabase_UpdateManyMatchesIDs(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())
	ctx := t.Context()
	for _, id := range []string{"R1", "R2", "R3"} {
		require.NoError(t, db.Insert(ctx, "preferences", id, nil))
	}

	require.NoError(t, db.UpdateMany(ctx, "preferences", []any{"R1", "R3", "MISSING"}, foreignkeys.AddToSet, "person_ids", "P"))

	for id, want := range map[string]bool{"R1": true, "R2": false, "R3": true} {
		fields, err := db.FindByID(ctx, "preferences", id)
		require.NoError(t, err)
		if want {
			assert.Equal(t, []any{"P"}, fields["person_ids"], id)
		} else {
			assert.NotContains(t, fields, "person_ids", id)
		}
	}
}

func TestDatabase_UpdateMissingDocumentIsNoop(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())

	require.NoError(t, db.UpdateOne(t.Context(), "preferences", "NOPE", foreignkeys.AddToSet, "person_ids", "P"))

	_, err := db.FindByID(t.Context(), "preferences", "NOPE")
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestDatabase_ArrayOperatorOnScalarFails(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "preferences", "R", map[string]any{"person_ids": "P"}))

	err := db.UpdateOne(ctx, "preferences", "R", foreignkeys.AddToSet, "person_ids", "Q")
	assert.ErrorIs(t, err, ErrNotAnArray)

	fields, err := db.FindByID(ctx, "preferences", "R")
	require.NoError(t, err)
	assert.Equal(t, "P", fields["person_ids"], "failed update leaves the document untouched")
}

func TestDatabase_RejectsNonStringIDs(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())

	err := db.UpdateOne(t.Context(), "people", 42, foreignkeys.Set, "name", "x")
	assert.ErrorIs(t, err, ErrUnsupportedID)

	err = db.UpdateMany(t.Context(), "people", []any{"P", 7}, foreignkeys.AddToSet, "x", "y")
	assert.ErrorIs(t, err, ErrUnsupportedID)
}

func TestDatabase_InsertDuplicate(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "people", "P", nil))

	assert.ErrorIs(t, db.Insert(ctx, "people", "P", nil), ErrDuplicateID)
}

func TestDatabase_FindReturnsCopy(t *testing.T) {
	db := openTestDatabase(t, t.TempDir())
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "people", "P", map[string]any{"preference_ids": []any{"R"}}))

	fields, err := db.FindByID(ctx, "people", "P")
	require.NoError(t, err)
	fields["preference_ids"].([]any)[0] = "changed"

	fields, err = db.FindByID(ctx, "people", "P")
	require.NoError(t, err)
	assert.Equal(t, []any{"R"}, fields["preference_ids"])
}

func TestDatabase_ReopenLoadsBundles(t *testing.T) {
	dir := t.TempDir()
	ctx := t.Context()

	db := openTestDatabase(t, dir)
	require.NoError(t, db.Insert(ctx, "people", "P", map[string]any{"preference_ids": []any{}}))
	require.NoError(t, db.UpdateOne(ctx, "people", "P", foreignkeys.AddToSet, "preference_ids", "R"))
	require.NoError(t, db.Close())

	reopened := openTestDatabase(t, dir)
	fields, err := reopened.FindByID(ctx, "people", "P")
	require.NoError(t, err)
	assert.Equal(t, []any{"R"}, fields["preference_ids"])
	assert.Contains(t, reopened.ListBundles(), "people")
}

func TestDatabase_CorruptBundleFile(t *testing.T) {
	dir := t.TempDir()
	db := openTestDatabase(t, dir)
	require.NoError(t, db.Insert(t.Context(), "people", "P", map[string]any{"name": "Alice"}))

	path := filepath.Join(dir, "people.bnd")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a byte inside the payload; the outer document still decodes.
	idx := len(data) / 2
	data[idx] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = OpenDatabase(dir, Options{}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestDatabase_JournalRecordsUpdates(t *testing.T) {
	dir := t.TempDir()
	db := openTestDatabase(t, dir)
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "preferences", "R", nil))
	require.NoError(t, db.UpdateOne(ctx, "preferences", "R", foreignkeys.AddToSet, "person_ids", "P"))

	matches, err := filepath.Glob(filepath.Join(dir, "journal", "syndrlinks_*.journal"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"command":"insert"`)
	assert.Contains(t, string(data), `"command":"$addToSet"`)
}

type failingBundleStore struct {
	BundleStore
}

func (failingBundleStore) WriteBundleFile(*Bundle) error {
	return errors.New("disk full")
}

func TestDatabase_FailedWriteIsNotJournaled(t *testing.T) {
	dir := t.TempDir()
	db := openTestDatabase(t, dir)
	ctx := t.Context()
	require.NoError(t, db.Insert(ctx, "preferences", "R", nil))

	db.store = failingBundleStore{BundleStore: db.store}
	require.Error(t, db.UpdateOne(ctx, "preferences", "R", foreignkeys.AddToSet, "person_ids", "P"))
	require.Error(t, db.Insert(ctx, "preferences", "S", nil))

	fields, err := db.FindByID(ctx, "preferences", "R")
	require.NoError(t, err)
	assert.NotContains(t, fields, "person_ids")
	_, err = db.FindByID(ctx, "preferences", "S")
	assert.ErrorIs(t, err, document.ErrNotFound)

	matches, err := filepath.Glob(filepath.Join(dir, "journal", "syndrlinks_*.journal"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"command":"insert"`)
	assert.NotContains(t, string(data), `"command":"$addToSet"`)
	assert.NotContains(t, string(data), `"details":"S"`)
}
