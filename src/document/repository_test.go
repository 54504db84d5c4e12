package document_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"syndrlinks/src/document"
	"syndrlinks/src/engine"
	"syndrlinks/src/foreignkeys"
)

type fixture struct {
	repo        *document.Repository
	db          *engine.Database
	people      *document.Model
	preferences *document.Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := engine.OpenDatabase(t.TempDir(), engine.Options{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	people := document.NewModel("people")
	rel, err := people.HasAndBelongsToMany(foreignkeys.Relation{Target: "preferences"})
	require.NoError(t, err)

	preferences := document.NewModel("preferences")
	_, err = preferences.HasAndBelongsToMany(rel.Inverse())
	require.NoError(t, err)

	return &fixture{
		repo:        document.NewRepository(db, zap.NewNop().Sugar()),
		db:          db,
		people:      people,
		preferences: preferences,
	}
}

func (f *fixture) create(t *testing.T, model *document.Model) *document.Document {
	t.Helper()
	d := document.New(model)
	require.NoError(t, f.repo.Save(t.Context(), d))
	return d
}

func (f *fixture) references(t *testing.T, d *document.Document, field string) *foreignkeys.ReferenceList[string] {
	t.Helper()
	list, err := f.repo.References(d, field)
	require.NoError(t, err)
	return list
}

func (f *fixture) reloaded(t *testing.T, model *document.Model, id, field string) []string {
	t.Helper()
	d, err := f.repo.Find(t.Context(), model, id)
	require.NoError(t, err)
	return f.references(t, d, field).Values()
}

func TestAdd_BothNew(t *testing.T) {
	f := newFixture(t)
	person := document.New(f.people)
	preference := document.New(f.preferences)

	require.NoError(t, f.references(t, person, "preference_ids").Add(t.Context(), preference.ID()))

	assert.True(t, f.references(t, person, "preference_ids").Equal([]string{preference.ID()}))
	assert.Zero(t, f.references(t, preference, "person_ids").Len())
	_, err := f.repo.Find(t.Context(), f.preferences, preference.ID())
	assert.ErrorIs(t, err, document.ErrNotFound, "nothing reached the store")
}

func TestAdd_PersistedOwnerNewTarget(t *testing.T) {
	f := newFixture(t)
	person := f.create(t, f.people)
	preference := document.New(f.preferences)

	require.NoError(t, f.references(t, person, "preference_ids").Add(t.Context(), preference.ID()))

	assert.Equal(t, []string{preference.ID()}, f.references(t, person, "preference_ids").Values())
	assert.Zero(t, f.references(t, preference, "person_ids").Len())
	assert.Equal(t, []string{preference.ID()}, f.reloaded(t, f.people, person.ID(), "preference_ids"))
}

func TestAdd_BothPersisted(t *testing.T) {
	f := newFixture(t)
	person := f.create(t, f.people)
	preference := f.create(t, f.preferences)

	require.NoError(t, f.references(t, person, "preference_ids").Add(t.Context(), preference.ID()))

	assert.False(t, person.Changed("preference_ids"), "the store already holds the new keys")
	assert.Equal(t, []string{preference.ID()}, f.reloaded(t, f.people, person.ID(), "preference_ids"))
	assert.Equal(t, []string{person.ID()}, f.reloaded(t, f.preferences, preference.ID(), "person_ids"))

	require.NoError(t, f.repo.Reload(t.Context(), preference))
	assert.Equal(t, []string{person.ID()}, f.references(t, preference, "person_ids").Values())
}

func TestRemove_BothPersisted(t *testing.T) {
	f := newFixture(t)
	person := f.create(t, f.people)
	preference := f.create(t, f.preferences)
	list := f.references(t, person, "preference_ids")
	require.NoError(t, list.Add(t.Context(), preference.ID()))

	require.NoError(t, list.Remove(t.Context(), preference.ID()))

	assert.Empty(t, f.reloaded(t, f.people, person.ID(), "preference_ids"))
	assert.Empty(t, f.reloaded(t, f.preferences, preference.ID(), "person_ids"))
}

func TestAddTwiceRemoveOnce(t *testing.T) {
	f := newFixture(t)
	person := f.create(t, f.people)
	preference := f.create(t, f.preferences)
	list := f.references(t, person, "preference_ids")
	ctx := t.Context()

	require.NoError(t, list.Add(ctx, preference.ID()))
	require.NoError(t, list.Add(ctx, preference.ID()))

	// Duplicates live in the owner's sequence; both stored arrays behave as sets.
	assert.Equal(t, []string{preference.ID(), preference.ID()}, list.Values())
	assert.Equal(t, []string{person.ID()}, f.reloaded(t, f.preferences, preference.ID(), "person_ids"))
	assert.Equal(t, []string{preference.ID()}, f.reloaded(t, f.people, person.ID(), "preference_ids"))

	require.NoError(t, list.Remove(ctx, preference.ID()))

	assert.Empty(t, f.reloaded(t, f.preferences, preference.ID(), "person_ids"))
	assert.Empty(t, list.Values())
}

func TestSetReferences_Persisted(t *testing.T) {
	f := newFixture(t)
	person := f.create(t, f.people)
	r1 := f.create(t, f.preferences)
	r2 := f.create(t, f.preferences)

	_, err := f.repo.SetReferences(t.Context(), person, "preference_ids", []string{r1.ID(), r2.ID()})
	require.NoError(t, err)

	assert.False(t, person.Changed("preference_ids"))
	assert.Equal(t, []string{r1.ID(), r2.ID()}, f.reloaded(t, f.people, person.ID(), "preference_ids"))
	assert.Contains(t, f.reloaded(t, f.preferences, r1.ID(), "person_ids"), person.ID())
	assert.Contains(t, f.reloaded(t, f.preferences, r2.ID(), "person_ids"), person.ID())
}

func TestSetReferences_LeavesStaleBackReferences(t *testing.T) {
	f := newFixture(t)
	person := f.create(t, f.people)
	r1 := f.create(t, f.preferences)
	r2 := f.create(t, f.preferences)
	ctx := t.Context()

	_, err := f.repo.SetReferences(ctx, person, "preference_ids", []string{r1.ID()})
	require.NoError(t, err)
	_, err = f.repo.SetReferences(ctx, person, "preference_ids", []string{r2.ID()})
	require.NoError(t, err)

	assert.Equal(t, []string{r2.ID()}, f.reloaded(t, f.people, person.ID(), "preference_ids"))
	// Replacing the list only adds back-references; r1 keeps pointing at person.
	assert.Equal(t, []string{person.ID()}, f.reloaded(t, f.preferences, r1.ID(), "person_ids"))
}

func TestSetReferences_NewOwnerSavesNormally(t *testing.T) {
	f := newFixture(t)
	person := document.New(f.people)
	r1 := f.create(t, f.preferences)

	_, err := f.repo.SetReferences(t.Context(), person, "preference_ids", []any{r1.ID()})
	require.NoError(t, err)
	assert.True(t, person.Changed("preference_ids"))
	assert.Empty(t, f.reloaded(t, f.preferences, r1.ID(), "person_ids"))

	require.NoError(t, f.repo.Save(t.Context(), person))

	assert.True(t, person.Persisted())
	assert.False(t, person.Changed("preference_ids"))
	assert.Equal(t, []string{r1.ID()}, f.reloaded(t, f.people, person.ID(), "preference_ids"))
}

func TestDefaultsAreNotShared(t *testing.T) {
	f := newFixture(t)
	a := document.New(f.people)
	b := document.New(f.people)

	require.NoError(t, f.references(t, a, "preference_ids").Add(t.Context(), "R"))

	assert.Equal(t, 1, f.references(t, a, "preference_ids").Len())
	assert.Zero(t, f.references(t, b, "preference_ids").Len())
}

func TestSave_WritesChangedAttributes(t *testing.T) {
	f := newFixture(t)
	person := f.create(t, f.people)
	person.Set("ssn", "345-12-2345")
	require.True(t, person.Changed("ssn"))

	require.NoError(t, f.repo.Save(t.Context(), person))

	assert.Empty(t, person.Changes())
	reloaded, err := f.repo.Find(t.Context(), f.people, person.ID())
	require.NoError(t, err)
	ssn, ok := reloaded.Get("ssn")
	require.True(t, ok)
	assert.Equal(t, "345-12-2345", ssn)
}

func TestReferences_UnknownField(t *testing.T) {
	f := newFixture(t)

	_, err := f.repo.References(document.New(f.people), "ssn")
	assert.ErrorIs(t, err, document.ErrUnknownField)
}

type sequentialIDs struct {
	*engine.Database
	next int
}

func (b *sequentialIDs) NewID() string {
	b.next++
	return fmt.Sprintf("doc-%d", b.next)
}

func TestRepositoryNew_UsesBackendIDs(t *testing.T) {
	f := newFixture(t)
	backend := &sequentialIDs{Database: f.db}
	repo := document.NewRepository(backend, zap.NewNop().Sugar())

	d := repo.New(f.people)
	assert.Equal(t, "doc-1", d.ID())
	assert.False(t, d.Persisted())
	require.NoError(t, repo.Save(t.Context(), d))

	_, err := repo.Find(t.Context(), f.people, "doc-1")
	assert.NoError(t, err)

	assert.Len(t, f.repo.New(f.people).ID(), 36, "backends without ids fall back to UUIDs")
}
