package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"syndrlinks/src/document"
	"syndrlinks/src/foreignkeys"
)

// Database is an embedded, file-backed document store. Updates are atomic per
// document; nothing spans documents.
type Database struct {
	DataDirectory string

	store   BundleStore
	journal *Journal
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	bundles map[string]*Bundle
}

var _ document.Backend = (*Database)(nil)

// Options tune an embedded database.
type Options struct {
	// JournalRetentionDays is how long daily journal files are kept. Zero keeps them all.
	JournalRetentionDays int
}

// OpenDatabase loads every bundle stored in dataDir.
func OpenDatabase(dataDir string, opts Options, logger *zap.SugaredLogger) (*Database, error) {
	store, err := NewBundleStore(dataDir, logger)
	if err != nil {
		return nil, err
	}
	bundles, err := store.LoadAllBundleDataFiles()
	if err != nil {
		return nil, err
	}
	journal, err := NewJournal(filepath.Join(dataDir, "journal", "syndrlinks.journal"), opts.JournalRetentionDays)
	if err != nil {
		return nil, err
	}
	if err := journal.CleanupOldJournals(); err != nil {
		logger.Warnf("Failed to clean up old journals: %v", err)
	}

	logger.Infof("Opened embedded database in %s with %d bundles", dataDir, len(bundles))
	return &Database{
		DataDirectory: dataDir,
		store:         store,
		journal:       journal,
		logger:        logger,
		bundles:       bundles,
	}, nil
}

func (db *Database) Close() error {
	return db.journal.Close()
}

// Bundle returns the named bundle, creating an empty one when it does not exist yet.
func (db *Database) Bundle(name string) *Bundle {
	db.mu.Lock()
	defer db.mu.Unlock()

	bundle, exists := db.bundles[name]
	if !exists {
		bundle = NewBundle(name)
		db.bundles[name] = bundle
	}
	return bundle
}

// ListBundles returns the names of all known bundles.
func (db *Database) ListBundles() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	names := make([]string, 0, len(db.bundles))
	for name := range db.bundles {
		names = append(names, name)
	}
	return names
}

func (db *Database) Insert(_ context.Context, collection, id string, fields map[string]any) error {
	bundle := db.Bundle(collection)
	bundle.mu.Lock()
	defer bundle.mu.Unlock()

	if _, exists := bundle.Documents[id]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicateID, collection, id)
	}
	now := time.Now()
	doc := &Document{
		DocumentID: id,
		Fields:     make(map[string]any, len(fields)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for k, v := range fields {
		doc.Fields[k] = cloneValue(normalize(v))
	}

	previous := bundle.snapshot()
	bundle.Documents[id] = doc
	if err := db.store.WriteBundleFile(bundle); err != nil {
		bundle.Documents = previous
		return err
	}
	db.record("insert", collection, id)
	return nil
}

// FindByID returns a copy of the stored fields.
func (db *Database) FindByID(_ context.Context, collection, id string) (map[string]any, error) {
	bundle := db.Bundle(collection)
	bundle.mu.Lock()
	defer bundle.mu.Unlock()

	doc, exists := bundle.Documents[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s %s", document.ErrNotFound, collection, id)
	}
	return doc.clone().Fields, nil
}

// UpdateOne applies op to the document with the given id. A missing document matches
// nothing and is not an error.
func (db *Database) UpdateOne(ctx context.Context, collection string, id any, op foreignkeys.Operator, field string, value any) error {
	key, ok := id.(string)
	if !ok {
		return fmt.Errorf("%w: got %T", ErrUnsupportedID, id)
	}
	return db.update(collection, []string{key}, op, field, value)
}

// UpdateMany applies op to every document whose id is in ids.
func (db *Database) UpdateMany(ctx context.Context, collection string, ids []any, op foreignkeys.Operator, field string, value any) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		key, ok := id.(string)
		if !ok {
			return fmt.Errorf("%w: got %T", ErrUnsupportedID, id)
		}
		keys = append(keys, key)
	}
	return db.update(collection, keys, op, field, value)
}

func (db *Database) update(collection string, keys []string, op foreignkeys.Operator, field string, value any) error {
	bundle := db.Bundle(collection)
	bundle.mu.Lock()
	defer bundle.mu.Unlock()

	previous := bundle.snapshot()
	matched := 0
	for _, key := range keys {
		current, exists := bundle.Documents[key]
		if !exists {
			continue
		}
		updated := current.clone()
		if err := applyUpdate(updated, op, field, value); err != nil {
			bundle.Documents = previous
			return fmt.Errorf("error updating %s %s: %w", collection, key, err)
		}
		updated.UpdatedAt = time.Now()
		bundle.Documents[key] = updated
		matched++
	}
	if matched == 0 {
		db.logger.Debugf("%s %s on %s matched no documents", op, field, collection)
		return nil
	}

	if err := db.store.WriteBundleFile(bundle); err != nil {
		bundle.Documents = previous
		return err
	}
	db.record(string(op), collection, fmt.Sprintf("%v %s=%v", keys, field, value))
	db.logger.Debugf("%s %s=%v on %d %s", op, field, value, matched, collection)
	return nil
}

// record journals a change once its bundle file is written. The change is already
// durable at that point, so a journal failure is logged rather than returned.
func (db *Database) record(command, collection, details string) {
	if err := db.journal.AddEntry(command, collection, details); err != nil {
		db.logger.Errorf("Failed to journal %s on %s: %v", command, collection, err)
	}
}
