package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/unix"

	"syndrlinks/src/helpers"
)

const bundleFileExt = ".bnd"

// BundleStore persists whole bundles.
type BundleStore interface {
	LoadAllBundleDataFiles() (map[string]*Bundle, error)
	LoadBundleDataFile(fileName string) (*Bundle, error)
	WriteBundleFile(bundle *Bundle) error
}

type BundleStorageEngine struct {
	DataDirectory string
	logger        *zap.SugaredLogger
}

var _ BundleStore = (*BundleStorageEngine)(nil)

// bundleFile is the on-disk layout: the encoded documents plus their checksum.
type bundleFile struct {
	Name     string `bson:"name"`
	Payload  []byte `bson:"payload"`
	Checksum []byte `bson:"checksum"`
}

type bundlePayload struct {
	Documents []storedDocument `bson:"documents"`
}

type storedDocument struct {
	ID        string    `bson:"_id"`
	Fields    bson.M    `bson:"fields"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewBundleStore(dataDir string, logger *zap.SugaredLogger) (*BundleStorageEngine, error) {
	store := &BundleStorageEngine{
		DataDirectory: dataDir,
		logger:        logger,
	}

	// Ensure the data directory exists
	if err := os.MkdirAll(store.DataDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", store.DataDirectory, err)
	}

	return store, nil
}

// LoadAllBundleDataFiles loads every bundle file in the data directory, keyed by name.
func (b *BundleStorageEngine) LoadAllBundleDataFiles() (map[string]*Bundle, error) {
	files, err := os.ReadDir(b.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("error reading data directory %s: %w", b.DataDirectory, err)
	}

	bundles := make(map[string]*Bundle)
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") || filepath.Ext(file.Name()) != bundleFileExt {
			continue
		}
		bundle, err := b.LoadBundleDataFile(file.Name())
		if err != nil {
			return nil, err
		}
		bundles[bundle.Name] = bundle
	}
	b.logger.Debugf("Loaded %d bundles from %s", len(bundles), b.DataDirectory)
	return bundles, nil
}

// LoadBundleDataFile memory maps a bundle file and decodes it.
func (b *BundleStorageEngine) LoadBundleDataFile(fileName string) (*Bundle, error) {
	filePath := filepath.Join(b.DataDirectory, fileName)
	if !helpers.FileExists(filePath, b.logger) {
		return nil, fmt.Errorf("bundle file %s does not exist", fileName)
	}

	bundleFile, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening bundle file %s: %w", fileName, err)
	}
	defer bundleFile.Close()

	stat, err := bundleFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("error reading stats of bundle file %s: %w", fileName, err)
	}
	fileSize := int(stat.Size())
	if fileSize == 0 {
		return nil, fmt.Errorf("bundle file %s is empty", fileName)
	}

	data, err := unix.Mmap(int(bundleFile.Fd()), 0, fileSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("error memory mapping bundle file %s: %w", fileName, err)
	}
	defer unix.Munmap(data)

	bundle, err := decodeBundle(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding bundle file %s: %w", fileName, err)
	}
	return bundle, nil
}

// WriteBundleFile replaces the bundle's file with its current documents.
func (b *BundleStorageEngine) WriteBundleFile(bundle *Bundle) error {
	encoded, err := encodeBundle(bundle)
	if err != nil {
		return fmt.Errorf("error encoding bundle %s: %w", bundle.Name, err)
	}
	if err := helpers.WriteFileAtomic(b.bundlePath(bundle.Name), encoded); err != nil {
		return fmt.Errorf("error writing bundle %s: %w", bundle.Name, err)
	}
	return nil
}

func (b *BundleStorageEngine) bundlePath(bundleName string) string {
	return filepath.Join(b.DataDirectory, bundleName+bundleFileExt)
}

func encodeBundle(bundle *Bundle) ([]byte, error) {
	payload := bundlePayload{Documents: make([]storedDocument, 0, len(bundle.Documents))}
	for _, doc := range bundle.Documents {
		payload.Documents = append(payload.Documents, storedDocument{
			ID:        doc.DocumentID,
			Fields:    doc.Fields,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	encodedPayload, err := helpers.EncodeBSON(payload)
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(encodedPayload)
	return helpers.EncodeBSON(bundleFile{
		Name:     bundle.Name,
		Payload:  encodedPayload,
		Checksum: sum[:],
	})
}

func decodeBundle(data []byte) (*Bundle, error) {
	var file bundleFile
	if err := helpers.DecodeBSON(data, &file); err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(file.Payload)
	if !bytes.Equal(sum[:], file.Checksum) {
		return nil, ErrChecksumMismatch
	}

	var payload bundlePayload
	if err := helpers.DecodeBSON(file.Payload, &payload); err != nil {
		return nil, err
	}

	bundle := NewBundle(file.Name)
	for _, stored := range payload.Documents {
		fields := make(map[string]any, len(stored.Fields))
		for k, v := range stored.Fields {
			fields[k] = cloneValue(v)
		}
		bundle.Documents[stored.ID] = &Document{
			DocumentID: stored.ID,
			Fields:     fields,
			CreatedAt:  stored.CreatedAt,
			UpdatedAt:  stored.UpdatedAt,
		}
	}
	return bundle, nil
}
