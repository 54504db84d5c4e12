package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"syndrlinks/src/foreignkeys"
)

const (
	BackendEmbedded = "embedded"
	BackendMongo    = "mongo"
)

type Arguments struct {
	// The file path to the datafiles of the embedded backend
	DataDir string `yaml:"datadir"`

	ConfigFile string `yaml:"-"`

	// embedded, mongo
	Backend string `yaml:"backend"`

	MongoURI string `yaml:"mongo_uri"`
	Database string `yaml:"database"`

	// Store ids and reference keys as ObjectIDs (mongo backend)
	ObjectIDs bool `yaml:"object_ids"`

	// Days to keep journal files, 0 keeps everything
	JournalRetentionDays int `yaml:"journal_retention_days"`

	// Strongly verbose logging
	Verbose bool `yaml:"verbose"`
	Debug   bool `yaml:"debug"`

	Relations []foreignkeys.Relation `yaml:"relations"`
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the process wide settings.
func GetSettings() *Arguments {
	once.Do(func() {
		instance = &Arguments{}
	})
	return instance
}

// LoadConfigFile reads a YAML config file. Values already set explicitly, as reported
// by explicit, are kept; everything else present in the file overrides the current value.
func (a *Arguments) LoadConfigFile(path string, explicit func(name string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	var file Arguments
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", path, err)
	}

	if file.DataDir != "" && !explicit("datadir") {
		a.DataDir = file.DataDir
	}
	if file.Backend != "" && !explicit("backend") {
		a.Backend = file.Backend
	}
	if file.MongoURI != "" && !explicit("mongo-uri") {
		a.MongoURI = file.MongoURI
	}
	if file.Database != "" && !explicit("database") {
		a.Database = file.Database
	}
	if file.ObjectIDs && !explicit("object-ids") {
		a.ObjectIDs = true
	}
	if file.JournalRetentionDays != 0 && !explicit("journal-retention") {
		a.JournalRetentionDays = file.JournalRetentionDays
	}
	if file.Verbose && !explicit("verbose") {
		a.Verbose = true
	}
	if file.Debug && !explicit("debug") {
		a.Debug = true
	}
	a.Relations = append(file.Relations, a.Relations...)
	return nil
}

// ParseRelation parses owner:target[:key:inverse_key], e.g. "people:preferences".
func ParseRelation(s string) (foreignkeys.Relation, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		return foreignkeys.Relation{Owner: parts[0], Target: parts[1]}, nil
	case 4:
		return foreignkeys.Relation{Owner: parts[0], Target: parts[1], Key: parts[2], InverseKey: parts[3]}, nil
	}
	return foreignkeys.Relation{}, fmt.Errorf("invalid relation %q (want owner:target or owner:target:key:inverse_key)", s)
}

// Validate validates the arguments and returns an error if invalid
func (a *Arguments) Validate() error {
	var errs []error
	switch a.Backend {
	case BackendEmbedded:
		if a.DataDir == "" {
			errs = append(errs, errors.New("datadir is required for the embedded backend"))
		}
	case BackendMongo:
		if a.MongoURI == "" {
			errs = append(errs, errors.New("mongo-uri is required for the mongo backend"))
		}
		if a.Database == "" {
			errs = append(errs, errors.New("database is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend: %s (must be '%s' or '%s')", a.Backend, BackendEmbedded, BackendMongo))
	}
	if a.ObjectIDs && a.Backend != BackendMongo {
		errs = append(errs, errors.New("object-ids requires the mongo backend"))
	}
	if a.JournalRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("invalid journal retention: %d", a.JournalRetentionDays))
	}
	for _, rel := range a.Relations {
		if _, err := rel.Resolve(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
