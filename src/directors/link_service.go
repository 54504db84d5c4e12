package directors

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"syndrlinks/src/document"
	"syndrlinks/src/foreignkeys"
)

var ErrUnknownCollection = errors.New("unknown collection")

// LinkService runs reference list commands against a backend. Each configured relation
// is declared on its owner and, mirrored, on its target.
type LinkService struct {
	repo   *document.Repository
	models map[string]*document.Model
	logger *zap.SugaredLogger
}

func NewLinkService(backend document.Backend, relations []foreignkeys.Relation, logger *zap.SugaredLogger) (*LinkService, error) {
	s := &LinkService{
		repo:   document.NewRepository(backend, logger),
		models: make(map[string]*document.Model),
		logger: logger,
	}
	for _, rel := range relations {
		resolved, err := s.model(rel.Owner).HasAndBelongsToMany(rel)
		if err != nil {
			return nil, err
		}
		inverse := resolved.Inverse()
		if inverse.Owner == resolved.Owner && inverse.Key == resolved.Key {
			// self-referential with a single field
			continue
		}
		if _, err := s.model(inverse.Owner).HasAndBelongsToMany(inverse); err != nil {
			return nil, err
		}
		logger.Debugf("Declared %s.%s <-> %s.%s", resolved.Owner, resolved.Key, resolved.Target, resolved.InverseKey)
	}
	return s, nil
}

func (s *LinkService) model(collection string) *document.Model {
	m, exists := s.models[collection]
	if !exists {
		m = document.NewModel(collection)
		s.models[collection] = m
	}
	return m
}

// Collections lists every collection taking part in a relation.
func (s *LinkService) Collections() []string {
	return slices.Sorted(maps.Keys(s.models))
}

// Fields lists the reference fields declared on collection.
func (s *LinkService) Fields(collection string) ([]string, error) {
	m, err := s.lookup(collection)
	if err != nil {
		return nil, err
	}
	return m.Fields(), nil
}

func (s *LinkService) lookup(collection string) (*document.Model, error) {
	m, exists := s.models[collection]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return m, nil
}

// Create saves a new, empty document and returns its id.
func (s *LinkService) Create(ctx context.Context, collection string) (string, error) {
	m, err := s.lookup(collection)
	if err != nil {
		return "", err
	}
	d := s.repo.New(m)
	if err := s.repo.Save(ctx, d); err != nil {
		return "", err
	}
	s.logger.Infof("Created %s %s", collection, d.ID())
	return d.ID(), nil
}

func (s *LinkService) Show(ctx context.Context, collection, id, field string) ([]string, error) {
	_, list, err := s.references(ctx, collection, id, field)
	if err != nil {
		return nil, err
	}
	return list.Values(), nil
}

// Add links targetID to the document and the document back to targetID.
func (s *LinkService) Add(ctx context.Context, collection, id, field, targetID string) ([]string, error) {
	_, list, err := s.references(ctx, collection, id, field)
	if err != nil {
		return nil, err
	}
	if err := list.Add(ctx, targetID); err != nil {
		return nil, err
	}
	return list.Values(), nil
}

func (s *LinkService) Remove(ctx context.Context, collection, id, field, targetID string) ([]string, error) {
	_, list, err := s.references(ctx, collection, id, field)
	if err != nil {
		return nil, err
	}
	if err := list.Remove(ctx, targetID); err != nil {
		return nil, err
	}
	return list.Values(), nil
}

// Set replaces the document's list with targetIDs. Targets dropped from the list keep
// their back-reference.
func (s *LinkService) Set(ctx context.Context, collection, id, field string, targetIDs []string) ([]string, error) {
	d, _, err := s.references(ctx, collection, id, field)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.SetReferences(ctx, d, field, targetIDs)
	if err != nil {
		return nil, err
	}
	return list.Values(), nil
}

func (s *LinkService) references(ctx context.Context, collection, id, field string) (*document.Document, *foreignkeys.ReferenceList[string], error) {
	m, err := s.lookup(collection)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.repo.Find(ctx, m, id)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.repo.References(d, field)
	if err != nil {
		return nil, nil, err
	}
	return d, list, nil
}
