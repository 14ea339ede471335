// Package dataset builds named train/val/test datasets from the photo store
// and maintains them afterwards.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/logging"
)

// Store is the part of the metadata store the selector needs.
type Store interface {
	database.PhotoReader
	database.DatasetWriter
}

// CreateRequest describes a dataset to select.
type CreateRequest struct {
	Name       string
	Filter     database.Filter
	SplitRatio string // "train/test/val" percentages, e.g. "70/10/20"
	Classes    string // comma-separated labels
}

// Selector creates and maintains dataset records.
type Selector struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the random source used to shuffle photos.
func WithRand(rng *rand.Rand) Option {
	return func(s *Selector) { s.rng = rng }
}

// WithClock overrides the clock used for creation times and pruning.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// NewSelector creates a selector over store. A nil logger logs to slog.Default().
func NewSelector(store Store, logger *slog.Logger, opts ...Option) *Selector {
	s := &Selector{
		store:  store,
		logger: logging.OrDefault(logger),
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create selects the photos matching the request filter, shuffles and splits
// them and persists the dataset. It returns the new dataset id, or "" with
// an error on any failure.
//
// Creation is two-phase: the id is reserved before the photo query, so a
// failure afterwards leaves an incomplete record behind. Incomplete records
// are invisible to name lookups and are removed by Prune.
func (s *Selector) Create(ctx context.Context, req CreateRequest) (string, error) {
	if req.Name == "" {
		return "", errors.New("dataset name is required")
	}
	ratio, err := ParseSplitRatio(req.SplitRatio)
	if err != nil {
		return "", err
	}
	classes, err := ParseClasses(req.Classes)
	if err != nil {
		return "", err
	}

	exists, err := s.NameExists(ctx, req.Name)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("dataset %q: %w", req.Name, database.ErrNameConflict)
	}

	id := database.NewID()
	if err := s.store.ReserveDataset(ctx, id, s.now().UTC()); err != nil {
		return "", fmt.Errorf("reserve dataset: %w", err)
	}

	photos, err := s.store.FindPhotos(ctx, req.Filter)
	if err != nil {
		s.logger.Warn("dataset left incomplete", "id", id, "name", req.Name, "error", err)
		return "", fmt.Errorf("query photos: %w", err)
	}

	ids := make([]string, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}
	s.shuffle(ids)
	train, val, test := Partition(ids, ratio)

	d := &database.Dataset{
		ID:      id,
		Name:    req.Name,
		Classes: classes,
		Train:   train,
		Val:     val,
		Test:    test,
	}
	if err := s.store.FillDataset(ctx, d); err != nil {
		s.logger.Warn("dataset left incomplete", "id", id, "name", req.Name, "error", err)
		return "", fmt.Errorf("store dataset %q: %w", req.Name, err)
	}

	s.logger.Info("dataset created",
		"id", id,
		"name", req.Name,
		"ratio", ratio.String(),
		"train", len(train),
		"val", len(val),
		"test", len(test))
	return id, nil
}

func (s *Selector) shuffle(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// NameExists reports whether a complete dataset carries the name.
func (s *Selector) NameExists(ctx context.Context, name string) (bool, error) {
	n, err := s.store.CountDatasetsByName(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check dataset name: %w", err)
	}
	return n > 0, nil
}

// GetByName returns the dataset with the given name.
func (s *Selector) GetByName(ctx context.Context, name string) (*database.Dataset, error) {
	return s.store.GetDatasetByName(ctx, name)
}

// GetByID returns the dataset with the given id. Incomplete records yield
// ErrIncompleteDataset.
func (s *Selector) GetByID(ctx context.Context, id string) (*database.Dataset, error) {
	d, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Complete() {
		return nil, fmt.Errorf("dataset %s: %w", id, database.ErrIncompleteDataset)
	}
	return d, nil
}

// ListNames returns all dataset names in lexicographic order.
func (s *Selector) ListNames(ctx context.Context) ([]string, error) {
	return s.store.ListDatasetNames(ctx)
}

// RemovePhoto removes a photo id from whichever split holds it, searching
// train, then test, then val. It returns the split the photo was removed
// from, or ErrPhotoNotInDataset.
func (s *Selector) RemovePhoto(ctx context.Context, datasetID, photoID string) (database.Split, error) {
	if _, err := s.GetByID(ctx, datasetID); err != nil {
		return "", err
	}
	for _, split := range database.Splits {
		removed, err := s.store.RemovePhotoFromSplit(ctx, datasetID, photoID, split)
		if err != nil {
			return "", err
		}
		if removed {
			s.logger.Info("photo removed from dataset", "dataset", datasetID, "photo", photoID, "split", split)
			return split, nil
		}
	}
	return "", fmt.Errorf("photo %s in dataset %s: %w", photoID, datasetID, database.ErrPhotoNotInDataset)
}

// Prune deletes incomplete datasets reserved more than olderThan ago.
func (s *Selector) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan < 0 {
		return 0, fmt.Errorf("negative age %s", olderThan)
	}
	return s.store.DeleteIncompleteDatasets(ctx, s.now().Add(-olderThan))
}
