// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/photo-curator/internal/database"
)

// Store is an in-memory database.Store. Records are deep-copied on the way
// in and out so callers cannot mutate stored state.
type Store struct {
	mu          sync.RWMutex
	photos      map[string]*database.Photo
	photoOrder  []string
	datasets    map[string]*database.Dataset
	annotations map[string][]database.Annotation
	now         func() time.Time

	// Error injection
	GetPhotoError         error
	GetPhotosError        error
	FindPhotosError       error
	CountPhotosError      error
	SavePhotoError        error
	GetDatasetError       error
	GetDatasetByNameError error
	CountDatasetsError    error
	ListDatasetNamesError error
	ReserveDatasetError   error
	FillDatasetError      error
	RemovePhotoError      error
	DeleteIncompleteError error
	AnnotationsError      error
	SaveAnnotationError   error

	// Call counters
	ReserveCalls int
	FillCalls    int
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{
		photos:      make(map[string]*database.Photo),
		datasets:    make(map[string]*database.Dataset),
		annotations: make(map[string][]database.Annotation),
		now:         time.Now,
	}
}

// AddPhoto inserts a photo without error injection, for test setup.
func (m *Store) AddPhoto(p database.Photo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putPhoto(&p)
}

// AddDataset inserts a dataset record as is, for test setup.
func (m *Store) AddDataset(d database.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[d.ID] = copyDataset(&d)
}

// DatasetCount returns the number of dataset records, complete or not.
func (m *Store) DatasetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.datasets)
}

func (m *Store) putPhoto(p *database.Photo) {
	if _, ok := m.photos[p.ID]; !ok {
		m.photoOrder = append(m.photoOrder, p.ID)
	}
	cp := *p
	cp.Metadata = copyMetadata(p.Metadata)
	m.photos[p.ID] = &cp
}

// GetPhoto returns the photo with the given id
func (m *Store) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	if m.GetPhotoError != nil {
		return nil, m.GetPhotoError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	cp.Metadata = copyMetadata(p.Metadata)
	return &cp, nil
}

// GetPhotos resolves ids in order, skipping unknown ones
func (m *Store) GetPhotos(ctx context.Context, ids []string) ([]database.Photo, error) {
	if m.GetPhotosError != nil {
		return nil, m.GetPhotosError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	photos := make([]database.Photo, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.photos[id]; ok {
			cp := *p
			cp.Metadata = copyMetadata(p.Metadata)
			photos = append(photos, cp)
		}
	}
	return photos, nil
}

// FindPhotos returns the matching photos in insertion order
func (m *Store) FindPhotos(ctx context.Context, filter database.Filter) ([]database.Photo, error) {
	if m.FindPhotosError != nil {
		return nil, m.FindPhotosError
	}
	return m.match(filter)
}

// CountPhotos counts the matching photos
func (m *Store) CountPhotos(ctx context.Context, filter database.Filter) (int, error) {
	if m.CountPhotosError != nil {
		return 0, m.CountPhotosError
	}
	photos, err := m.match(filter)
	return len(photos), err
}

func (m *Store) match(filter database.Filter) ([]database.Photo, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var photos []database.Photo
	for _, id := range m.photoOrder {
		p := m.photos[id]
		if f.Matches(p) {
			cp := *p
			cp.Metadata = copyMetadata(p.Metadata)
			photos = append(photos, cp)
		}
	}
	return photos, nil
}

// SavePhoto inserts a photo
func (m *Store) SavePhoto(ctx context.Context, photo *database.Photo) error {
	if m.SavePhotoError != nil {
		return m.SavePhotoError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = m.now().UTC()
	}
	m.putPhoto(photo)
	return nil
}

// GetDataset returns a dataset by id, complete or not
func (m *Store) GetDataset(ctx context.Context, id string) (*database.Dataset, error) {
	if m.GetDatasetError != nil {
		return nil, m.GetDatasetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasets[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyDataset(d), nil
}

// GetDatasetByName returns a complete dataset by name
func (m *Store) GetDatasetByName(ctx context.Context, name string) (*database.Dataset, error) {
	if m.GetDatasetByNameError != nil {
		return nil, m.GetDatasetByNameError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.datasets {
		if d.Complete() && d.Name == name {
			return copyDataset(d), nil
		}
	}
	return nil, database.ErrNotFound
}

// CountDatasetsByName counts datasets with the name
func (m *Store) CountDatasetsByName(ctx context.Context, name string) (int, error) {
	if m.CountDatasetsError != nil {
		return 0, m.CountDatasetsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, d := range m.datasets {
		if d.Complete() && d.Name == name {
			count++
		}
	}
	return count, nil
}

// ListDatasetNames returns the sorted names of complete datasets
func (m *Store) ListDatasetNames(ctx context.Context) ([]string, error) {
	if m.ListDatasetNamesError != nil {
		return nil, m.ListDatasetNamesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for _, d := range m.datasets {
		if d.Complete() {
			names = append(names, d.Name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// ReserveDataset stores a bare record
func (m *Store) ReserveDataset(ctx context.Context, id string, createdAt time.Time) error {
	m.mu.Lock()
	m.ReserveCalls++
	m.mu.Unlock()
	if m.ReserveDatasetError != nil {
		return m.ReserveDatasetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[id] = &database.Dataset{ID: id, CreatedAt: createdAt}
	return nil
}

// FillDataset completes a reserved record
func (m *Store) FillDataset(ctx context.Context, dataset *database.Dataset) error {
	m.mu.Lock()
	m.FillCalls++
	m.mu.Unlock()
	if m.FillDatasetError != nil {
		return m.FillDatasetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.datasets[dataset.ID]
	if !ok {
		return database.ErrNotFound
	}
	for id, d := range m.datasets {
		if id != dataset.ID && d.Complete() && d.Name == dataset.Name {
			return database.ErrNameConflict
		}
	}
	filled := copyDataset(dataset)
	filled.CreatedAt = existing.CreatedAt
	if filled.Classes == nil {
		filled.Classes = []string{}
	}
	m.datasets[dataset.ID] = filled
	return nil
}

// RemovePhotoFromSplit removes a photo from one split
func (m *Store) RemovePhotoFromSplit(ctx context.Context, datasetID, photoID string, split database.Split) (bool, error) {
	if m.RemovePhotoError != nil {
		return false, m.RemovePhotoError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.datasets[datasetID]
	if !ok {
		return false, database.ErrNotFound
	}
	ids := d.IDs(split)
	idx := slices.Index(ids, photoID)
	if idx < 0 {
		return false, nil
	}
	d.SetIDs(split, slices.Delete(slices.Clone(ids), idx, idx+1))
	return true, nil
}

// DeleteIncompleteDatasets removes unfilled records older than the cutoff
func (m *Store) DeleteIncompleteDatasets(ctx context.Context, before time.Time) (int, error) {
	if m.DeleteIncompleteError != nil {
		return 0, m.DeleteIncompleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, d := range m.datasets {
		if !d.Complete() && d.CreatedAt.Before(before) {
			delete(m.datasets, id)
			removed++
		}
	}
	return removed, nil
}

// AnnotationsForPhoto returns annotations in creation order
func (m *Store) AnnotationsForPhoto(ctx context.Context, photoID string) ([]database.Annotation, error) {
	if m.AnnotationsError != nil {
		return nil, m.AnnotationsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.annotations[photoID]
	out := make([]database.Annotation, len(src))
	for i, a := range src {
		out[i] = copyAnnotation(a)
	}
	return out, nil
}

// SaveAnnotation appends an annotation
func (m *Store) SaveAnnotation(ctx context.Context, annotation *database.Annotation) error {
	if m.SaveAnnotationError != nil {
		return m.SaveAnnotationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if annotation.ID == "" {
		annotation.ID = database.NewID()
	}
	if annotation.CreatedAt.IsZero() {
		annotation.CreatedAt = m.now().UTC()
	}
	m.annotations[annotation.PhotoID] = append(m.annotations[annotation.PhotoID], copyAnnotation(*annotation))
	return nil
}

// Close is a no-op
func (m *Store) Close() error {
	return nil
}

func copyDataset(d *database.Dataset) *database.Dataset {
	cp := *d
	cp.Classes = slices.Clone(d.Classes)
	cp.Train = slices.Clone(d.Train)
	cp.Val = slices.Clone(d.Val)
	cp.Test = slices.Clone(d.Test)
	return &cp
}

func copyAnnotation(a database.Annotation) database.Annotation {
	a.Classes = slices.Clone(a.Classes)
	a.Lines = slices.Clone(a.Lines)
	return a
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

var _ database.Store = (*Store)(nil)
