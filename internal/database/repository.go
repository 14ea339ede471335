package database

import (
	"context"
	"time"
)

// PhotoReader provides read-only access to photo records
type PhotoReader interface {
	// GetPhoto returns the photo with the given id or ErrNotFound
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	// GetPhotos resolves a list of ids in the given order, skipping unknown ids
	GetPhotos(ctx context.Context, ids []string) ([]Photo, error)
	// FindPhotos returns the photos matching the filter in a stable order
	FindPhotos(ctx context.Context, filter Filter) ([]Photo, error)
	// CountPhotos returns the number of photos matching the filter
	CountPhotos(ctx context.Context, filter Filter) (int, error)
}

// PhotoWriter provides write access to photo records
type PhotoWriter interface {
	PhotoReader

	// SavePhoto inserts a new photo record. The id must be set.
	SavePhoto(ctx context.Context, photo *Photo) error
}

// DatasetReader provides read-only access to dataset records
type DatasetReader interface {
	// GetDataset returns the record with the given id, complete or not, or ErrNotFound
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	// GetDatasetByName returns the complete dataset with the given name or ErrNotFound
	GetDatasetByName(ctx context.Context, name string) (*Dataset, error)
	// CountDatasetsByName returns how many datasets carry the name (0 or 1)
	CountDatasetsByName(ctx context.Context, name string) (int, error)
	// ListDatasetNames returns the names of complete datasets in lexicographic order
	ListDatasetNames(ctx context.Context) ([]string, error)
}

// DatasetWriter provides write access to dataset records
type DatasetWriter interface {
	DatasetReader

	// ReserveDataset persists a bare record holding only the id and creation time
	ReserveDataset(ctx context.Context, id string, createdAt time.Time) error

	// FillDataset stores name, classes and split lists onto a reserved record.
	// Returns ErrNameConflict if the name is taken and ErrNotFound if the id
	// was never reserved.
	FillDataset(ctx context.Context, dataset *Dataset) error

	// RemovePhotoFromSplit removes one photo id from one split and reports
	// whether it was there.
	RemovePhotoFromSplit(ctx context.Context, datasetID, photoID string, split Split) (bool, error)

	// DeleteIncompleteDatasets removes reserved-but-never-filled records
	// created before the cutoff and returns how many were removed.
	DeleteIncompleteDatasets(ctx context.Context, before time.Time) (int, error)
}

// AnnotationReader provides read-only access to annotation records
type AnnotationReader interface {
	// AnnotationsForPhoto returns the annotations of a photo in creation order
	AnnotationsForPhoto(ctx context.Context, photoID string) ([]Annotation, error)
}

// AnnotationWriter provides write access to annotation records
type AnnotationWriter interface {
	AnnotationReader

	// SaveAnnotation inserts an annotation, assigning its id and creation
	// time when unset.
	SaveAnnotation(ctx context.Context, annotation *Annotation) error
}

// Store is the full metadata store used by the CLI. Its lifecycle is explicit:
// open it at start-up and Close it on shutdown.
type Store interface {
	PhotoWriter
	DatasetWriter
	AnnotationWriter

	Close() error
}
