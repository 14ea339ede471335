package database

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNameConflict is returned when a dataset name is already taken.
	ErrNameConflict = errors.New("dataset name already exists")

	// ErrPhotoNotInDataset is returned when a photo is in none of the splits.
	ErrPhotoNotInDataset = errors.New("photo not found in any split")

	// ErrIncompleteDataset is returned for reserved records that were never filled.
	ErrIncompleteDataset = errors.New("dataset is incomplete")

	// ErrInvalidFilter is returned for filters with bad field names or literals.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidAnnotation is returned for annotation lines that do not match the box format.
	ErrInvalidAnnotation = errors.New("invalid annotation")
)
