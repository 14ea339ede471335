package database

import (
	"fmt"
	"slices"
	"time"
)

// Split names one partition of a dataset.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// Splits lists the partitions in the order single-photo removal searches them.
var Splits = []Split{SplitTrain, SplitTest, SplitVal}

// ParseSplit validates a split name.
func ParseSplit(s string) (Split, error) {
	for _, sp := range Splits {
		if string(sp) == s {
			return sp, nil
		}
	}
	return "", fmt.Errorf("unknown split %q", s)
}

// Photo is the metadata record of one ingested image. Records are immutable
// once stored.
type Photo struct {
	ID          string         `json:"id"`
	FilePath    string         `json:"file_path"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	CaptureDate string         `json:"capture_date"` // YYYY-MM-DD
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Column fields of a photo that filters may address directly. Any other
// field name refers to a key of Photo.Metadata.
const (
	FieldID          = "id"
	FieldFilePath    = "file_path"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldCaptureDate = "capture_date"
)

// Field returns the value of a filterable field, normalised the same way as
// filter literals (numbers as float64).
func (p *Photo) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return p.ID, true
	case FieldFilePath:
		return p.FilePath, true
	case FieldLatitude:
		return p.Latitude, true
	case FieldLongitude:
		return p.Longitude, true
	case FieldCaptureDate:
		return p.CaptureDate, true
	}
	v, ok := p.Metadata[name]
	if !ok {
		return nil, false
	}
	norm, err := normalizeValue(v)
	if err != nil {
		return nil, false
	}
	return norm, true
}

// Dataset is a named, class-labelled partition of photo ids. A record whose
// Classes is nil was reserved but never filled and is incomplete.
type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Classes   []string  `json:"classes"`
	Train     []string  `json:"train"`
	Val       []string  `json:"val"`
	Test      []string  `json:"test"`
	CreatedAt time.Time `json:"created_at"`
}

// Complete reports whether the record went through both creation phases.
func (d *Dataset) Complete() bool {
	return d.Classes != nil
}

// IDs returns the photo ids of one split.
func (d *Dataset) IDs(s Split) []string {
	switch s {
	case SplitTrain:
		return d.Train
	case SplitVal:
		return d.Val
	case SplitTest:
		return d.Test
	}
	return nil
}

// SetIDs replaces the photo ids of one split.
func (d *Dataset) SetIDs(s Split, ids []string) {
	switch s {
	case SplitTrain:
		d.Train = ids
	case SplitVal:
		d.Val = ids
	case SplitTest:
		d.Test = ids
	}
}

// Size returns the number of photos across all splits.
func (d *Dataset) Size() int {
	return len(d.Train) + len(d.Val) + len(d.Test)
}

// Contains reports whether the photo is part of any split.
func (d *Dataset) Contains(photoID string) bool {
	return slices.Contains(d.Train, photoID) || slices.Contains(d.Val, photoID) || slices.Contains(d.Test, photoID)
}

// Annotation is one labelled set of bounding boxes for a photo.
type Annotation struct {
	ID        string    `json:"id"`
	PhotoID   string    `json:"photo_id"`
	Classes   []string  `json:"classes"`
	Lines     []string  `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
}
