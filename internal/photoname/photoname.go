// Package photoname parses the underscore-delimited filenames written by the
// field capture app, e.g. "tree_0042_lat_-36.848461_lon_174.763336_date_2024-12-01.jpg".
package photoname

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedFilename is returned when a filename does not follow the capture schema.
var ErrMalformedFilename = errors.New("malformed filename")

// DateLayout is the capture date format embedded in filenames and stored on photo records.
const DateLayout = "2006-01-02"

// Positional token indices of the ingest schema.
const (
	latIndex  = 3
	lonIndex  = 5
	dateIndex = 7
)

// Metadata holds the values extracted from a capture filename.
type Metadata struct {
	Latitude    float64
	Longitude   float64
	CaptureDate time.Time
	Extension   string // without the leading dot
}

// CaptureDay returns the capture date formatted as YYYY-MM-DD.
func (m Metadata) CaptureDay() string {
	return m.CaptureDate.Format(DateLayout)
}

// Parse extracts latitude, longitude, capture date and extension using the
// fixed positional layout: token 3 latitude, token 5 longitude, token 7
// "<YYYY-MM-DD>.<ext>".
func Parse(name string) (Metadata, error) {
	tokens := strings.Split(name, "_")
	if len(tokens) <= dateIndex {
		return Metadata{}, fmt.Errorf("%w: %q has %d tokens, want at least %d", ErrMalformedFilename, name, len(tokens), dateIndex+1)
	}

	lat, err := parseCoordinate(tokens[latIndex])
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %q latitude: %v", ErrMalformedFilename, name, err)
	}
	lon, err := parseCoordinate(tokens[lonIndex])
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %q longitude: %v", ErrMalformedFilename, name, err)
	}

	dateToken, ext, ok := strings.Cut(tokens[dateIndex], ".")
	if !ok || ext == "" {
		return Metadata{}, fmt.Errorf("%w: %q has no extension", ErrMalformedFilename, name)
	}
	date, err := time.Parse(DateLayout, dateToken)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %q capture date: %v", ErrMalformedFilename, name, err)
	}

	return Metadata{
		Latitude:    lat,
		Longitude:   lon,
		CaptureDate: date,
		Extension:   strings.ToLower(ext),
	}, nil
}

// Coordinates finds the values following the literal "lat" and "lon" tokens.
func Coordinates(name string) (lat, lon float64, err error) {
	tokens := strings.Split(name, "_")

	lat, err = valueAfter(tokens, "lat")
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %v", ErrMalformedFilename, name, err)
	}
	lon, err = valueAfter(tokens, "lon")
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %v", ErrMalformedFilename, name, err)
	}
	return lat, lon, nil
}

func valueAfter(tokens []string, key string) (float64, error) {
	for i, tok := range tokens {
		if tok != key {
			continue
		}
		if i+1 >= len(tokens) {
			return 0, fmt.Errorf("no value after %q", key)
		}
		return parseCoordinate(tokens[i+1])
	}
	return 0, fmt.Errorf("no %q token", key)
}

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
