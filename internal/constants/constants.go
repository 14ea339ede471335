// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Blur detection defaults
const (
	// DefaultFFTSize is the half-width of the low-frequency window removed
	// around the centre of the shifted spectrum
	DefaultFFTSize = 100

	// DefaultFFTThreshold is the mean log-magnitude at or below which an image is blurry
	DefaultFFTThreshold = 10.0

	// DefaultLaplacianThreshold is the Laplacian variance below which an image is blurry
	DefaultLaplacianThreshold = 90.0
)

// Duplicate detection defaults
const (
	// DefaultGPSTolerance is the maximum per-axis coordinate difference for two
	// photos to count as taken at the same spot
	DefaultGPSTolerance = 1e-6

	// MaxCoordinateMagnitude marks parsed coordinates above it as invalid
	MaxCoordinateMagnitude = 1000.0

	// DefaultNCCThreshold is the correlation score above which two frames are near-duplicates
	DefaultNCCThreshold = 0.9

	// DefaultMSEThreshold is the mean squared pixel difference below which two frames are duplicates
	DefaultMSEThreshold = 45.0

	// CompareWidth and CompareHeight are the canvas every image is scaled to
	// before pairwise comparison
	CompareWidth  = 256
	CompareHeight = 146
)

// Materialization constants
const (
	// LinkWorkerPoolSize is the default number of concurrent symlink workers
	LinkWorkerPoolSize = 6

	// ProgressInterval is the number of processed items between progress reports
	ProgressInterval = 50

	// ManifestFile is the trainer-facing manifest written to the working directory
	ManifestFile = "data.yaml"

	// LockFile guards the working directory against concurrent materializations
	LockFile = ".curator.lock"
)

// Store constants
const (
	// DefaultDatabaseURL is used when DATABASE_URL is not set
	DefaultDatabaseURL = "sqlite://curator.db"

	// DefaultPruneAge keeps reservations of datasets still being created
	// out of reach of dataset pruning
	DefaultPruneAge = 24 * time.Hour

	// IDLookupBatchSize bounds the number of ids in a single IN (...) clause
	IDLookupBatchSize = 500
)
