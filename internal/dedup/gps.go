package dedup

import (
	"context"
	"math"

	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/photoname"
)

type gpsEntry struct {
	index    int // position in the scanned name list
	lat, lon float64
}

// gpsDuplicates returns the indices of names whose coordinates lie within
// tolerance of an earlier name on both axes, plus the names that could not be
// parsed. Coordinates with a magnitude above 1000 are ignored.
func gpsDuplicates(ctx context.Context, names []string, tolerance float64, workers int) (dups []int, malformed []string, err error) {
	var entries []gpsEntry
	for i, name := range names {
		lat, lon, perr := photoname.Coordinates(name)
		if perr != nil {
			malformed = append(malformed, name)
			continue
		}
		if math.Abs(lat) > constants.MaxCoordinateMagnitude || math.Abs(lon) > constants.MaxCoordinateMagnitude {
			continue
		}
		entries = append(entries, gpsEntry{index: i, lat: lat, lon: lon})
	}

	rows, err := pairMatches(ctx, len(entries), workers, func(i, j int) bool {
		a, b := entries[i], entries[j]
		return math.Abs(a.lat-b.lat) <= tolerance && math.Abs(a.lon-b.lon) <= tolerance
	})
	if err != nil {
		return nil, malformed, err
	}

	for k, marked := range markAnyLater(rows) {
		if marked {
			dups = append(dups, entries[k].index)
		}
	}
	return dups, malformed, nil
}
