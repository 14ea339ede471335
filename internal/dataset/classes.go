package dataset

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrNoClasses is returned when a class list holds no labels.
var ErrNoClasses = errors.New("class list is empty")

// ParseClasses splits a comma-separated label list. Labels are trimmed and
// NFC-normalised so that visually identical labels compare equal against
// annotation class sets. Repeated labels keep their first position.
func ParseClasses(s string) ([]string, error) {
	var classes []string
	for _, part := range strings.Split(s, ",") {
		label := norm.NFC.String(strings.TrimSpace(part))
		if label == "" || slices.Contains(classes, label) {
			continue
		}
		classes = append(classes, label)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoClasses, s)
	}
	return classes, nil
}

// NormalizeClasses applies the label normalisation of ParseClasses to an
// existing list.
func NormalizeClasses(classes []string) ([]string, error) {
	return ParseClasses(strings.Join(classes, ","))
}
