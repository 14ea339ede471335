package database

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ValidateAnnotationLine checks one bounding box line of the form
// "<class_id> <x_center> <y_center> <width> <height>" with the four floats
// normalised to [0,1].
func ValidateAnnotationLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return fmt.Errorf("%w: %q has %d fields, want 5", ErrInvalidAnnotation, line, len(fields))
	}
	classID, err := strconv.Atoi(fields[0])
	if err != nil || classID < 0 {
		return fmt.Errorf("%w: %q: class id must be a non-negative integer", ErrInvalidAnnotation, line)
	}
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidAnnotation, line, err)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %q: coordinate %s outside [0,1]", ErrInvalidAnnotation, line, f)
		}
	}
	return nil
}

// ValidateAnnotation checks the photo reference, the class set and every line.
func ValidateAnnotation(a *Annotation) error {
	if a.PhotoID == "" {
		return fmt.Errorf("%w: missing photo id", ErrInvalidAnnotation)
	}
	if len(a.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidAnnotation)
	}
	for _, line := range a.Lines {
		if err := ValidateAnnotationLine(line); err != nil {
			return err
		}
	}
	return nil
}

// SameClasses reports whether two class lists hold the same labels,
// ignoring order and repetition.
func SameClasses(a, b []string) bool {
	return slices.Equal(classSet(a), classSet(b))
}

func classSet(classes []string) []string {
	set := slices.Clone(classes)
	slices.Sort(set)
	return slices.Compact(set)
}
