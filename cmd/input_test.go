package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/database"
)

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	content := "0 0.5 0.5 0.2 0.2\n\n   \n  1 0.1 0.1 0.05 0.05  \r\n2\t0.3 0.3 0.1 0.1"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := readLines(path)
	if err != nil {
		t.Fatal(err)
	}
	// Blank lines are dropped; the others are kept byte for byte.
	want := []string{"0 0.5 0.5 0.2 0.2", "  1 0.1 0.1 0.05 0.05  ", "2\t0.3 0.3 0.1 0.1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("readLines mismatch (-want +got):\n%s", diff)
	}
}

func TestDatasetPrune_DefaultAge(t *testing.T) {
	got := mustGetDuration(datasetPruneCmd, "older-than")
	if got != constants.DefaultPruneAge {
		t.Errorf("default --older-than = %s, want %s", got, constants.DefaultPruneAge)
	}
	if got <= 0 {
		t.Error("pruning without a flag must spare fresh reservations")
	}
}

func TestReadFilter(t *testing.T) {
	empty, err := readFilter("")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Exact) != 0 || len(empty.Range) != 0 {
		t.Errorf("expected empty filter, got %+v", empty)
	}

	path := filepath.Join(t.TempDir(), "filter.json")
	if err := os.WriteFile(path, []byte(`{"exact": {"capture_date": "2024-05-01"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := readFilter(path)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Matches(&database.Photo{CaptureDate: "2024-05-01"}) {
		t.Error("filter should match the capture date")
	}
	if f.Matches(&database.Photo{CaptureDate: "2024-05-02"}) {
		t.Error("filter should not match another date")
	}

	if _, err := readFilter(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
