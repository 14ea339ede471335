package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kozaktomas/photo-curator/internal/database"
)

// runStoreContract exercises a freshly migrated, empty store. It is shared by
// the SQLite tests and the server-backed integration tests.
func runStoreContract(t *testing.T, s *Store) {
	t.Run("Photos", func(t *testing.T) { testPhotos(t, s) })
	t.Run("Filters", func(t *testing.T) { testFilters(t, s) })
	t.Run("Datasets", func(t *testing.T) { testDatasets(t, s) })
	t.Run("Annotations", func(t *testing.T) { testAnnotations(t, s) })
}

var base = time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)

func seedPhotos(t *testing.T, s *Store, prefix string) []database.Photo {
	t.Helper()
	ctx := context.Background()
	photos := []database.Photo{
		{ID: prefix + "1", FilePath: "/img/1.jpg", Latitude: -36.85, Longitude: 174.76, CaptureDate: "2024-12-01",
			Metadata: map[string]any{"location": "auckland", "tier": 1.0}},
		{ID: prefix + "2", FilePath: "/img/2.jpg", Latitude: -36.86, Longitude: 174.77, CaptureDate: "2024-12-03",
			Metadata: map[string]any{"location": "auckland", "tier": 2.0}},
		{ID: prefix + "3", FilePath: "/img/3.jpg", Latitude: -41.28, Longitude: 174.78, CaptureDate: "2024-12-05",
			Metadata: map[string]any{"location": "wellington", "tier": "2"}},
		{ID: prefix + "4", FilePath: "/img/4.jpg", Latitude: -43.53, Longitude: 172.63, CaptureDate: "2024-12-09"},
	}
	for i := range photos {
		photos[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.SavePhoto(ctx, &photos[i]); err != nil {
			t.Fatalf("SavePhoto failed: %v", err)
		}
	}
	return photos
}

func testPhotos(t *testing.T, s *Store) {
	ctx := context.Background()
	photos := seedPhotos(t, s, "photo-")

	got, err := s.GetPhoto(ctx, "photo-1")
	if err != nil {
		t.Fatalf("GetPhoto failed: %v", err)
	}
	if diff := cmp.Diff(&photos[0], got); diff != "" {
		t.Errorf("GetPhoto mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetPhoto(ctx, "missing"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := s.GetPhotos(ctx, []string{"photo-3", "missing", "photo-1"})
	if err != nil {
		t.Fatalf("GetPhotos failed: %v", err)
	}
	var ids []string
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"photo-3", "photo-1"}, ids); diff != "" {
		t.Errorf("GetPhotos order mismatch (-want +got):\n%s", diff)
	}

	if err := s.SavePhoto(ctx, &database.Photo{ID: "photo-1", CaptureDate: "2024-12-01"}); err == nil {
		t.Error("expected error inserting a duplicate id")
	}
}

func testFilters(t *testing.T, s *Store) {
	ctx := context.Background()
	photos := seedPhotos(t, s, "filter-")

	tests := []struct {
		name   string
		filter database.Filter
	}{
		{"everything", database.Filter{}},
		{"exact metadata string", database.Filter{Exact: map[string]any{"location": "auckland"}}},
		{"exact metadata number", database.Filter{Exact: map[string]any{"tier": 2}}},
		{"exact metadata string vs number", database.Filter{Exact: map[string]any{"tier": "2"}}},
		{"exact column", database.Filter{Exact: map[string]any{"capture_date": "2024-12-05"}}},
		{"column type mismatch", database.Filter{Exact: map[string]any{"latitude": "-36.85"}}},
		{"date range", database.Filter{Range: map[string]database.Range{
			"capture_date": {GTE: "2024-12-01", LTE: "2024-12-05"}}}},
		{"numeric range open above", database.Filter{Range: map[string]database.Range{
			"latitude": {GTE: -37.0}}}},
		{"metadata numeric range", database.Filter{Range: map[string]database.Range{
			"tier": {GTE: 1.5}}}},
		{"unbounded range", database.Filter{Range: map[string]database.Range{"tier": {}}}},
		{"combined", database.Filter{
			Exact: map[string]any{"location": "auckland"},
			Range: map[string]database.Range{"capture_date": {LTE: "2024-12-02"}}}},
		{"no match", database.Filter{Exact: map[string]any{"species": "kauri"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			norm, err := tc.filter.Normalize()
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			var want []string
			for i := range photos {
				if norm.Matches(&photos[i]) {
					want = append(want, photos[i].ID)
				}
			}

			got, err := s.FindPhotos(ctx, tc.filter)
			if err != nil {
				t.Fatalf("FindPhotos failed: %v", err)
			}
			var gotIDs []string
			for _, p := range got {
				if strings.HasPrefix(p.ID, "filter-") {
					gotIDs = append(gotIDs, p.ID)
				}
			}
			if diff := cmp.Diff(want, gotIDs); diff != "" {
				t.Errorf("FindPhotos mismatch (-want +got):\n%s", diff)
			}
		})
	}

	count, err := s.CountPhotos(ctx, database.Filter{
		Exact: map[string]any{"location": "wellington"},
		Range: map[string]database.Range{"id": {GTE: "filter-", LTE: "filter-~"}},
	})
	if err != nil {
		t.Fatalf("CountPhotos failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountPhotos = %d, want 1", count)
	}
}

func testDatasets(t *testing.T, s *Store) {
	ctx := context.Background()

	if err := s.ReserveDataset(ctx, "ds-1", base); err != nil {
		t.Fatalf("ReserveDataset failed: %v", err)
	}
	reserved, err := s.GetDataset(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if reserved.Complete() || !reserved.CreatedAt.Equal(base) {
		t.Errorf("reserved dataset = %+v, want incomplete created at %v", reserved, base)
	}
	if names, _ := s.ListDatasetNames(ctx); len(names) != 0 {
		t.Errorf("incomplete dataset listed: %v", names)
	}

	filled := &database.Dataset{
		ID:      "ds-1",
		Name:    "trees",
		Classes: []string{"tree", "stump"},
		Train:   []string{"p3", "p1", "p5"},
		Val:     []string{"p2"},
		Test:    []string{"p4"},
	}
	if err := s.FillDataset(ctx, filled); err != nil {
		t.Fatalf("FillDataset failed: %v", err)
	}

	got, err := s.GetDatasetByName(ctx, "trees")
	if err != nil {
		t.Fatalf("GetDatasetByName failed: %v", err)
	}
	want := *filled
	want.CreatedAt = base
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Errorf("dataset mismatch (-want +got):\n%s", diff)
	}

	if err := s.FillDataset(ctx, filled); err == nil {
		t.Error("expected error filling a dataset twice")
	}
	if err := s.FillDataset(ctx, &database.Dataset{ID: "nope", Name: "x", Classes: []string{"a"}}); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unreserved id, got %v", err)
	}

	// A second record cannot take the same name.
	if err := s.ReserveDataset(ctx, "ds-2", base.Add(time.Hour)); err != nil {
		t.Fatalf("ReserveDataset failed: %v", err)
	}
	err = s.FillDataset(ctx, &database.Dataset{ID: "ds-2", Name: "trees", Classes: []string{"tree"}, Train: []string{"p9"}})
	if !errors.Is(err, database.ErrNameConflict) {
		t.Errorf("expected ErrNameConflict, got %v", err)
	}
	ds2, err := s.GetDataset(ctx, "ds-2")
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if ds2.Complete() || ds2.Size() != 0 {
		t.Errorf("failed fill left partial state: %+v", ds2)
	}

	// A photo in two splits is rejected as a whole.
	err = s.FillDataset(ctx, &database.Dataset{ID: "ds-2", Name: "overlap", Classes: []string{"tree"},
		Train: []string{"p1"}, Test: []string{"p1"}})
	if err == nil {
		t.Error("expected error for overlapping splits")
	}

	if err := s.FillDataset(ctx, &database.Dataset{ID: "ds-2", Name: "alpha", Classes: []string{"tree"}}); err != nil {
		t.Fatalf("FillDataset failed: %v", err)
	}

	names, err := s.ListDatasetNames(ctx)
	if err != nil {
		t.Fatalf("ListDatasetNames failed: %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "trees"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	for name, want := range map[string]int{"trees": 1, "Trees": 0, "missing": 0} {
		n, err := s.CountDatasetsByName(ctx, name)
		if err != nil {
			t.Fatalf("CountDatasetsByName failed: %v", err)
		}
		if n != want {
			t.Errorf("CountDatasetsByName(%q) = %d, want %d", name, n, want)
		}
	}

	removed, err := s.RemovePhotoFromSplit(ctx, "ds-1", "p2", database.SplitTrain)
	if err != nil || removed {
		t.Errorf("removing from wrong split = %v, %v", removed, err)
	}
	removed, err = s.RemovePhotoFromSplit(ctx, "ds-1", "p2", database.SplitVal)
	if err != nil || !removed {
		t.Errorf("removing from val = %v, %v", removed, err)
	}
	after, err := s.GetDataset(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if diff := cmp.Diff(filled.Train, after.Train); diff != "" {
		t.Errorf("train changed (-want +got):\n%s", diff)
	}
	if len(after.Val) != 0 {
		t.Errorf("val = %v, want empty", after.Val)
	}

	// Pruning only touches incomplete records older than the cutoff.
	for i, id := range []string{"old-orphan", "new-orphan"} {
		if err := s.ReserveDataset(ctx, id, base.Add(time.Duration(i)*48*time.Hour)); err != nil {
			t.Fatalf("ReserveDataset failed: %v", err)
		}
	}
	n, err := s.DeleteIncompleteDatasets(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteIncompleteDatasets failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d datasets, want 1", n)
	}
	if _, err := s.GetDataset(ctx, "old-orphan"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("old orphan still present: %v", err)
	}
	for _, id := range []string{"new-orphan", "ds-1"} {
		if _, err := s.GetDataset(ctx, id); err != nil {
			t.Errorf("dataset %s should survive pruning: %v", id, err)
		}
	}
}

func testAnnotations(t *testing.T, s *Store) {
	ctx := context.Background()

	for i := range 3 {
		a := &database.Annotation{
			PhotoID: "annotated",
			Classes: []string{"tree"},
			Lines:   []string{fmt.Sprintf("%d 0.5 0.5 0.1 0.1", i)},
			// Same timestamp on purpose: insertion order must break the tie.
			CreatedAt: base,
		}
		if err := s.SaveAnnotation(ctx, a); err != nil {
			t.Fatalf("SaveAnnotation failed: %v", err)
		}
		if a.ID == "" {
			t.Fatal("SaveAnnotation did not assign an id")
		}
	}
	if err := s.SaveAnnotation(ctx, &database.Annotation{PhotoID: "other", Classes: []string{"stump"}}); err != nil {
		t.Fatalf("SaveAnnotation failed: %v", err)
	}

	got, err := s.AnnotationsForPhoto(ctx, "annotated")
	if err != nil {
		t.Fatalf("AnnotationsForPhoto failed: %v", err)
	}
	var lines []string
	for _, a := range got {
		lines = append(lines, a.Lines...)
	}
	want := []string{"0 0.5 0.5 0.1 0.1", "1 0.5 0.5 0.1 0.1", "2 0.5 0.5 0.1 0.1"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("annotation order mismatch (-want +got):\n%s", diff)
	}

	other, err := s.AnnotationsForPhoto(ctx, "other")
	if err != nil {
		t.Fatalf("AnnotationsForPhoto failed: %v", err)
	}
	if len(other) != 1 || len(other[0].Lines) != 0 {
		t.Errorf("unexpected annotations for other photo: %+v", other)
	}

	none, err := s.AnnotationsForPhoto(ctx, "nobody")
	if err != nil {
		t.Fatalf("AnnotationsForPhoto failed: %v", err)
	}
	if diff := cmp.Diff([]database.Annotation(nil), none, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("expected no annotations, got %v", none)
	}
}
