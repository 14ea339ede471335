package dedup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kozaktomas/photo-curator/internal/logging"
)

func TestParseFilter(t *testing.T) {
	for _, f := range AllFilters {
		got, err := ParseFilter(string(f))
		if err != nil || got != f {
			t.Errorf("ParseFilter(%q) = %q, %v", f, got, err)
		}
	}
	if _, err := ParseFilter("sharpness"); err == nil {
		t.Error("expected error for unknown filter")
	}
}

// seedCaptureDir writes one file for every filter outcome.
func seedCaptureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeGrayPNG(t, dir, "a_lat_1.0000000_lon_2.0000000_x.png", noiseImage(256, 256, 1))
	writeGrayPNG(t, dir, "b_lat_1.0000005_lon_2.0000005_x.png", noiseImage(256, 256, 2))
	writeGrayPNG(t, dir, "c_lat_5_lon_5_x.png", noiseImage(256, 256, 3))
	writeGrayPNG(t, dir, "d_lat_6_lon_6_x.png", noiseImage(256, 256, 3))
	writeGrayPNG(t, dir, "e_lat_7_lon_7_x.png", boxBlur(noiseImage(256, 256, 4), 8, 3))
	writeGrayPNG(t, dir, "f_lat_8_lon_8_x.png", noiseImage(256, 256, 5))
	writeGrayPNG(t, dir, "g_nogps.png", noiseImage(256, 256, 6))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestEngine_Run(t *testing.T) {
	dir := seedCaptureDir(t)
	opts := DefaultOptions()
	opts.Workers = 3

	report, err := New(opts, logging.Discard()).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := &Report{
		Dir:           dir,
		Scanned:       7,
		Blurry:        []string{"e_lat_7_lon_7_x.png"},
		GPSDuplicates: []string{"b_lat_1.0000005_lon_2.0000005_x.png"},
		NCCDuplicates: []string{"d_lat_6_lon_6_x.png"},
		Malformed:     []string{"g_nogps.png"},
	}
	if diff := cmp.Diff(want, report, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	wantFiles := []string{
		"a_lat_1.0000000_lon_2.0000000_x.png",
		"c_lat_5_lon_5_x.png",
		"f_lat_8_lon_8_x.png",
		"g_nogps.png",
		"notes.txt",
	}
	if diff := cmp.Diff(wantFiles, remainingFiles(t, dir)); diff != "" {
		t.Errorf("remaining files mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_DryRunKeepsFiles(t *testing.T) {
	dir := seedCaptureDir(t)
	before := remainingFiles(t, dir)

	opts := DefaultOptions()
	opts.DryRun = true
	report, err := New(opts, logging.Discard()).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Removed() != 3 {
		t.Errorf("expected 3 files reported, got %d: %+v", report.Removed(), report)
	}
	if !report.DryRun {
		t.Error("report should be marked as dry run")
	}
	if diff := cmp.Diff(before, remainingFiles(t, dir)); diff != "" {
		t.Errorf("dry run touched files (-before +after):\n%s", diff)
	}
}

func TestEngine_GPSOnly(t *testing.T) {
	dir := t.TempDir()
	// Empty files: only the names matter when the image filters are skipped.
	touch(t, dir, "a_lat_50.0000000_lon_14.0000000_x.jpg")
	touch(t, dir, "b_lat_50.0000005_lon_14.0000005_x.jpg")
	touch(t, dir, "c_lat_51.0000000_lon_14.0000000_x.jpg")
	touch(t, dir, "d_lat_51.0000100_lon_14.0000100_x.jpg")

	opts := DefaultOptions()
	opts.Skip = map[Filter]bool{FilterBlur: true, FilterNCC: true, FilterMSE: true}
	report, err := New(opts, logging.Discard()).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if diff := cmp.Diff([]string{"b_lat_50.0000005_lon_14.0000005_x.jpg"}, report.GPSDuplicates); diff != "" {
		t.Errorf("gps duplicates mismatch (-want +got):\n%s", diff)
	}
	wantFiles := []string{
		"a_lat_50.0000000_lon_14.0000000_x.jpg",
		"c_lat_51.0000000_lon_14.0000000_x.jpg",
		"d_lat_51.0000100_lon_14.0000100_x.jpg",
	}
	if diff := cmp.Diff(wantFiles, remainingFiles(t, dir)); diff != "" {
		t.Errorf("remaining files mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_MSEOnly(t *testing.T) {
	dir := t.TempDir()
	// Low-contrast noise: uncorrelated, but close in absolute terms.
	writeGrayPNG(t, dir, "a.png", lowContrastImage(128, 128, 1, 4))
	writeGrayPNG(t, dir, "b.png", lowContrastImage(128, 128, 2, 4))
	writeGrayPNG(t, dir, "c.png", noiseImage(128, 128, 3))

	opts := DefaultOptions()
	opts.Skip = map[Filter]bool{FilterBlur: true, FilterGPS: true, FilterNCC: true}
	report, err := New(opts, logging.Discard()).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if diff := cmp.Diff([]string{"b.png"}, report.MSEDuplicates); diff != "" {
		t.Errorf("mse duplicates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.png", "c.png"}, remainingFiles(t, dir)); diff != "" {
		t.Errorf("remaining files mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_UnreadableImageIsKept(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}
	writeGrayPNG(t, dir, "ok.png", noiseImage(256, 256, 1))

	opts := DefaultOptions()
	opts.Skip = map[Filter]bool{FilterGPS: true}
	report, err := New(opts, logging.Discard()).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if diff := cmp.Diff([]string{"broken.jpg"}, report.Unreadable); diff != "" {
		t.Errorf("unreadable mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"broken.jpg", "ok.png"}, remainingFiles(t, dir)); diff != "" {
		t.Errorf("remaining files mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_MissingDirectory(t *testing.T) {
	_, err := New(DefaultOptions(), logging.Discard()).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
