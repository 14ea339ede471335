// Package ingest copies capture files into the image store and records their
// filename metadata as photo records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/imaging"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"github.com/kozaktomas/photo-curator/internal/photoname"
)

// MetadataOriginalName is the metadata key holding the capture filename.
const MetadataOriginalName = "original_name"

// Importer stores photos under <image dir>/<YYYYMMDD>/<id>.<ext>.
type Importer struct {
	store      database.PhotoWriter
	imageDir   string
	logger     *slog.Logger
	now        func() time.Time
	OnProgress func(current, total int)
}

// NewImporter creates an importer. A nil logger logs to slog.Default().
func NewImporter(store database.PhotoWriter, imageDir string, logger *slog.Logger) *Importer {
	return &Importer{
		store:    store,
		imageDir: imageDir,
		logger:   logging.OrDefault(logger),
		now:      time.Now,
	}
}

// ImportFile copies one capture file into the image store and saves its
// record. The file name must follow the capture schema.
func (im *Importer) ImportFile(ctx context.Context, path string) (*database.Photo, error) {
	name := filepath.Base(path)
	meta, err := photoname.Parse(name)
	if err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(filepath.Join(im.imageDir, meta.CaptureDate.Format("20060102")))
	if err != nil {
		return nil, fmt.Errorf("resolve image directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}

	id := database.NewID()
	dst := filepath.Join(dir, id+"."+meta.Extension)
	if err := copyFile(path, dst); err != nil {
		return nil, err
	}

	photo := &database.Photo{
		ID:          id,
		FilePath:    dst,
		Latitude:    meta.Latitude,
		Longitude:   meta.Longitude,
		CaptureDate: meta.CaptureDay(),
		Metadata:    map[string]any{MetadataOriginalName: name},
		CreatedAt:   im.now().UTC(),
	}
	if err := im.store.SavePhoto(ctx, photo); err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("save photo %s: %w", name, err)
	}

	im.logger.Debug("photo imported", "file", name, "id", id, "path", dst)
	return photo, nil
}

// ImportDir imports every image file directly inside dir. Files that fail
// are logged and skipped; their errors are joined into the returned error.
func (im *Importer) ImportDir(ctx context.Context, dir string) ([]database.Photo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && imaging.IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}

	var (
		photos []database.Photo
		errs   []error
	)
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return photos, err
		}
		photo, err := im.ImportFile(ctx, filepath.Join(dir, name))
		if err != nil {
			im.logger.Warn("import failed", "file", name, "error", err)
			errs = append(errs, err)
		} else {
			photos = append(photos, *photo)
		}
		if im.OnProgress != nil {
			im.OnProgress(i+1, len(names))
		}
	}

	im.logger.Info("import finished", "dir", dir, "imported", len(photos), "failed", len(errs))
	return photos, errors.Join(errs...)
}

// copyFile writes src to a temporary file next to dst and renames it into place.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".import-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}
