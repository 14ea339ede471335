// Package materialize lays a dataset out on disk for a trainer: symlinked
// images, per-photo label files and a data.yaml manifest, all inside a single
// working directory that is rebuilt from scratch on every call.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/logging"
)

// Store is the part of the metadata store the materializer reads.
type Store interface {
	database.PhotoReader
	database.DatasetReader
	database.AnnotationReader
}

// splitOrder is the order splits are built in.
var splitOrder = database.Splits

// Phase names a step of materialization for progress reporting.
type Phase string

const (
	PhaseLink   Phase = "link"
	PhaseLabels Phase = "labels"
)

// Progress is passed to Options.OnProgress after every processed photo.
type Progress struct {
	Phase   Phase
	Split   database.Split
	Current int
	Total   int
}

// Options configures a Materializer.
type Options struct {
	Workers    int  // link workers per split, defaults to 6
	ImagesOnly bool // link images only; no labels and no manifest
	OnProgress func(Progress)
}

// SplitResult summarises one split.
type SplitResult struct {
	Split   database.Split `json:"split"`
	Photos  int            `json:"photos"`
	Linked  int            `json:"linked"`
	Missing []string       `json:"missing,omitempty"`
	Labels  int            `json:"labels"`
}

// Result describes a finished materialization.
type Result struct {
	Dir      string        `json:"dir"`
	Manifest string        `json:"manifest,omitempty"`
	Splits   []SplitResult `json:"splits"`
}

// Materializer builds the working directory from dataset records.
type Materializer struct {
	store  Store
	dir    string
	opts   Options
	logger *slog.Logger
}

// New creates a materializer writing into workDir. A nil logger logs to slog.Default().
func New(store Store, workDir string, opts Options, logger *slog.Logger) *Materializer {
	if opts.Workers <= 0 {
		opts.Workers = constants.LinkWorkerPoolSize
	}
	return &Materializer{
		store:  store,
		dir:    workDir,
		opts:   opts,
		logger: logging.OrDefault(logger),
	}
}

// Materialize clears the working directory and rebuilds it for the dataset.
// Every call starts from an empty layout, so repeating it yields identical
// contents. Missing source images are skipped with a warning; any other link
// failure fails the call after the split's pool has drained. There is no
// rollback: after an error the working directory must not be used.
func (m *Materializer) Materialize(ctx context.Context, datasetID string) (*Result, error) {
	dir, err := filepath.Abs(m.dir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, constants.LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock working directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("working directory %s is in use by another process", dir)
	}
	defer lock.Unlock()

	d, err := m.store.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if !d.Complete() {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, database.ErrIncompleteDataset)
	}

	if err := resetLayout(dir); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{Dir: dir}
	for _, split := range splitOrder {
		sr, err := m.materializeSplit(ctx, dir, d, split)
		if err != nil {
			return nil, err
		}
		result.Splits = append(result.Splits, *sr)
	}

	if !m.opts.ImagesOnly {
		manifest := Manifest{
			Train: imagesDir(dir, database.SplitTrain),
			Val:   imagesDir(dir, database.SplitVal),
			Test:  imagesDir(dir, database.SplitTest),
			NC:    len(d.Classes),
			Names: d.Classes,
		}
		result.Manifest = filepath.Join(dir, constants.ManifestFile)
		if err := writeManifest(result.Manifest, manifest); err != nil {
			return nil, err
		}
		m.logger.Info("manifest written", "path", result.Manifest, "classes", len(d.Classes))
	}

	m.logger.Info("dataset materialized",
		"dataset", datasetID,
		"dir", dir,
		"images_only", m.opts.ImagesOnly,
		"duration", time.Since(start).Round(time.Millisecond))
	return result, nil
}

func imagesDir(root string, split database.Split) string {
	return filepath.Join(root, "images", string(split))
}

func labelsDir(root string, split database.Split) string {
	return filepath.Join(root, "labels", string(split))
}

// resetLayout removes previous output and recreates the empty split folders.
func resetLayout(root string) error {
	for _, p := range []string{
		filepath.Join(root, "images"),
		filepath.Join(root, "labels"),
		filepath.Join(root, constants.ManifestFile),
	} {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("clear %s: %w", p, err)
		}
	}
	for _, split := range splitOrder {
		for _, p := range []string{imagesDir(root, split), labelsDir(root, split)} {
			if err := os.MkdirAll(p, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", p, err)
			}
		}
	}
	return nil
}

func (m *Materializer) materializeSplit(ctx context.Context, root string, d *database.Dataset, split database.Split) (*SplitResult, error) {
	ids := d.IDs(split)
	photos, err := m.store.GetPhotos(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load %s photos: %w", split, err)
	}
	if len(photos) < len(ids) {
		m.logger.Warn("photo records not found", "split", split, "missing", len(ids)-len(photos))
	}

	sr := &SplitResult{Split: split, Photos: len(photos)}
	if err := m.linkPhotos(ctx, imagesDir(root, split), split, photos, sr); err != nil {
		return nil, err
	}
	m.logger.Info("split images done", "split", split, "linked", sr.Linked, "missing", len(sr.Missing))

	if m.opts.ImagesOnly {
		return sr, nil
	}
	if err := m.exportLabels(ctx, labelsDir(root, split), split, photos, d.Classes, sr); err != nil {
		return nil, err
	}
	m.logger.Info("split labels done", "split", split, "labels", sr.Labels)
	return sr, nil
}

// linkPhotos symlinks every photo into dst through one bounded pool and
// waits for all of it to drain before returning.
func (m *Materializer) linkPhotos(ctx context.Context, dst string, split database.Split, photos []database.Photo, sr *SplitResult) error {
	var (
		mu      sync.Mutex
		missing = make([]bool, len(photos))
		errs    []error
		done    atomic.Int64
		linked  atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, p := range photos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			switch err := linkPhoto(p.FilePath, dst); {
			case errors.Is(err, os.ErrNotExist):
				m.logger.Warn("source image missing, skipping", "photo", p.ID, "path", p.FilePath)
				missing[i] = true
			case err != nil:
				mu.Lock()
				errs = append(errs, fmt.Errorf("photo %s: %w", p.ID, err))
				mu.Unlock()
			default:
				linked.Add(1)
			}
			m.progress(PhaseLink, split, int(done.Add(1)), len(photos))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("link %s images: %w", split, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("link %s images: %w", split, errors.Join(errs...))
	}

	sr.Linked = int(linked.Load())
	for i, miss := range missing {
		if miss {
			sr.Missing = append(sr.Missing, photos[i].FilePath)
		}
	}
	return nil
}

// linkPhoto creates dst/<basename of src> pointing at the absolute source.
func linkPhoto(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", abs)
	}
	return os.Symlink(abs, filepath.Join(dst, filepath.Base(abs)))
}

// exportLabels writes <photo id>.txt for every annotation whose class set
// equals the dataset's. When several qualify the last one in creation order
// wins.
func (m *Materializer) exportLabels(ctx context.Context, dst string, split database.Split, photos []database.Photo, classes []string, sr *SplitResult) error {
	for i, p := range photos {
		if err := ctx.Err(); err != nil {
			return err
		}
		annotations, err := m.store.AnnotationsForPhoto(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("load annotations of photo %s: %w", p.ID, err)
		}

		written := false
		for _, a := range annotations {
			if !database.SameClasses(a.Classes, classes) {
				continue
			}
			if err := writeLabel(filepath.Join(dst, p.ID+".txt"), a.Lines); err != nil {
				return err
			}
			written = true
		}
		if written {
			sr.Labels++
		}
		m.progress(PhaseLabels, split, i+1, len(photos))
	}
	return nil
}

func writeLabel(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write label %s: %w", path, err)
	}
	return nil
}

// progress forwards every step to the callback and logs checkpoints.
func (m *Materializer) progress(phase Phase, split database.Split, current, total int) {
	if m.opts.OnProgress != nil {
		m.opts.OnProgress(Progress{Phase: phase, Split: split, Current: current, Total: total})
	}
	if current%constants.ProgressInterval == 0 || current == total {
		m.logger.Info("progress",
			"phase", phase,
			"split", split,
			"done", current,
			"total", total,
			"percent", fmt.Sprintf("%.2f", float64(current)*100/float64(total)))
	}
}
