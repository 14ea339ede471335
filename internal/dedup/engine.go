// Package dedup removes blurry and near-duplicate photos from a capture
// directory before ingest.
//
// Filters run cheapest first: the per-file blur test, then the pairwise GPS,
// NCC and MSE detectors on whatever survived. Deletion is in place and
// irreversible unless Options.DryRun is set.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/imaging"
	"github.com/kozaktomas/photo-curator/internal/logging"
)

// Filter names one detector of the engine.
type Filter string

const (
	FilterBlur Filter = "blur"
	FilterGPS  Filter = "gps"
	FilterNCC  Filter = "ncc"
	FilterMSE  Filter = "mse"
)

// AllFilters lists every filter in execution order.
var AllFilters = []Filter{FilterBlur, FilterGPS, FilterNCC, FilterMSE}

// ParseFilter validates a filter name.
func ParseFilter(s string) (Filter, error) {
	for _, f := range AllFilters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Options holds the engine thresholds. All of them can be overridden.
type Options struct {
	FFTSize            int
	FFTThreshold       float64
	LaplacianThreshold float64
	GPSTolerance       float64
	NCCThreshold       float64
	MSEThreshold       float64
	Workers            int
	DryRun             bool
	Skip               map[Filter]bool
}

// DefaultOptions returns the thresholds the capture pipeline was tuned with.
func DefaultOptions() Options {
	return Options{
		FFTSize:            constants.DefaultFFTSize,
		FFTThreshold:       constants.DefaultFFTThreshold,
		LaplacianThreshold: constants.DefaultLaplacianThreshold,
		GPSTolerance:       constants.DefaultGPSTolerance,
		NCCThreshold:       constants.DefaultNCCThreshold,
		MSEThreshold:       constants.DefaultMSEThreshold,
		Workers:            runtime.GOMAXPROCS(0),
	}
}

// Report lists what each filter removed, in directory order.
type Report struct {
	Dir           string   `json:"dir"`
	Scanned       int      `json:"scanned"`
	DryRun        bool     `json:"dry_run"`
	Blurry        []string `json:"blurry"`
	GPSDuplicates []string `json:"gps_duplicates"`
	NCCDuplicates []string `json:"ncc_duplicates"`
	MSEDuplicates []string `json:"mse_duplicates"`
	Malformed     []string `json:"malformed,omitempty"`
	Unreadable    []string `json:"unreadable,omitempty"`
}

// Removed returns the number of files deleted (or that would be, on a dry run).
func (r *Report) Removed() int {
	return len(r.Blurry) + len(r.GPSDuplicates) + len(r.NCCDuplicates) + len(r.MSEDuplicates)
}

// Engine applies the filters to one directory at a time.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New creates an engine. A nil logger logs to slog.Default().
func New(opts Options, logger *slog.Logger) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{opts: opts, logger: logging.OrDefault(logger)}
}

func (e *Engine) enabled(f Filter) bool {
	return !e.opts.Skip[f]
}

// Run applies every enabled filter to the images directly inside dir.
// Per-file problems (unreadable images, malformed names) are reported and
// skipped; failed deletions are joined into the returned error.
func (e *Engine) Run(ctx context.Context, dir string) (*Report, error) {
	names, err := listImages(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Dir: dir, Scanned: len(names), DryRun: e.opts.DryRun}
	var errs []error

	if e.enabled(FilterBlur) {
		names, err = e.blurPass(ctx, dir, names, report, &errs)
		if err != nil {
			return report, err
		}
	}

	if e.enabled(FilterGPS) {
		names, err = e.gpsPass(ctx, dir, names, report, &errs)
		if err != nil {
			return report, err
		}
	}

	if e.enabled(FilterNCC) || e.enabled(FilterMSE) {
		canvases, err := e.loadCanvases(ctx, dir, names, report)
		if err != nil {
			return report, err
		}
		if e.enabled(FilterNCC) {
			canvases, err = e.pairPass(ctx, dir, canvases, FilterNCC, func(a, b canvas) bool {
				return nccScore(a, b) > e.opts.NCCThreshold
			}, &report.NCCDuplicates, &errs)
			if err != nil {
				return report, err
			}
		}
		if e.enabled(FilterMSE) {
			_, err = e.pairPass(ctx, dir, canvases, FilterMSE, func(a, b canvas) bool {
				return mseScore(a, b) < e.opts.MSEThreshold
			}, &report.MSEDuplicates, &errs)
			if err != nil {
				return report, err
			}
		}
	}

	e.logger.Info("dedup finished",
		"dir", dir,
		"scanned", report.Scanned,
		"removed", report.Removed(),
		"dry_run", e.opts.DryRun)
	return report, errors.Join(errs...)
}

// listImages returns image file names in dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && imaging.IsImageFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (e *Engine) remove(dir, name string) error {
	if e.opts.DryRun {
		return nil
	}
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

type blurResult struct {
	blurry     bool
	unreadable bool
	removeErr  error
}

// blurPass checks every file in parallel and deletes blurry ones as soon as
// they are found. Unreadable files are kept for the later filters.
func (e *Engine) blurPass(ctx context.Context, dir string, names []string, report *Report, errs *[]error) ([]string, error) {
	results := make([]blurResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gray, err := imaging.LoadGray(filepath.Join(dir, name))
			if err != nil {
				e.logger.Warn("could not read image", "file", name, "error", err)
				results[i].unreadable = true
				return nil
			}
			verdict := checkBlur(gray, e.opts)
			if !verdict.Blurry {
				return nil
			}
			e.logger.Debug("blurry image",
				"file", name,
				"fft_mean", verdict.FFTMean,
				"laplacian_variance", verdict.Laplacian)
			results[i].blurry = true
			results[i].removeErr = e.remove(dir, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("blur filter: %w", err)
	}

	survivors := make([]string, 0, len(names))
	for i, r := range results {
		switch {
		case r.blurry:
			report.Blurry = append(report.Blurry, names[i])
			if r.removeErr != nil {
				*errs = append(*errs, r.removeErr)
			}
		default:
			if r.unreadable {
				report.Unreadable = append(report.Unreadable, names[i])
			}
			survivors = append(survivors, names[i])
		}
	}

	e.logger.Info("blur filter done", "checked", len(names), "removed", len(report.Blurry))
	return survivors, nil
}

func (e *Engine) gpsPass(ctx context.Context, dir string, names []string, report *Report, errs *[]error) ([]string, error) {
	dups, malformed, err := gpsDuplicates(ctx, names, e.opts.GPSTolerance, e.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("gps filter: %w", err)
	}
	for _, name := range malformed {
		e.logger.Warn("skipping file with malformed GPS tokens", "file", name)
	}
	report.Malformed = append(report.Malformed, malformed...)

	drop := make(map[int]bool, len(dups))
	for _, idx := range dups {
		drop[idx] = true
		report.GPSDuplicates = append(report.GPSDuplicates, names[idx])
		if err := e.remove(dir, names[idx]); err != nil {
			*errs = append(*errs, err)
		}
	}

	survivors := make([]string, 0, len(names)-len(dups))
	for i, name := range names {
		if !drop[i] {
			survivors = append(survivors, name)
		}
	}

	e.logger.Info("gps filter done", "checked", len(names), "removed", len(dups), "malformed", len(malformed))
	return survivors, nil
}

// loadCanvases decodes and scales every survivor to the comparison canvas.
// Images that cannot be decoded are left out of the pairwise filters.
func (e *Engine) loadCanvases(ctx context.Context, dir string, names []string, report *Report) ([]canvas, error) {
	loaded := make([]*canvas, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gray, err := imaging.LoadGrayResized(filepath.Join(dir, name), constants.CompareWidth, constants.CompareHeight)
			if err != nil {
				e.logger.Warn("could not read image", "file", name, "error", err)
				return nil
			}
			c := newCanvas(name, gray)
			loaded[i] = &c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}

	canvases := make([]canvas, 0, len(names))
	for i, c := range loaded {
		if c == nil {
			if !slices.Contains(report.Unreadable, names[i]) {
				report.Unreadable = append(report.Unreadable, names[i])
			}
			continue
		}
		canvases = append(canvases, *c)
	}
	return canvases, nil
}

// pairPass scores all pairs in parallel, then resolves removals sequentially
// in enumeration order so the result does not depend on scheduling.
func (e *Engine) pairPass(ctx context.Context, dir string, canvases []canvas, filter Filter,
	match func(a, b canvas) bool, removed *[]string, errs *[]error) ([]canvas, error) {
	rows, err := pairMatches(ctx, len(canvases), e.opts.Workers, func(i, j int) bool {
		return match(canvases[i], canvases[j])
	})
	if err != nil {
		return nil, fmt.Errorf("%s filter: %w", filter, err)
	}

	marked := resolveLater(rows)
	survivors := make([]canvas, 0, len(canvases))
	for i, c := range canvases {
		if !marked[i] {
			survivors = append(survivors, c)
			continue
		}
		*removed = append(*removed, c.name)
		if err := e.remove(dir, c.name); err != nil {
			*errs = append(*errs, err)
		}
	}

	e.logger.Info(string(filter)+" filter done", "checked", len(canvases), "removed", len(canvases)-len(survivors))
	return survivors, nil
}
