package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-curator/internal/dedup"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup <dir>",
	Short: "Remove blurry and near-duplicate photos from a capture directory",
	Long: `Scans the images directly inside a directory and deletes, in order:
  1. blurry images (frequency and Laplacian tests),
  2. photos taken within --gps-tolerance of an earlier photo,
  3. near-duplicate frames by normalized cross-correlation,
  4. near-duplicate frames by mean squared error.

Deletion is irreversible. Use --dry-run to see what would be removed.

Examples:
  # Preview removals
  photo-curator dedup ./captures --dry-run

  # Only run the pairwise image filters
  photo-curator dedup ./captures --skip blur,gps`,
	Args: cobra.ExactArgs(1),
	RunE: runDedup,
}

func init() {
	rootCmd.AddCommand(dedupCmd)

	dedupCmd.Flags().Int("fft-size", -1, "Half-width of the removed low-frequency window (default from config)")
	dedupCmd.Flags().Float64("fft-threshold", -1, "Mean log-magnitude at or below which an image is blurry (default from config)")
	dedupCmd.Flags().Float64("laplacian-threshold", -1, "Laplacian variance below which an image is blurry (default from config)")
	dedupCmd.Flags().Float64("gps-tolerance", -1, "Per-axis coordinate tolerance for GPS duplicates (default from config)")
	dedupCmd.Flags().Float64("ncc-threshold", -2, "Correlation above which frames are duplicates (default from config)")
	dedupCmd.Flags().Float64("mse-threshold", -1, "Mean squared error below which frames are duplicates (default from config)")
	dedupCmd.Flags().Int("workers", 0, "Number of parallel workers (default from config)")
	dedupCmd.Flags().Bool("dry-run", false, "Report what would be removed without deleting")
	dedupCmd.Flags().StringSlice("skip", nil, "Filters to skip: blur, gps, ncc, mse")
	dedupCmd.Flags().Bool("json", false, "Output as JSON")
}

func runDedup(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	opts := dedup.Options{
		FFTSize:            cfg.Dedup.FFTSize,
		FFTThreshold:       cfg.Dedup.FFTThreshold,
		LaplacianThreshold: cfg.Dedup.LaplacianThreshold,
		GPSTolerance:       cfg.Dedup.GPSTolerance,
		NCCThreshold:       cfg.Dedup.NCCThreshold,
		MSEThreshold:       cfg.Dedup.MSEThreshold,
		Workers:            cfg.Dedup.Workers,
		DryRun:             mustGetBool(cmd, "dry-run"),
		Skip:               map[dedup.Filter]bool{},
	}
	if cmd.Flags().Changed("fft-size") {
		opts.FFTSize = mustGetInt(cmd, "fft-size")
	}
	if cmd.Flags().Changed("fft-threshold") {
		opts.FFTThreshold = mustGetFloat64(cmd, "fft-threshold")
	}
	if cmd.Flags().Changed("laplacian-threshold") {
		opts.LaplacianThreshold = mustGetFloat64(cmd, "laplacian-threshold")
	}
	if cmd.Flags().Changed("gps-tolerance") {
		opts.GPSTolerance = mustGetFloat64(cmd, "gps-tolerance")
	}
	if cmd.Flags().Changed("ncc-threshold") {
		opts.NCCThreshold = mustGetFloat64(cmd, "ncc-threshold")
	}
	if cmd.Flags().Changed("mse-threshold") {
		opts.MSEThreshold = mustGetFloat64(cmd, "mse-threshold")
	}
	if w := mustGetInt(cmd, "workers"); w > 0 {
		opts.Workers = w
	}
	for _, name := range mustGetStringSlice(cmd, "skip") {
		f, err := dedup.ParseFilter(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		opts.Skip[f] = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, runErr := dedup.New(opts, logger).Run(ctx, args[0])
	if report == nil {
		return runErr
	}

	if mustGetBool(cmd, "json") {
		if err := outputJSON(report); err != nil {
			return err
		}
		return runErr
	}

	verb := "Removed"
	if report.DryRun {
		verb = "Would remove"
	}
	rows := [][]string{
		{string(dedup.FilterBlur), fmt.Sprint(len(report.Blurry))},
		{string(dedup.FilterGPS), fmt.Sprint(len(report.GPSDuplicates))},
		{string(dedup.FilterNCC), fmt.Sprint(len(report.NCCDuplicates))},
		{string(dedup.FilterMSE), fmt.Sprint(len(report.MSEDuplicates))},
	}
	fmt.Printf("Scanned %d images in %s\n", report.Scanned, report.Dir)
	fmt.Println(renderTable([]string{"Filter", verb}, rows, []columnAlignment{alignLeft, alignRight}))
	if len(report.Malformed) > 0 {
		fmt.Printf("Malformed filenames (GPS filter skipped them): %d\n", len(report.Malformed))
	}
	if len(report.Unreadable) > 0 {
		fmt.Printf("Unreadable images (kept): %d\n", len(report.Unreadable))
	}
	return runErr
}
