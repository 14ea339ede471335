package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/ingest"
)

var photoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Photo record operations",
	Long:  `Commands for importing photos and querying their metadata records.`,
}

var photoImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import capture files into the image store",
	Long: `Copies every image directly inside a directory into IMAGE_DIR/<YYYYMMDD>/
and records latitude, longitude and capture date parsed from the filename.
Files whose names do not follow the capture schema are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhotoImport,
}

var photoCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count photos matching a filter",
	Long: `Counts photo records matching an optional JSON filter, e.g.

  {"exact": {"capture_date": "2024-05-01"}, "range": {"latitude": {"gte": -37, "lte": -36}}}`,
	Args: cobra.NoArgs,
	RunE: runPhotoCount,
}

func init() {
	rootCmd.AddCommand(photoCmd)
	photoCmd.AddCommand(photoImportCmd)
	photoCmd.AddCommand(photoCountCmd)

	photoImportCmd.Flags().Bool("json", false, "Output as JSON")
	photoCountCmd.Flags().String("filter", "", "Path to a JSON filter file (- for stdin)")
}

func runPhotoImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	importer := ingest.NewImporter(store, cfg.Paths.ImageDir, logger)
	bar := newProgressBar(-1, "Importing", jsonOutput)
	if bar != nil {
		importer.OnProgress = func(current, total int) {
			bar.ChangeMax(total)
			bar.Set(current)
		}
	}

	photos, importErr := importer.ImportDir(ctx, args[0])
	if bar != nil {
		fmt.Fprintln(os.Stderr)
	}

	if jsonOutput {
		if photos == nil {
			photos = []database.Photo{}
		}
		if err := outputJSON(photos); err != nil {
			return err
		}
		return importErr
	}
	fmt.Printf("Imported %d photos into %s\n", len(photos), cfg.Paths.ImageDir)
	return importErr
}

func runPhotoCount(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	filter, err := readFilter(mustGetString(cmd, "filter"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.CountPhotos(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to count photos: %w", err)
	}
	fmt.Println(n)
	return nil
}

// readFilter loads a JSON filter from path, stdin for "-", or returns the
// empty filter for "".
func readFilter(path string) (database.Filter, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return database.Filter{}, nil
	case "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return database.Filter{}, fmt.Errorf("failed to read filter: %w", err)
	}
	return database.ParseFilter(data)
}
