package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/materialize"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize <dataset-id>",
	Short: "Lay a dataset out in the working directory for training",
	Long: `Clears WORKING_DIR and rebuilds it for one dataset:

  images/{train,val,test}/   symlinks to the stored photos
  labels/{train,val,test}/   <photo-id>.txt for annotations matching the dataset classes
  data.yaml                  manifest for the trainer

Running it again for the same dataset produces the same layout. Only one
materialization may use a working directory at a time.`,
	Args: cobra.ExactArgs(1),
	RunE: runMaterialize,
}

func init() {
	rootCmd.AddCommand(materializeCmd)

	materializeCmd.Flags().Bool("images-only", false, "Link images only; skip labels and data.yaml")
	materializeCmd.Flags().Int("workers", 0, "Concurrent link workers per split (default from config)")
	materializeCmd.Flags().String("dir", "", "Working directory (default from config)")
	materializeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	dir := cfg.Paths.WorkingDir
	if d := mustGetString(cmd, "dir"); d != "" {
		dir = d
	}
	opts := materialize.Options{
		Workers:    cfg.Materialize.Workers,
		ImagesOnly: mustGetBool(cmd, "images-only"),
	}
	if w := mustGetInt(cmd, "workers"); w > 0 {
		opts.Workers = w
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	progress := &splitProgress{jsonOutput: jsonOutput}
	opts.OnProgress = progress.update

	result, err := materialize.New(store, dir, opts, logger).Materialize(ctx, args[0])
	progress.finish()
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	rows := make([][]string, 0, len(result.Splits))
	for _, sr := range result.Splits {
		rows = append(rows, []string{
			string(sr.Split),
			fmt.Sprint(sr.Photos),
			fmt.Sprint(sr.Linked),
			fmt.Sprint(len(sr.Missing)),
			fmt.Sprint(sr.Labels),
		})
	}
	fmt.Fprintln(os.Stdout, renderTable([]string{"Split", "Photos", "Linked", "Missing", "Labels"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}))
	fmt.Printf("Working directory: %s\n", result.Dir)
	if result.Manifest != "" {
		fmt.Printf("Manifest: %s\n", result.Manifest)
	}
	return nil
}

// splitProgress shows one progress bar per phase and split. Link progress
// arrives from several workers at once.
type splitProgress struct {
	jsonOutput bool

	mu    sync.Mutex
	phase materialize.Phase
	split database.Split
	bar   *progressbar.ProgressBar
}

func (sp *splitProgress) update(p materialize.Progress) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.bar == nil || p.Phase != sp.phase || p.Split != sp.split {
		sp.finishLocked()
		sp.phase, sp.split = p.Phase, p.Split
		sp.bar = newProgressBar(p.Total, fmt.Sprintf("%s %s", p.Phase, p.Split), sp.jsonOutput)
		if sp.bar == nil {
			return
		}
	}
	sp.bar.Set(p.Current)
}

func (sp *splitProgress) finish() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.finishLocked()
}

func (sp *splitProgress) finishLocked() {
	if sp.bar != nil {
		sp.bar.Finish()
		fmt.Fprintln(os.Stderr)
		sp.bar = nil
	}
}
