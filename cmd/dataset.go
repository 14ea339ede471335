package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/dataset"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Select and maintain train/val/test datasets",
}

var datasetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Select photos into a new dataset",
	Long: `Selects the photos matching --filter, shuffles them and splits them into
train, val and test. --split takes "train/test/val" percentages; the train
and val shares set the boundaries and test takes the remainder.

Example:
  photo-curator dataset create --name forest --split 70/10/20 \
    --classes tree,stump --filter filter.json`,
	Args: cobra.NoArgs,
	RunE: runDatasetCreate,
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dataset names",
	Args:  cobra.NoArgs,
	RunE:  runDatasetList,
}

var datasetShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a dataset by name or by --id",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDatasetShow,
}

var datasetExistsCmd = &cobra.Command{
	Use:   "exists <name>",
	Short: "Report whether a dataset name is taken",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetExists,
}

var datasetRemovePhotoCmd = &cobra.Command{
	Use:   "remove-photo <dataset-id> <photo-id>",
	Short: "Remove one photo from a dataset",
	Long:  `Removes the photo from the first split holding it, searching train, test and val in that order.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runDatasetRemovePhoto,
}

var datasetPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete datasets whose creation never completed",
	Args:  cobra.NoArgs,
	RunE:  runDatasetPrune,
}

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetCreateCmd, datasetListCmd, datasetShowCmd,
		datasetExistsCmd, datasetRemovePhotoCmd, datasetPruneCmd)

	datasetCreateCmd.Flags().String("name", "", "Dataset name (must be unique)")
	datasetCreateCmd.Flags().String("split", "70/10/20", "Split percentages as train/test/val")
	datasetCreateCmd.Flags().String("classes", "", "Comma-separated class labels")
	datasetCreateCmd.Flags().String("filter", "", "Path to a JSON filter file (- for stdin)")
	datasetCreateCmd.Flags().Bool("json", false, "Output as JSON")

	datasetListCmd.Flags().Bool("json", false, "Output as JSON")

	datasetShowCmd.Flags().String("id", "", "Look the dataset up by id instead of name")
	datasetShowCmd.Flags().Bool("json", false, "Output as JSON")

	datasetPruneCmd.Flags().Duration("older-than", constants.DefaultPruneAge,
		"Only delete records created longer ago than this (0 deletes every incomplete record)")
}

// withSelector opens the store and runs fn with a selector over it.
func withSelector(fn func(ctx context.Context, sel *dataset.Selector) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, dataset.NewSelector(store, logger))
}

func runDatasetCreate(cmd *cobra.Command, args []string) error {
	filter, err := readFilter(mustGetString(cmd, "filter"))
	if err != nil {
		return err
	}
	req := dataset.CreateRequest{
		Name:       mustGetString(cmd, "name"),
		Filter:     filter,
		SplitRatio: mustGetString(cmd, "split"),
		Classes:    mustGetString(cmd, "classes"),
	}

	return withSelector(func(ctx context.Context, sel *dataset.Selector) error {
		id, err := sel.Create(ctx, req)
		if err != nil {
			return err
		}
		d, err := sel.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if mustGetBool(cmd, "json") {
			return outputJSON(d)
		}
		fmt.Printf("Created dataset %s (%s)\n", d.Name, d.ID)
		printDatasetSummary(d)
		return nil
	})
}

func runDatasetList(cmd *cobra.Command, args []string) error {
	return withSelector(func(ctx context.Context, sel *dataset.Selector) error {
		names, err := sel.ListNames(ctx)
		if err != nil {
			return err
		}
		if mustGetBool(cmd, "json") {
			if names == nil {
				names = []string{}
			}
			return outputJSON(names)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	})
}

func runDatasetShow(cmd *cobra.Command, args []string) error {
	id := mustGetString(cmd, "id")
	if id == "" && len(args) == 0 {
		return errors.New("either provide a dataset name or use --id flag")
	}
	if id != "" && len(args) > 0 {
		return errors.New("cannot specify both dataset name and --id flag")
	}

	return withSelector(func(ctx context.Context, sel *dataset.Selector) error {
		var (
			d   *database.Dataset
			err error
		)
		if id != "" {
			d, err = sel.GetByID(ctx, id)
		} else {
			d, err = sel.GetByName(ctx, args[0])
		}
		if err != nil {
			return err
		}
		if mustGetBool(cmd, "json") {
			return outputJSON(d)
		}
		fmt.Printf("Dataset: %s\n", d.Name)
		fmt.Printf("ID:      %s\n", d.ID)
		fmt.Printf("Created: %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
		printDatasetSummary(d)
		return nil
	})
}

func printDatasetSummary(d *database.Dataset) {
	fmt.Printf("Classes: %s\n", strings.Join(d.Classes, ", "))
	rows := [][]string{
		{string(database.SplitTrain), fmt.Sprint(len(d.Train))},
		{string(database.SplitVal), fmt.Sprint(len(d.Val))},
		{string(database.SplitTest), fmt.Sprint(len(d.Test))},
		{"total", fmt.Sprint(d.Size())},
	}
	fmt.Println(renderTable([]string{"Split", "Photos"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func runDatasetExists(cmd *cobra.Command, args []string) error {
	return withSelector(func(ctx context.Context, sel *dataset.Selector) error {
		exists, err := sel.NameExists(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(exists)
		return nil
	})
}

func runDatasetRemovePhoto(cmd *cobra.Command, args []string) error {
	return withSelector(func(ctx context.Context, sel *dataset.Selector) error {
		split, err := sel.RemovePhoto(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Removed photo %s from %s split\n", args[1], split)
		return nil
	})
}

func runDatasetPrune(cmd *cobra.Command, args []string) error {
	olderThan := mustGetDuration(cmd, "older-than")
	return withSelector(func(ctx context.Context, sel *dataset.Selector) error {
		n, err := sel.Prune(ctx, olderThan)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d incomplete datasets\n", n)
		return nil
	})
}
