package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/dataset"
)

var annotationCmd = &cobra.Command{
	Use:   "annotation",
	Short: "Bounding-box annotation records",
	Long: `Annotations are produced by an external labelling step. Each one holds
the class list it was made for and lines of "<class> <x> <y> <w> <h>" with
coordinates normalised to [0, 1].`,
}

var annotationAddCmd = &cobra.Command{
	Use:   "add <photo-id>",
	Short: "Store an annotation for a photo",
	Long: `Reads annotation lines from --file (- for stdin) and stores them for a photo.

Example:
  photo-curator annotation add 3f0c... --classes tree,stump --file labels.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnotationAdd,
}

var annotationListCmd = &cobra.Command{
	Use:   "list <photo-id>",
	Short: "List the annotations of a photo in creation order",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnnotationList,
}

func init() {
	rootCmd.AddCommand(annotationCmd)
	annotationCmd.AddCommand(annotationAddCmd)
	annotationCmd.AddCommand(annotationListCmd)

	annotationAddCmd.Flags().String("classes", "", "Comma-separated class labels the annotation was made for")
	annotationAddCmd.Flags().String("file", "-", "File with one annotation line per row (- for stdin)")
	annotationAddCmd.Flags().Bool("json", false, "Output as JSON")
	annotationListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAnnotationAdd(cmd *cobra.Command, args []string) error {
	classes, err := dataset.ParseClasses(mustGetString(cmd, "classes"))
	if err != nil {
		return err
	}
	lines, err := readLines(mustGetString(cmd, "file"))
	if err != nil {
		return err
	}

	annotation := &database.Annotation{PhotoID: args[0], Classes: classes, Lines: lines}
	if err := database.ValidateAnnotation(annotation); err != nil {
		return err
	}

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

	if _, err := store.GetPhoto(ctx, args[0]); err != nil {
		return fmt.Errorf("photo %s: %w", args[0], err)
	}
	if err := store.SaveAnnotation(ctx, annotation); err != nil {
		return fmt.Errorf("failed to save annotation: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(annotation)
	}
	fmt.Printf("Annotation %s stored with %d boxes\n", annotation.ID, len(annotation.Lines))
	return nil
}

func runAnnotationList(cmd *cobra.Command, args []string) error {
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

	annotations, err := store.AnnotationsForPhoto(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to list annotations: %w", err)
	}

	if mustGetBool(cmd, "json") {
		if annotations == nil {
			annotations = []database.Annotation{}
		}
		return outputJSON(annotations)
	}

	rows := make([][]string, 0, len(annotations))
	for _, a := range annotations {
		rows = append(rows, []string{
			a.ID,
			strings.Join(a.Classes, ","),
			fmt.Sprint(len(a.Lines)),
			a.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	fmt.Println(renderTable([]string{"ID", "Classes", "Boxes", "Created"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	return nil
}

// readLines returns the non-blank lines of path, or of stdin for "-", exactly
// as written apart from the line terminator.
func readLines(path string) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation lines: %w", err)
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := sc.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
