// ABOUTME: CLI command to ingest a raw movie dataset into the collection
// ABOUTME: Runs extract, split, and embed, optionally watching the file for changes
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/ingest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestWorkDir   string
	ingestForce     bool
	ingestWatch     bool
	ingestBatchSize int
	ingestStage     string
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <raw-file>",
		Short: "Load a movie dataset into the collection",
		Long: `Load a movie dataset into the collection.

Reads a CSV (with a header row) or JSON array of titles, splits
descriptions from metadata, embeds the descriptions in batches, and
stores them. Intermediate artifacts and a manifest are kept in the
work directory so re-runs skip unchanged stages and titles.

Examples:
  ragui ingest netflix_titles.csv
  ragui ingest --force --batch-size 50 netflix_titles.csv
  ragui ingest --stage split netflix_titles.csv
  ragui ingest --watch netflix_titles.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestWorkDir, "work-dir", "", "Directory for intermediate artifacts (default: <data dir>/ingest)")
	cmd.Flags().BoolVar(&ingestForce, "force", false, "Re-run every stage and re-embed every title")
	cmd.Flags().BoolVar(&ingestWatch, "watch", false, "Re-run when the raw file changes")
	cmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "Descriptions per embedding request (default from config)")
	cmd.Flags().StringVar(&ingestStage, "stage", "", "Run only one stage: extract, split, or embed")
	cmd.MarkFlagsMutuallyExclusive("watch", "stage")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestBatchSize < 0 {
		return validatePositiveInt(ingestBatchSize, "batch-size")
	}
	rawPath := args[0]
	if ingestStage == "" || ingestStage == ingest.StageExtract {
		if _, err := os.Stat(rawPath); err != nil {
			return fmt.Errorf("dataset not found: %w", err)
		}
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	in := a.Ingester(ingest.Options{
		WorkDir:   ingestWorkDir,
		BatchSize: ingestBatchSize,
		Force:     ingestForce,
	})

	if ingestStage != "" {
		rep, err := in.RunStage(ctx, ingestStage, rawPath)
		if err != nil {
			return err
		}
		return printReport(cmd, rep)
	}

	rep, err := in.Run(ctx, rawPath)
	if err != nil {
		return err
	}
	if err := printReport(cmd, rep); err != nil {
		return err
	}
	if !ingestWatch {
		return nil
	}

	// Forced re-embedding applies to the first run only
	watcher := a.Ingester(ingest.Options{WorkDir: ingestWorkDir, BatchSize: ingestBatchSize})
	return ingest.Watch(ctx, rawPath, ingest.DefaultDebounce, func(ctx context.Context) error {
		rep, err := watcher.Run(ctx, rawPath)
		if err != nil {
			return err
		}
		logger.Info("re-ingested dataset", zap.Int("embedded", rep.Embedded), zap.Int("unchanged", rep.Unchanged), zap.Int("removed", rep.Removed))
		return nil
	}, logger)
}

func printReport(cmd *cobra.Command, rep ingest.Report) error {
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), rep)
	}
	if quiet {
		return nil
	}
	out := cmd.OutOrStdout()
	if rep.Extracted > 0 {
		fmt.Fprintf(out, "Extracted: %d titles\n", rep.Extracted)
	}
	fmt.Fprintf(out, "Records:   %d\n", rep.Records)
	fmt.Fprintf(out, "Embedded:  %d (in %d batches)\n", rep.Embedded, rep.Batches)
	fmt.Fprintf(out, "Unchanged: %d\n", rep.Unchanged)
	if rep.Removed > 0 {
		fmt.Fprintf(out, "Removed:   %d\n", rep.Removed)
	}
	if len(rep.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped:   %v\n", rep.Skipped)
	}
	fmt.Fprintf(out, "Elapsed:   %s\n", rep.Elapsed.Round(time.Millisecond))
	return nil
}
