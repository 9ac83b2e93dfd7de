// ABOUTME: CLI command describing the movie collection
// ABOUTME: Prints backend, size, and dimension, and optionally the first few entries
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/spf13/cobra"
)

var statsPeek int

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Long: `Show collection statistics.

Reports the store backend, its location, the number of stored titles,
and the embedding dimension. --peek lists the first entries in
insertion order.

Examples:
  ragui stats
  ragui stats --peek 5
  ragui stats --format json`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}

	cmd.Flags().IntVar(&statsPeek, "peek", 0, "Also list the first N entries")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsPeek < 0 {
		return validatePositiveInt(statsPeek, "peek")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.OpenStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	st, err := a.Store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	var peek []models.EmbeddingEntry
	if statsPeek > 0 {
		if peek, err = a.Store.Peek(cmd.Context(), statsPeek); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		type peekEntry struct {
			ID       string               `json:"id"`
			Metadata models.MovieMetadata `json:"metadata"`
			Document string               `json:"document"`
		}
		entries := make([]peekEntry, 0, len(peek))
		for _, e := range peek {
			entries = append(entries, peekEntry{ID: e.ID, Metadata: e.Metadata, Document: e.Document})
		}
		return printJSON(out, map[string]interface{}{
			"stats": st,
			"peek":  entries,
		})
	}

	fmt.Fprintf(out, "Backend:    %s\n", st.Backend)
	fmt.Fprintf(out, "Location:   %s\n", st.Location)
	fmt.Fprintf(out, "Titles:     %d\n", st.Count)
	fmt.Fprintf(out, "Dimension:  %d\n", st.Dimension)

	if len(peek) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tTITLE\tTYPE\tYEAR\tRATING\n")
		fmt.Fprintf(w, "--\t-----\t----\t----\t------\n")
		for _, e := range peek {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.ID,
				truncate(e.Metadata.Title, 40),
				e.Metadata.Type,
				yearLabel(e.Metadata.ReleaseYear),
				ratingLabel(e.Metadata.Rating))
		}
		_ = w.Flush()
	}
	return nil
}
