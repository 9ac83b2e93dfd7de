// ABOUTME: Shared utility functions for CLI commands
// ABOUTME: Output format selection, result tables, and filter flags used by ask and search
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

func validateFormat(format string) error {
	switch format {
	case "auto", "json", "text":
		return nil
	}
	return fmt.Errorf("unknown --format %q (want auto, json, or text)", format)
}

// wantJSON resolves --format; auto picks JSON when stdout is not a terminal
func wantJSON(cmd *cobra.Command) bool {
	switch outputFormat {
	case "json":
		return true
	case "text":
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}

// printResults renders ranked titles as a table
func printResults(w io.Writer, res models.RetrievalResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tSCORE\tTITLE\tTYPE\tYEAR\tRATING\tDESCRIPTION\n")
	fmt.Fprintf(tw, "-\t-----\t-----\t----\t----\t------\t-----------\n")
	for i, it := range res.Items {
		m := it.Movie
		fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			it.Similarity,
			truncate(m.Title, 30),
			m.Type,
			yearLabel(m.ReleaseYear),
			ratingLabel(m.Rating),
			truncate(m.Description, 60))
	}
	_ = tw.Flush()
}

func yearLabel(year int) string {
	if year == models.MissingReleaseYear {
		return "unknown"
	}
	return fmt.Sprintf("%d", year)
}

func ratingLabel(rating string) string {
	if rating == models.MissingRating {
		return "unrated"
	}
	return rating
}

// filterFlags are the metadata filter flags shared by ask and search
type filterFlags struct {
	rating  string
	typ     string
	yearMin int
	yearMax int
	after   int
	topK    int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.rating, "rating", "", "Only titles with this rating (e.g. PG-13)")
	cmd.Flags().StringVar(&f.typ, "type", "", "Only this content type (Movie or \"TV Show\")")
	cmd.Flags().IntVar(&f.yearMin, "year-min", 0, "Earliest release year (inclusive)")
	cmd.Flags().IntVar(&f.yearMax, "year-max", 0, "Latest release year (inclusive)")
	cmd.Flags().IntVar(&f.after, "after", 0, "Only titles released after this year")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "Number of titles to retrieve (default from config)")
}

func (f *filterFlags) filter() (models.Filter, error) {
	if f.topK < 0 {
		return nil, validatePositiveInt(f.topK, "top-k")
	}
	filter := models.Criteria{
		Rating:  f.rating,
		Type:    f.typ,
		YearMin: f.yearMin,
		YearMax: f.yearMax,
		After:   f.after,
	}.Filter()
	return filter.Validate()
}
