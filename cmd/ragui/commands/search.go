// ABOUTME: CLI command for semantic search over the movie collection
// ABOUTME: Retrieval only; no query rewriting and no explanation
package commands

import (
	"fmt"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/spf13/cobra"
)

var searchFilters filterFlags

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles by description",
		Long: `Search titles by description.

Embeds the query and returns the closest titles from the collection,
optionally restricted by rating, content type, and release year.

Examples:
  ragui search "a heist that goes wrong"
  ragui search --rating PG --top-k 10 "talking animals"
  ragui search --format json --after 2015 "space station"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	searchFilters.register(cmd)

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	filter, err := searchFilters.filter()
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	query := args[0]
	res, err := a.Pipeline.Retriever().Retrieve(cmd.Context(), query, filter, searchFilters.topK)
	if err != nil {
		return fmt.Errorf("searching titles: %w", err)
	}

	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), res)
	}
	if res.Empty() {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No titles found for query: %s\n", query)
		}
		return nil
	}
	printResults(cmd.OutOrStdout(), res)
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d result(s)\n", res.Len())
	}
	return nil
}
