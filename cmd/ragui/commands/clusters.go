// ABOUTME: CLI command grouping the collection into clusters of similar titles
// ABOUTME: Prints each cluster's label, size, and most central titles
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/cluster"
	"github.com/spf13/cobra"
)

var (
	clustersK               int
	clustersSample          int
	clustersRepresentatives int
	clustersInsights        bool
	clustersMembers         bool
)

// NewClustersCmd creates the clusters command
func NewClustersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Group the collection into clusters of similar titles",
		Long: `Group the collection into clusters of similar titles.

Runs k-means over the stored description embeddings and lists, for
each cluster, its size and the titles closest to its centre. With
--insights the chat model labels every cluster and names its themes;
this needs an OpenAI API key.

Examples:
  ragui clusters
  ragui clusters --k 12 --representatives 5
  ragui clusters --insights --sample 2000
  ragui clusters --format json --members`,
		Args: cobra.NoArgs,
		RunE: runClusters,
	}

	cmd.Flags().IntVar(&clustersK, "k", cluster.DefaultK, "Number of clusters (2-20)")
	cmd.Flags().IntVar(&clustersSample, "sample", 0, "Cluster only the first N stored titles (0 = all)")
	cmd.Flags().IntVar(&clustersRepresentatives, "representatives", cluster.DefaultRepresentatives, "Central titles listed per cluster")
	cmd.Flags().BoolVar(&clustersInsights, "insights", false, "Ask the chat model to label each cluster")
	cmd.Flags().BoolVar(&clustersMembers, "members", false, "Include every member id (JSON output)")

	return cmd
}

func runClusters(cmd *cobra.Command, args []string) error {
	if clustersK < cluster.MinK || clustersK > cluster.MaxK {
		return fmt.Errorf("k must be between %d and %d", cluster.MinK, cluster.MaxK)
	}
	if clustersSample < 0 {
		return validatePositiveInt(clustersSample, "sample")
	}
	if err := validatePositiveInt(clustersRepresentatives, "representatives"); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	open := app.OpenStore
	if clustersInsights {
		open = app.New
	}
	a, err := open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.Clusters().Analyze(cmd.Context(), cluster.Options{
		K:               clustersK,
		Sample:          clustersSample,
		Representatives: clustersRepresentatives,
		Insights:        clustersInsights,
		Members:         clustersMembers,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		return printJSON(out, res)
	}

	if !quiet {
		fmt.Fprintf(out, "%d titles in %d clusters (%d iterations)\n\n", res.Titles, len(res.Clusters), res.Iterations)
	}
	for i, cl := range res.Clusters {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "[%d] %s (%d titles)\n", cl.ID, cl.Label, cl.Size)
		if clustersInsights {
			fmt.Fprintf(out, "    %s\n", cl.Description)
			if len(cl.Themes) > 0 {
				fmt.Fprintf(out, "    Themes:   %s\n", strings.Join(cl.Themes, ", "))
			}
			if len(cl.Keywords) > 0 {
				fmt.Fprintf(out, "    Keywords: %s\n", strings.Join(cl.Keywords, ", "))
			}
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, m := range cl.Representatives {
			fmt.Fprintf(w, "    %s\t%s\t%s\t%s\n",
				truncate(m.Title, 40),
				m.Type,
				yearLabel(m.ReleaseYear),
				ratingLabel(m.Rating))
		}
		_ = w.Flush()
	}
	return nil
}
