// ABOUTME: Export command writing the movie collection to YAML, Markdown, or JSON
// ABOUTME: Works with every store backend
package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportFormat  string
	exportOutput  string
	exportVectors bool
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the collection to a file",
		Long: `Export the collection to a file.

Formats:
  yaml      Titles, metadata, and descriptions (default)
  markdown  A readable catalog table followed by descriptions
  json      Same content as yaml; add --vectors to include embeddings

Examples:
  ragui export
  ragui export --as markdown -o catalog.md
  ragui export --as json --vectors -o backup.json`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVar(&exportFormat, "as", storage.ExportYAML, "Export format: yaml, markdown, or json")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output path (default ragui-export.<ext>)")
	cmd.Flags().BoolVar(&exportVectors, "vectors", false, "Include embedding vectors (yaml and json only)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if format == "md" {
		format = storage.ExportMarkdown
	}
	path := exportOutput
	if path == "" {
		path = "ragui-export." + exportExt(format)
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

	if err := storage.ExportToFile(cmd.Context(), a.Store, format, path, exportVectors); err != nil {
		return err
	}

	abs, _ := filepath.Abs(path)
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), map[string]string{"format": format, "path": abs})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported collection to %s\n", abs)
	return nil
}

func exportExt(format string) string {
	switch format {
	case storage.ExportMarkdown:
		return "md"
	case storage.ExportJSON:
		return "json"
	}
	return "yaml"
}
