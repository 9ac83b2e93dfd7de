// ABOUTME: Root command and global flags for the ragui CLI
// ABOUTME: Loads configuration and builds the logger before any subcommand runs
package commands

import (
	"fmt"

	"github.com/BASF-LSU-Collaborations/ragui/internal/config"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
)

const banner = `
██████╗  █████╗  ██████╗ ██╗   ██╗██╗
██╔══██╗██╔══██╗██╔════╝ ██║   ██║██║
██████╔╝███████║██║  ███╗██║   ██║██║
██╔══██╗██╔══██║██║   ██║██║   ██║██║
██║  ██║██║  ██║╚██████╔╝╚██████╔╝██║
╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝  ╚═════╝ ╚═╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragui",
		Short: "Conversational movie recommendations over a vector collection",
		Long: banner + `

Ask for movies and shows in plain language. Follow-up questions are
rewritten using the conversation so far, matched against title
descriptions with optional rating, type, and year filters, and
explained by a chat model.

Start by ingesting a dataset, then ask:
  ragui ingest netflix_titles.csv
  ragui ask "90s crime movies with a heist"`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, json, or text")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewStatsCmd(),
		NewClustersCmd(),
		NewExportCmd(),
		NewSyncCmd(),
		NewMCPCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads configuration and builds a logger honoring --verbose and --quiet
func loadConfig() (*config.Config, *zap.Logger, error) {
	if err := validateFormat(outputFormat); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	logger, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
