// ABOUTME: Sync command for collections stored on Charm cloud
// ABOUTME: Pushes local writes and pulls remote ones; other backends have nothing to sync
package commands

import (
	"fmt"

	"github.com/BASF-LSU-Collaborations/ragui/internal/app"
	"github.com/BASF-LSU-Collaborations/ragui/internal/storage"
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync the collection with Charm cloud",
		Long: `Sync the collection with Charm cloud.

Only the charm store backend replicates to a server. Charm uses your
SSH keys, so collections sync across devices linked to the same
account. Set store_backend = "charm" (or RAGUI_STORE=charm) to use it.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	syncer, ok := a.Store.(storage.Syncer)
	if !ok {
		if wantJSON(cmd) {
			return printJSON(out, map[string]interface{}{"backend": cfg.StoreBackend, "synced": false})
		}
		fmt.Fprintf(out, "The %s backend has nothing to sync\n", cfg.StoreBackend)
		return nil
	}

	if err := syncer.Sync(cmd.Context()); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if wantJSON(cmd) {
		return printJSON(out, map[string]interface{}{"backend": cfg.StoreBackend, "synced": true})
	}
	fmt.Fprintln(out, "Sync complete")
	return nil
}
