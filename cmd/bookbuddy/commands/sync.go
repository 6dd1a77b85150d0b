// ABOUTME: Sync commands for the Charm cloud blob backend
// ABOUTME: Provides status, manual sync, stored file listing, and linked keys
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/bookbuddy/internal/blob"
)

// NewSyncCmd creates the sync command group
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage Charm cloud storage for uploaded files",
		Long: `Manage uploaded files stored with Charm (BOOKBUDDY_BLOB_BACKEND=charm).

Charm stores book files in a cloud-synced key-value database tied to
your SSH keys, so workers on other machines linked to the same Charm
account can read uploads.`,
	}

	cmd.AddCommand(newSyncStatusCmd())
	cmd.AddCommand(newSyncNowCmd())
	cmd.AddCommand(newSyncFilesCmd())
	cmd.AddCommand(newSyncKeysCmd())

	return cmd
}

// withCharm opens the app and hands its Charm blob store to fn
func withCharm(fn func(a *app, c *blob.Charm) error) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	c, ok := a.blobs.(*blob.Charm)
	if !ok {
		return fmt.Errorf("blob backend is %q; set BOOKBUDDY_BLOB_BACKEND=charm to use sync", a.cfg.BlobBackend)
	}
	return fn(a, c)
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Charm connection info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCharm(func(a *app, c *blob.Charm) error {
				out := cmd.OutOrStdout()
				id, err := c.ID()
				if err != nil {
					fmt.Fprintln(out, "Status: Not connected")
					fmt.Fprintln(out, "Run 'bookbuddy sync keys' to check your SSH keys")
					return nil
				}
				fmt.Fprintln(out, "Status: Connected")
				fmt.Fprintf(out, "User ID: %s\n", id)
				fmt.Fprintf(out, "Host: %s\n", a.cfg.CharmHost)
				fmt.Fprintf(out, "Database: %s\n", a.cfg.CharmDBName)
				return nil
			})
		},
	}
}

func newSyncNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Force immediate sync with Charm cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCharm(func(a *app, c *blob.Charm) error {
				if err := c.Sync(); err != nil {
					return fmt.Errorf("sync failed: %w", err)
				}
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "Sync complete")
				}
				return nil
			})
		},
	}
}

func newSyncFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List uploaded files stored in Charm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCharm(func(a *app, c *blob.Charm) error {
				keys, err := c.Keys()
				if err != nil {
					return err
				}
				if wantJSON() {
					return printJSON(cmd.OutOrStdout(), keys)
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			})
		},
	}
}

func newSyncKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List authorized SSH keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCharm(func(a *app, c *blob.Charm) error {
				keys, err := c.AuthorizedKeys()
				if err != nil {
					return fmt.Errorf("failed to get authorized keys: %w", err)
				}
				if keys == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "No authorized keys found")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Authorized SSH keys:")
				fmt.Fprintln(cmd.OutOrStdout(), keys)
				return nil
			})
		},
	}
}
