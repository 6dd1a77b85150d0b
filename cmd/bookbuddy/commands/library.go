// ABOUTME: CLI commands to list and delete documents in the library
// ABOUTME: Only owners (or anyone, for documents without an owner) may delete
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/bookbuddy/internal/library"
)

var libraryMine bool

// NewLibraryCmd creates library command
func NewLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List uploaded books",
		Long: `List every book in the library with its ingestion status.

A check mark in the OWNER column means you may delete the book: you
uploaded it, or it has no owner.

Examples:
  bookbuddy library
  bookbuddy library --mine
  bookbuddy library --format json`,
		Args: cobra.NoArgs,
		RunE: runLibrary,
	}

	cmd.Flags().BoolVar(&libraryMine, "mine", false, "Only books you uploaded")

	return cmd
}

func runLibrary(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.library.ListAll(cmd.Context(), a.cfg.UserID)
	if err != nil {
		return fmt.Errorf("listing library: %w", err)
	}
	if libraryMine {
		mine := entries[:0]
		for _, e := range entries {
			if e.OwnerID != "" && e.OwnerID == a.cfg.UserID {
				mine = append(mine, e)
			}
		}
		entries = mine
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), entries)
	}

	if len(entries) == 0 {
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "No books yet. Add one with: bookbuddy upload <file>")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tAUTHOR\tTYPE\tSTATUS\tOWNER\tADDED\n")
	fmt.Fprintf(w, "--\t-----\t------\t----\t------\t-----\t-----\n")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(e.ID, 12),
			truncate(e.Title, 30),
			truncate(e.Author, 20),
			e.FileType,
			jobLabel(e),
			ownerMark(e.IsOwner),
			formatTime(e.CreatedAt))
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d book(s)\n", len(entries))
	}
	return nil
}

func jobLabel(e library.Entry) string {
	if e.Job == nil {
		return "-"
	}
	if e.Job.Status == "processing" {
		return fmt.Sprintf("%s %d%%", e.Job.Status, e.Job.Progress)
	}
	return string(e.Job.Status)
}

func ownerMark(owner bool) string {
	if owner {
		return "✓"
	}
	return ""
}

// NewDeleteCmd creates delete command
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a book and everything derived from it",
		Long: `Delete a book with its passages, ingestion jobs, and the memories
tied to it. The stored file is removed as well.

Examples:
  bookbuddy delete 3f1c...`,
		Args: cobra.ExactArgs(1),
		RunE: runDelete,
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.library.Delete(cmd.Context(), args[0], a.cfg.UserID); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
	}
	return nil
}
