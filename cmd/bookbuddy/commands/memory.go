// ABOUTME: CLI commands to save and list reader memories
// ABOUTME: Quotes, preferences, goals, and notes feed later answers as context
package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/bookbuddy/internal/chat"
	"github.com/harper/bookbuddy/internal/models"
)

var (
	memoryAddType     string
	memoryAddDocument string
	memoryAddPage     int
	memoryAddFile     string

	memoryListType     string
	memoryListDocument string
)

// NewMemoryCmd creates the memory command group
func NewMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Save and list quotes, preferences, goals, and notes",
		Long: `Memories are short notes BookBuddy keeps about you. The most recent
ones are passed along as context when answering, so a saved goal such
as "writing an essay on class in Austen" shapes later answers.

Memories need an identity: set BOOKBUDDY_USER or user_id in the config.`,
	}

	cmd.AddCommand(newMemoryAddCmd())
	cmd.AddCommand(newMemoryListCmd())

	return cmd
}

func newMemoryAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Save a memory",
		Long: `Save a memory from an argument, a file, or stdin.

Examples:
  bookbuddy memory add "prefers short answers" --type preference
  bookbuddy memory add --type quote --document 3f1c... --page 12 "Silly things do cease to be silly..."
  bookbuddy memory add --file goals.txt --type goal`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMemoryAdd,
	}

	cmd.Flags().StringVar(&memoryAddType, "type", "note", "Memory type: quote, preference, goal, or note")
	cmd.Flags().StringVar(&memoryAddDocument, "document", "", "Document the memory is about")
	cmd.Flags().IntVar(&memoryAddPage, "page", 0, "Page of a quote")
	cmd.Flags().StringVar(&memoryAddFile, "file", "", "Read memory text from file")

	return cmd
}

func runMemoryAdd(cmd *cobra.Command, args []string) error {
	var text string
	switch {
	case memoryAddFile != "":
		data, err := os.ReadFile(memoryAddFile)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		text = string(data)
	case len(args) > 0:
		text = args[0]
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("no text provided")
	}
	mt := models.MemoryType(strings.ToLower(memoryAddType))
	if !mt.IsValid() {
		return fmt.Errorf("invalid memory type %q: use quote, preference, goal, or note", memoryAddType)
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	if a.cfg.UserID == "" {
		return fmt.Errorf("memories need an owner: set BOOKBUDDY_USER")
	}

	memory := &models.UserMemory{
		OwnerID:    a.cfg.UserID,
		DocumentID: memoryAddDocument,
		Type:       mt,
		Text:       text,
		Page:       memoryAddPage,
	}
	if err := chat.NewService(a.store, nil, a.log).SaveMemory(cmd.Context(), memory); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s %s\n", mt, memory.ID)
	}
	return nil
}

func newMemoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved memories",
		Long: `List your memories, newest first.

Examples:
  bookbuddy memory list
  bookbuddy memory list --type quote --document 3f1c...
  bookbuddy memory list --format json`,
		Args: cobra.NoArgs,
		RunE: runMemoryList,
	}

	cmd.Flags().StringVar(&memoryListType, "type", "", "Only this memory type")
	cmd.Flags().StringVar(&memoryListDocument, "document", "", "Only memories about this document")

	return cmd
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	if a.cfg.UserID == "" {
		return fmt.Errorf("memories need an owner: set BOOKBUDDY_USER")
	}

	svc := chat.NewService(a.store, nil, a.log)
	memType := models.MemoryType(strings.ToLower(memoryListType))
	var memories []models.UserMemory
	if memType == models.MemoryQuote {
		memories, err = svc.ListQuotes(cmd.Context(), memoryListDocument, a.cfg.UserID)
	} else {
		memories, err = svc.Memories(cmd.Context(), a.cfg.UserID, memoryListDocument, memType)
	}
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), memories)
	}

	if len(memories) == 0 {
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "No memories saved")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TYPE\tTEXT\tPAGE\tSAVED\n")
	fmt.Fprintf(w, "----\t----\t----\t-----\n")
	for _, m := range memories {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Type, truncate(m.Text, 60), pageLabel(m.Page), formatTime(m.CreatedAt))
	}
	return w.Flush()
}
