// ABOUTME: CLI commands to upload a book and poll its ingestion job
// ABOUTME: With the in-process queue the upload is ingested before the command returns
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harper/bookbuddy/internal/library"
	"github.com/harper/bookbuddy/internal/models"
)

var (
	uploadTitle    string
	uploadAuthor   string
	uploadLanguage string
)

// NewUploadCmd creates upload command
func NewUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a PDF, EPUB, or TXT book",
		Long: `Upload a book and queue it for ingestion.

The file is parsed into pages, split into overlapping passages, and
embedded. With the default in-process queue the command waits for
ingestion to finish; with the Redis queue a separate "bookbuddy worker"
picks the job up and "bookbuddy status <job-id>" reports progress.

Examples:
  bookbuddy upload emma.epub
  bookbuddy upload --title "Pride and Prejudice" --author "Jane Austen" pp.txt
  bookbuddy upload --format json paper.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().StringVar(&uploadTitle, "title", "", "Title (defaults to the file name)")
	cmd.Flags().StringVar(&uploadAuthor, "author", "", "Author")
	cmd.Flags().StringVar(&uploadLanguage, "language", "", "Language code")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	inline := a.cfg.QueueBackend == "memory"
	if inline {
		if err := a.openModels(); err != nil {
			return err
		}
	}

	result, err := a.library.Upload(cmd.Context(), library.UploadRequest{
		Filename: filepath.Base(path),
		Data:     data,
		Title:    uploadTitle,
		Author:   uploadAuthor,
		Language: uploadLanguage,
		OwnerID:  a.cfg.UserID,
	})
	if err != nil {
		return err
	}

	if inline {
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Ingesting %s...\n", result.Document.Title)
		}
		a.drainQueue(cmd.Context())
	}

	report, err := a.library.Status(cmd.Context(), result.JobID)
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"document": result.Document,
			"job":      report,
		})
	}

	out := cmd.OutOrStdout()
	switch report.Status {
	case models.JobCompleted:
		chunks := 0
		if report.TotalChunks != nil {
			chunks = *report.TotalChunks
		}
		fmt.Fprintf(out, "✓ Ingested %q (%d passages)\n", result.Document.Title, chunks)
	case models.JobFailed:
		return fmt.Errorf("ingestion failed: %s", report.ErrorMessage)
	default:
		fmt.Fprintf(out, "✓ Queued %q\n", result.Document.Title)
	}
	if !quiet {
		fmt.Fprintf(out, "Document: %s\nJob:      %s\n", result.Document.ID, result.JobID)
	}
	return nil
}

// NewStatusCmd creates status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show ingestion progress for a job",
		Long: `Show the status, progress, and passage count of an ingestion job.

Examples:
  bookbuddy status 3f1c...
  bookbuddy status --format json 3f1c...`,
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.library.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", report.JobID)
	fmt.Fprintf(out, "Document: %s\n", report.DocumentID)
	fmt.Fprintf(out, "Status:   %s (%d%%)\n", report.Status, report.Progress)
	if report.TotalChunks != nil {
		fmt.Fprintf(out, "Passages: %d\n", *report.TotalChunks)
	}
	if report.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", report.ErrorMessage)
	}
	return nil
}
