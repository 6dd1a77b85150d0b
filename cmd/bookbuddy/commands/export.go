// ABOUTME: Export command writes the library, memories, and conversations to a file
// ABOUTME: YAML for machines and re-import, Markdown for reading
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportFormat string
	exportAll    bool
)

// NewExportCmd creates export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your library, memories, and conversations",
		Long: `Export BookBuddy data to a file.

Formats:
  yaml      structured export of every record (default)
  markdown  readable summary with quotes and conversations

Examples:
  bookbuddy export
  bookbuddy export -o backup.yaml
  bookbuddy export -f markdown -o reading-notes.md
  bookbuddy export --all -o everything.yaml`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default bookbuddy-export-<date>.<ext>)")
	cmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "Export format: yaml or markdown")
	cmd.Flags().BoolVar(&exportAll, "all", false, "Export every document regardless of owner")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	var ext string
	switch format {
	case "yaml", "yml":
		format, ext = "yaml", "yaml"
	case "markdown", "md":
		format, ext = "markdown", "md"
	default:
		return fmt.Errorf("unknown export format %q: use yaml or markdown", exportFormat)
	}

	output := exportOutput
	if output == "" {
		output = fmt.Sprintf("bookbuddy-export-%s.%s", time.Now().Format("2006-01-02"), ext)
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	owner := a.cfg.UserID
	if exportAll {
		owner = ""
	}

	if format == "yaml" {
		err = a.store.ExportToYAML(cmd.Context(), owner, output)
	} else {
		err = a.store.ExportToMarkdown(cmd.Context(), owner, output)
	}
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported to %s\n", output)
	}
	return nil
}
