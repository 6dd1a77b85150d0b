// ABOUTME: Root command and global flags for the BookBuddy CLI
// ABOUTME: Registers every subcommand; --verbose and --quiet are mutually exclusive
package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
██████   ██████   ██████  ██   ██ ██████  ██    ██ ██████  ██████  ██    ██
██   ██ ██    ██ ██    ██ ██  ██  ██   ██ ██    ██ ██   ██ ██   ██  ██  ██
██████  ██    ██ ██    ██ █████   ██████  ██    ██ ██   ██ ██   ██   ████
██   ██ ██    ██ ██    ██ ██  ██  ██   ██ ██    ██ ██   ██ ██   ██    ██
██████   ██████   ██████  ██   ██ ██████   ██████  ██████  ██████     ██
`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookbuddy",
		Short: "Ask questions about your books and get cited answers",
		Long: banner + `
BookBuddy ingests PDF, EPUB, and plain-text books, indexes them as
embedded passages, and answers questions with numbered citations back
to the page and chapter they came from.

Configuration comes from BOOKBUDDY_CONFIG (a YAML file), environment
variables, and a .env file in the working directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(NewUploadCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewLibraryCmd())
	cmd.AddCommand(NewDeleteCmd())
	cmd.AddCommand(NewMemoryCmd())
	cmd.AddCommand(NewWorkerCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
