// ABOUTME: Version command printing build metadata
// ABOUTME: goreleaser fills in version, commit, and date through SetVersion
package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo describes the running build
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

var versionInfo = VersionInfo{Version: "dev", Commit: "none", Date: "unknown", Go: runtime.Version()}

// SetVersion records build metadata from main
func SetVersion(version, commit, date string) {
	versionInfo.Version, versionInfo.Commit, versionInfo.Date = version, commit, date
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Print the BookBuddy version with its commit, build date, and Go toolchain.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case short:
				fmt.Fprintln(out, versionInfo.Version)
			case wantJSON():
				return printJSON(out, versionInfo)
			default:
				fmt.Fprintf(out, "bookbuddy %s (%s, built %s, %s)\n",
					versionInfo.Version, versionInfo.Commit, versionInfo.Date, versionInfo.Go)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	return cmd
}
