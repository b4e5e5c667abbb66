package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chughtapan/wags-gate/internal/buildinfo"
)

// Build information, surfaced from buildinfo so the upstream handshake
// reports the same version. Populated at build time via -ldflags.
var (
	Version   = buildinfo.Version
	Commit    = buildinfo.Commit
	BuildDate = buildinfo.BuildDate
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build date of wags-gate.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wags-gate %s\n", Version)
		fmt.Printf("  Commit:     %s\n", Commit)
		fmt.Printf("  Built:      %s\n", BuildDate)
		fmt.Printf("  Go version: %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
