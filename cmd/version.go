package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("patchsmith %s\n", version)
		fmt.Printf("  go:      %s\n", runtime.Version())
		fmt.Printf("  built:   %s\n", buildDate)
		commit := gitCommit
		if commit == "" {
			if info, ok := debug.ReadBuildInfo(); ok {
				for _, setting := range info.Settings {
					if setting.Key == "vcs.revision" {
						commit = setting.Value
						break
					}
				}
			}
		}
		if commit != "" {
			fmt.Printf("  commit:  %s\n", commit)
		}
	},
}
