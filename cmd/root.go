package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "patchsmith",
	Short: "Plan-driven code patching with LLM output negotiation",
	Long: `Patchsmith is the builder stage of an LLM coding pipeline. Given a
plan (ordered steps and target files) and a context bundle, it negotiates a
usable output protocol with the model, validates the result against a
write-scope safety policy, and applies the patches to the workspace with
strict ambiguity rejection.

Available commands:
  build    - Execute a plan against the workspace
  init     - Create the .patchsmith workspace directory and default config
  log      - Show recorded revisions and their diffs
  version  - Print version information`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(versionCmd)
}
