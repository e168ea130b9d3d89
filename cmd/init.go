package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/patchsmith/patchsmith/pkg/config"
	"github.com/patchsmith/patchsmith/pkg/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .patchsmith workspace directory and default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(root, ".patchsmith"), 0755); err != nil {
			return err
		}
		cfgPath := filepath.Join(root, ".patchsmith", "config.json")
		if _, err := os.Stat(cfgPath); err == nil {
			fmt.Println("workspace already initialized")
			return nil
		}
		if err := config.Default().Save(root); err != nil {
			return err
		}
		protectedPath := filepath.Join(root, workspace.ProtectedRulesFile)
		if _, err := os.Stat(protectedPath); os.IsNotExist(err) {
			rules := "# Paths the builder must never modify, gitignore syntax.\n"
			if err := os.WriteFile(protectedPath, []byte(rules), 0644); err != nil {
				return err
			}
		}
		fmt.Println("initialized .patchsmith workspace")
		return nil
	},
}
