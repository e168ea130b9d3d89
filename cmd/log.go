package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchsmith/patchsmith/pkg/changetracker"
)

var logShowDiffs bool

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recorded revisions and their diffs",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := os.Getwd()
		if err != nil {
			return err
		}
		revisions, err := changetracker.NewTracker(root).Revisions()
		if err != nil {
			return err
		}
		if len(revisions) == 0 {
			fmt.Println("no revisions recorded")
			return nil
		}
		for _, rev := range revisions {
			fmt.Printf("%s  %-7s  %s\n", rev.Timestamp.Format("2006-01-02 15:04:05"), rev.Action, rev.File)
			if logShowDiffs {
				fmt.Println(changetracker.RenderDiff(rev.Before, rev.After))
			}
		}
		return nil
	},
}

func init() {
	logCmd.Flags().BoolVarP(&logShowDiffs, "diff", "d", false, "Show the diff for each revision")
}
