package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// pruneCmd removes installed versions no longer referenced by any instance.
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove installed versions not referenced by any instance",
	Long: `Remove installed binary versions that no instance references.

References are recomputed by scanning every instance record at prune
time. If any record cannot be read, nothing is removed. A version whose
store lock is held (an install may be in progress elsewhere) is kept and
reported.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	RootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	referenced, err := a.registry.ReferencedVersions()
	if err != nil {
		return err
	}

	report, err := a.store.Prune(referenced)
	if err != nil {
		return err
	}

	for _, outcome := range report.Outcomes {
		if outcome.Removed {
			fmt.Printf("removed %s\n", outcome.ID.Key())
		} else {
			a.log.Warn("Version kept",
				zap.String("version", outcome.ID.Key()),
				zap.Error(outcome.Err))
		}
	}
	if len(report.Removed()) == 0 {
		fmt.Println("nothing to prune")
	}
	return nil
}
