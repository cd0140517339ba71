package cmd

import (
	"fmt"

	"facts/core/policy"

	"github.com/spf13/cobra"
)

// updateCmd runs an explicit update check for one instance.
var updateCmd = &cobra.Command{
	Use:   "update NAME",
	Short: "Check for and apply an update to an instance",
	Long: `Resolve the instance's version specifier against the release feed and,
if a newer version exists, apply it under the instance's autoupdate
policy. With autoupdate disabled the available update is reported but
not applied.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	RootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}

	inst, err := a.registry.Get(name)
	if err != nil {
		return err
	}

	// The CLI drives one instance at a time; the instance is not running
	// from this process's point of view
	result, err := a.engine.CheckAndApply(ctx, inst, policy.RuntimeState{}, policy.TriggerExplicit, nil)
	if err != nil {
		return err
	}

	switch result.Status {
	case policy.StatusUpToDate:
		fmt.Printf("%s is up to date at %s\n", name, result.Current)
	case policy.StatusUpdateAvailable:
		fmt.Printf("%s has %s available (currently %s, autoupdate %s)\n",
			name, result.Target, result.Current, inst.Info.Autoupdate)
	case policy.StatusApplied:
		fmt.Printf("%s updated to %s\n", name, result.Current)
	default:
		fmt.Printf("%s: %s\n", name, result.Status)
	}
	return nil
}
