package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listExtended bool

// listCmd enumerates all instances.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all server instances",
	Long: `List all server instances. With --extended, each instance's installed
version, declared specifier, autoupdate policy, and staleness against the
release feed are shown; "unknown" staleness means the feed was
unreachable.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listExtended, "extended", "e", false, "Show versions, policies and staleness")
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if !listExtended {
		names, err := a.registry.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	statuses, err := a.registry.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, s := range statuses {
		fmt.Printf("%-20s %-10s [%s]  %-8s %s\n",
			s.Name, s.Current, s.Spec, s.Autoupdate, s.Staleness)
	}
	return nil
}
