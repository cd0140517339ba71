package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// showCmd prints one instance's configuration.
var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Display an instance's configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	RootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	inst, err := a.registry.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("name:       %s\n", inst.Name)
	fmt.Printf("path:       %s\n", inst.Dir)
	fmt.Printf("spec:       %s\n", inst.Info.Spec)
	fmt.Printf("current:    %s (%s)\n", inst.Info.Current, inst.Info.Current.Channel)
	fmt.Printf("autoupdate: %s\n", inst.Info.Autoupdate)
	return nil
}
