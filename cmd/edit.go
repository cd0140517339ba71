package cmd

import (
	"fmt"

	"facts/core/catalog"
	"facts/core/registry"

	"github.com/spf13/cobra"
)

var (
	editVersion        string
	editAutoupdate     string
	editServerSettings string
	editAdminList      string
	editAddAdmins      []string
)

// editCmd updates an instance's configuration documents and metadata.
var editCmd = &cobra.Command{
	Use:   "edit NAME",
	Short: "Edit an instance's configuration",
	Long: `Edit an instance's configuration documents, autoupdate policy, or
version specifier.

Changing the specifier re-resolves it immediately: if the resolved target
differs from the instance's current version, the update is applied right
away. Resolving to an older version than the current one is refused.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editVersion, "version", "", "New version specifier")
	editCmd.Flags().StringVar(&editAutoupdate, "autoupdate", "", "New autoupdate policy (forced, enabled, startup, disabled)")
	editCmd.Flags().StringVar(&editServerSettings, "server-settings", "", "Path to server-settings.json")
	editCmd.Flags().StringVar(&editAdminList, "server-adminlist", "", "Path to an admin list JSON file")
	editCmd.Flags().StringArrayVar(&editAddAdmins, "add-admin", nil, "Admin name to add (repeatable)")

	RootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := cmd.Context()

	opts := registry.EditOptions{
		Docs: registry.Documents{
			ServerSettings: editServerSettings,
			AdminList:      editAdminList,
			AddAdmins:      editAddAdmins,
		},
	}

	if editVersion != "" {
		spec, err := catalog.ParseSpec(editVersion)
		if err != nil {
			return err
		}
		opts.Spec = &spec
	}
	if editAutoupdate != "" {
		autoupdate, err := registry.ParseAutoupdate(editAutoupdate)
		if err != nil {
			return err
		}
		opts.Autoupdate = &autoupdate
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	inst, err := a.registry.Edit(ctx, name, opts, a.engine)
	if err != nil {
		return err
	}

	fmt.Printf("Edited %s (version %s, autoupdate %s)\n",
		inst.Name, inst.Info.Current, inst.Info.Autoupdate)
	return nil
}
