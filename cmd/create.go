package cmd

import (
	"fmt"

	"facts/core/catalog"
	"facts/core/registry"

	"github.com/spf13/cobra"
)

var (
	createVersion        string
	createAutoupdate     string
	createMapGenSettings string
	createMapSettings    string
	createServerSettings string
	createAdminList      string
	createAddAdmins      []string
)

// createCmd creates a new instance, downloading the required binaries and
// generating a fresh world.
var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new server instance",
	Long: `Create a new server instance: resolve the requested version against the
release feed, install it into the shared version store if needed, record
the instance, and generate its world.

Examples:
  # Latest stable, autoupdate when no players are connected
  facts create myserver

  # Pin to the newest 1.1 patch on the experimental channel
  facts create myserver --version 1.1 --autoupdate disabled

  # Custom map generation
  facts create myserver --map-gen-settings map-gen-settings.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createVersion, "version", "stable", "Version specifier (stable, experimental, or a numeric prefix like 1.1)")
	createCmd.Flags().StringVar(&createAutoupdate, "autoupdate", "enabled", "Autoupdate policy (forced, enabled, startup, disabled)")
	createCmd.Flags().StringVar(&createMapGenSettings, "map-gen-settings", "", "Path to map-gen-settings.json")
	createCmd.Flags().StringVar(&createMapSettings, "map-settings", "", "Path to map-settings.json")
	createCmd.Flags().StringVar(&createServerSettings, "server-settings", "", "Path to server-settings.json")
	createCmd.Flags().StringVar(&createAdminList, "server-adminlist", "", "Path to an admin list JSON file")
	createCmd.Flags().StringArrayVar(&createAddAdmins, "add-admin", nil, "Admin name to add (repeatable)")

	RootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := cmd.Context()

	spec, err := catalog.ParseSpec(createVersion)
	if err != nil {
		return err
	}
	autoupdate, err := registry.ParseAutoupdate(createAutoupdate)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	inst, err := a.registry.Create(ctx, name, registry.CreateOptions{
		Spec:       spec,
		Autoupdate: autoupdate,
		Docs: registry.CreateDocuments{
			Documents: registry.Documents{
				ServerSettings: createServerSettings,
				AdminList:      createAdminList,
				AddAdmins:      createAddAdmins,
			},
			MapGenSettings: createMapGenSettings,
			MapSettings:    createMapSettings,
		},
	})
	if err != nil {
		return err
	}

	binary, err := a.binary(ctx, inst)
	if err != nil {
		return err
	}
	if err := a.runner.Generate(ctx, inst, binary); err != nil {
		return err
	}

	fmt.Printf("Created %s at version %s\n", inst.Name, inst.Info.Current)
	return nil
}
