package cmd

import (
	"fmt"
	"io"
	"os"

	"facts/core/catalog"
	"facts/core/registry"

	"github.com/spf13/cobra"
)

var (
	importVersion        string
	importAutoupdate     string
	importServerSettings string
	importAdminList      string
	importAddAdmins      []string

	exportForce bool
)

// importCmd creates an instance around an existing world archive.
var importCmd = &cobra.Command{
	Use:   "import NAME WORLD",
	Short: "Import an existing world archive as a new instance",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

// exportCmd copies an instance's world archive out of the data directory.
var exportCmd = &cobra.Command{
	Use:   "export NAME PATH",
	Short: "Export an instance's world archive to a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func init() {
	importCmd.Flags().StringVar(&importVersion, "version", "stable", "Version specifier (stable, experimental, or a numeric prefix like 1.1)")
	importCmd.Flags().StringVar(&importAutoupdate, "autoupdate", "enabled", "Autoupdate policy (forced, enabled, startup, disabled)")
	importCmd.Flags().StringVar(&importServerSettings, "server-settings", "", "Path to server-settings.json")
	importCmd.Flags().StringVar(&importAdminList, "server-adminlist", "", "Path to an admin list JSON file")
	importCmd.Flags().StringArrayVar(&importAddAdmins, "add-admin", nil, "Admin name to add (repeatable)")

	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Allow overwriting the target file")

	RootCmd.AddCommand(importCmd)
	RootCmd.AddCommand(exportCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	name, world := args[0], args[1]
	ctx := cmd.Context()

	spec, err := catalog.ParseSpec(importVersion)
	if err != nil {
		return err
	}
	autoupdate, err := registry.ParseAutoupdate(importAutoupdate)
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
				ServerSettings: importServerSettings,
				AdminList:      importAdminList,
				AddAdmins:      importAddAdmins,
			},
		},
		WorldArchive: world,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Imported %s at version %s\n", inst.Name, inst.Info.Current)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	a, err := newApp()
	if err != nil {
		return err
	}

	inst, err := a.registry.Get(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !exportForce {
		return fmt.Errorf("output file %s already exists (use --force to overwrite)", path)
	}

	in, err := os.Open(inst.WorldPath())
	if err != nil {
		return fmt.Errorf("failed to read world archive: %w", err)
	}
	defer in.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
