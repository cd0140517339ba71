package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

// deleteCmd removes an instance's registry entry and data.
var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a server instance",
	Long: `Delete a server instance: its registry entry, configuration documents
and world data. Installed binary versions are never deleted here; run
"facts prune" to reclaim versions no longer referenced by any instance.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Skip the confirmation prompt")
	RootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}

	if !deleteForce {
		fmt.Printf("Confirm deletion by typing the name of this instance: %s\n", name)
		fmt.Println("THIS WILL PERMANENTLY DESTROY ALL GAME DATA IN THE INSTANCE")

		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) != name {
			fmt.Println("Cancelled")
			return nil
		}
	}

	return a.registry.Delete(name)
}
