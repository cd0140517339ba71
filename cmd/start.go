package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"facts/core/catalog"
	"facts/core/policy"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd runs a server instance in the foreground.
var startCmd = &cobra.Command{
	Use:   "start NAME",
	Short: "Start a server instance",
	Long: `Start a server instance in the foreground, relaying its output.

Before launch, an update check runs under the instance's autoupdate
policy (the startup trigger): with the startup, enabled, or forced
policies a newer resolved version is installed and applied first. An
unreachable release feed is logged and the instance starts on its
current version. Interrupt with Ctrl-C to stop the server cleanly.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

func init() {
	RootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	name := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}

	inst, err := a.registry.Get(name)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup-time check: the server is not running yet, so no players can
	// block the update
	result, err := a.engine.CheckAndApply(ctx, inst, policy.RuntimeState{}, policy.TriggerStartup, nil)
	switch {
	case errors.Is(err, catalog.ErrUnavailable):
		a.log.Warn("Could not check for updates", zap.Error(err))
	case err != nil:
		return err
	case result.Status == policy.StatusUpdateAvailable:
		a.log.Info("Update available but not applied by policy",
			zap.String("target", result.Target.Key()),
			zap.String("autoupdate", string(inst.Info.Autoupdate)))
	}

	binary, err := a.binary(ctx, inst)
	if err != nil {
		return err
	}

	return a.runner.Run(ctx, inst, binary)
}
