package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"facts/core/registry"

	"go.uber.org/zap"
)

// Runner launches and stops the actual server process for an instance.
// It deliberately does nothing beyond launch, output relay and stop; no
// supervision, restarts or in-game state handling.
type Runner struct {
	logger *zap.Logger
}

// New creates a runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Generate creates the instance's world save using its map settings.
func (r *Runner) Generate(ctx context.Context, inst *registry.Instance, binary string) error {
	r.logger.Info("Generating world", zap.String("name", inst.Name))

	args := []string{"--config", "config.ini", "--create", "world"}
	if fileExists(filepath.Join(inst.Dir, "map-gen-settings.json")) {
		args = append(args, "--map-gen-settings", "map-gen-settings.json")
	}
	if fileExists(filepath.Join(inst.Dir, "map-settings.json")) {
		args = append(args, "--map-settings", "map-settings.json")
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = inst.Dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("world generation failed: %w\n%s", err, output)
	}

	r.logger.Info("World generated", zap.String("name", inst.Name))
	return nil
}

// Run starts the server process and relays its output until the process
// exits or the context is cancelled. Cancellation sends SIGINT so the
// server saves and shuts down cleanly; SIGKILL follows only after a grace
// period.
func (r *Runner) Run(ctx context.Context, inst *registry.Instance, binary string) error {
	r.logger.Info("Starting server",
		zap.String("name", inst.Name),
		zap.String("version", inst.Info.Current.Key()))

	args := []string{
		"--config", "config.ini",
		"--start-server", "world.zip",
		"--server-adminlist", "server-adminlist.json",
	}
	if fileExists(filepath.Join(inst.Dir, "server-settings.json")) {
		args = append(args, "--server-settings", "server-settings.json")
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = inst.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	}
	cmd.WaitDelay = 30 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// Shutdown requested; the non-zero exit is expected
			r.logger.Info("Server stopped", zap.String("name", inst.Name))
			return nil
		}
		return fmt.Errorf("server exited with error: %w", err)
	}

	r.logger.Info("Server stopped", zap.String("name", inst.Name))
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
