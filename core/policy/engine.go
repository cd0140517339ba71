package policy

import (
	"context"
	"fmt"

	"facts/core/catalog"
	"facts/core/registry"
	"facts/core/store"

	"go.uber.org/zap"
)

// Trigger identifies what drove an update check.
type Trigger string

const (
	// TriggerExplicit is a standalone update invocation.
	TriggerExplicit Trigger = "explicit"
	// TriggerStartup is the implicit check performed as part of instance
	// start.
	TriggerStartup Trigger = "startup"
)

// Status is the outcome classification of one check-and-apply pass.
type Status string

const (
	// StatusUpToDate means the resolved target matches the current version.
	StatusUpToDate Status = "up-to-date"
	// StatusUpdateAvailable means a newer target exists but the policy
	// gate did not allow applying it on this trigger.
	StatusUpdateAvailable Status = "update-available"
	// StatusDeferred means the update was postponed because players are
	// connected; the next check that observes zero players retries it.
	StatusDeferred Status = "deferred"
	// StatusApplied means the instance now references the target version.
	StatusApplied Status = "applied"
	// StatusFailed means installing the target failed; the instance still
	// references its previous version.
	StatusFailed Status = "failed"
)

// RuntimeState is the instance's observed process state at check time.
type RuntimeState struct {
	// Running reports whether the server process is up.
	Running bool
	// PlayersOnline is the number of connected players.
	PlayersOnline int
}

// StopFunc signals a running server process to stop. The surrounding
// instance-control collaborator restarts it after the update.
type StopFunc func(ctx context.Context) error

// Result reports the outcome of a check-and-apply pass.
type Result struct {
	Status Status
	// Current is the instance's version after the pass.
	Current catalog.Identifier
	// Target is the version the specifier resolved to.
	Target catalog.Identifier
	// StopIssued reports whether a running server was signalled to stop.
	StopIssued bool
}

// Engine decides whether and how to apply updates to instances, driven by
// each instance's autoupdate policy. There is no background scheduler:
// checks are synchronous, point-in-time evaluations performed on an
// explicit update invocation or at instance start.
type Engine struct {
	catalog catalog.Client
	store   *store.Store
	logger  *zap.Logger
}

// NewEngine creates an update policy engine.
func NewEngine(cat catalog.Client, st *store.Store, logger *zap.Logger) *Engine {
	return &Engine{catalog: cat, store: st, logger: logger}
}

// CheckAndApply resolves the instance's specifier once and, when a newer
// target exists, runs it through the policy gate. Catalog and store errors
// propagate unchanged. stop may be nil when the instance is not running.
func (e *Engine) CheckAndApply(ctx context.Context, inst *registry.Instance, runtime RuntimeState, trigger Trigger, stop StopFunc) (Result, error) {
	current := inst.Info.Current

	target, err := e.catalog.Resolve(ctx, inst.Info.Spec)
	if err != nil {
		return Result{Status: StatusFailed, Current: current}, err
	}

	result := Result{Current: current, Target: target}

	// The specifier resolving at or below the current version means there
	// is nothing to do; the store is not contacted.
	if !current.Less(target) {
		result.Status = StatusUpToDate
		return result, nil
	}

	switch inst.Info.Autoupdate {
	case registry.AutoupdateDisabled:
		result.Status = StatusUpdateAvailable
		return result, nil

	case registry.AutoupdateStartup:
		if trigger != TriggerStartup {
			result.Status = StatusUpdateAvailable
			return result, nil
		}

	case registry.AutoupdateEnabled:
		if runtime.Running && runtime.PlayersOnline > 0 {
			e.logger.Info("Update deferred, players online",
				zap.String("name", inst.Name),
				zap.Int("players", runtime.PlayersOnline))
			result.Status = StatusDeferred
			return result, nil
		}

	case registry.AutoupdateForced:
		// Applies regardless of who is connected

	default:
		return result, fmt.Errorf("invalid autoupdate policy %q", inst.Info.Autoupdate)
	}

	if runtime.Running {
		if stop != nil {
			if err := stop(ctx); err != nil {
				result.Status = StatusFailed
				return result, fmt.Errorf("failed to stop server for update: %w", err)
			}
		}
		result.StopIssued = true
	}

	if err := e.apply(ctx, inst, target); err != nil {
		result.Status = StatusFailed
		result.Current = inst.Info.Current
		return result, err
	}

	result.Status = StatusApplied
	result.Current = target
	return result, nil
}

// ForceApply installs the target and swaps the instance's reference,
// regardless of policy. It implements registry.Applier for edits that
// change the resolved target.
func (e *Engine) ForceApply(ctx context.Context, inst *registry.Instance, target catalog.Identifier) error {
	return e.apply(ctx, inst, target)
}

// apply is the linearized update step: materialize the target in the
// store, then swap the instance's reference as the last action. A failure
// in the install leaves the instance pointing at its previous, still
// installed version. The target's store lock stays held until the
// reference is written, so a prune running during the swap cannot reclaim
// the not-yet-referenced tree.
func (e *Engine) apply(ctx context.Context, inst *registry.Instance, target catalog.Identifier) error {
	e.logger.Info("Updating instance",
		zap.String("name", inst.Name),
		zap.String("from", inst.Info.Current.Key()),
		zap.String("to", target.Key()))

	_, release, err := e.store.EnsureInstalledHeld(ctx, target)
	if err != nil {
		return err
	}
	defer release()

	if err := inst.SetCurrent(target); err != nil {
		return err
	}

	e.logger.Info("Instance updated",
		zap.String("name", inst.Name),
		zap.String("version", target.Key()))
	return nil
}
