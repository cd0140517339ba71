package cmd

import (
	"context"
	"fmt"

	"facts/core/catalog"
	"facts/core/config"
	"facts/core/logger"
	"facts/core/mirror"
	"facts/core/policy"
	"facts/core/registry"
	"facts/core/runner"
	"facts/core/store"

	"go.uber.org/zap"
)

// app bundles the wired-up components every command needs.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	catalog  catalog.Client
	store    *store.Store
	registry *registry.Registry
	engine   *policy.Engine
	runner   *runner.Runner
}

// newApp loads configuration and wires the component graph: catalog,
// optional mirror, store, registry, policy engine and runner.
func newApp() (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cat := catalog.NewClient(cfg.Catalog)

	// Archives come straight from the catalog unless a mirror is
	// configured in between
	var fetcher store.Fetcher = cat
	if cfg.Mirror.Enabled {
		client, err := mirror.NewClient(cfg.Mirror)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mirror: %w", err)
		}
		fetcher = mirror.NewArchiveCache(context.Background(), client, cfg.Mirror.Bucket, cat, l)
	}

	st, err := store.New(cfg.DataDir(), cfg.Store, fetcher, l)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(cfg.DataDir(), cat, st, l)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      l,
		catalog:  cat,
		store:    st,
		registry: reg,
		engine:   policy.NewEngine(cat, st, l),
		runner:   runner.New(l),
	}, nil
}

// binary returns the server executable path for an instance's current
// version, re-materializing it in the store if the tree is missing (for
// example on a data directory restored from backup).
func (a *app) binary(ctx context.Context, inst *registry.Instance) (string, error) {
	installed, err := a.store.EnsureInstalled(ctx, inst.Info.Current)
	if err != nil {
		return "", err
	}
	return installed.Binary, nil
}
