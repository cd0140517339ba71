package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"facts/core/catalog"
	"facts/core/store"

	"go.uber.org/zap"
)

// Sentinel errors for registry operations.
var (
	// ErrAlreadyExists indicates an instance with the requested name exists.
	ErrAlreadyExists = errors.New("instance already exists")
	// ErrNotFound indicates no instance with the requested name exists.
	ErrNotFound = errors.New("instance not found")
	// ErrDowngrade indicates an edited specifier resolved to a version
	// older than the instance's current one.
	ErrDowngrade = errors.New("downgrading is not allowed")
)

// nameRe restricts instance names to filesystem-safe tokens.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Applier applies a resolved update to an instance: install the target via
// the store, then swap the instance's reference. Satisfied by the policy
// engine; the registry takes an interface so the dependency points one way.
type Applier interface {
	ForceApply(ctx context.Context, inst *Instance, target catalog.Identifier) error
}

// Staleness classifies an instance's installed version against the feed
// at the time of the last check.
type Staleness string

const (
	StaleUpToDate        Staleness = "up-to-date"
	StaleUpdateAvailable Staleness = "update-available"
	// StaleUnknown means the catalog was unreachable during the check.
	StaleUnknown Staleness = "unknown"
)

// Status is one row of a registry listing.
type Status struct {
	Name       string             `json:"name"`
	Current    catalog.Identifier `json:"current_version"`
	Spec       catalog.Spec       `json:"spec"`
	Autoupdate Autoupdate         `json:"autoupdate"`
	Staleness  Staleness          `json:"staleness"`
}

// Registry owns the authoritative mapping from instance name to instance.
// It drives the catalog and the store per instance and serializes their
// installation-order dependency: a version is always installed before any
// instance record references it.
type Registry struct {
	root    string
	catalog catalog.Client
	store   *store.Store
	logger  *zap.Logger
}

// New creates a registry rooted at the given directory.
func New(root string, cat catalog.Client, st *store.Store, logger *zap.Logger) (*Registry, error) {
	r := &Registry{root: root, catalog: cat, store: st, logger: logger}
	if err := os.MkdirAll(r.instancesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create instance directory: %w", err)
	}
	return r, nil
}

func (r *Registry) instancesDir() string {
	return filepath.Join(r.root, "instances")
}

func (r *Registry) instanceDir(name string) string {
	return filepath.Join(r.instancesDir(), name)
}

// CreateOptions parameterize instance creation.
type CreateOptions struct {
	// Spec is the declared version specifier.
	Spec catalog.Spec
	// Autoupdate is the instance's update policy. Empty means enabled.
	Autoupdate Autoupdate
	// Docs are the configuration documents to copy in.
	Docs CreateDocuments
	// WorldArchive, when set, is an existing world.zip to import instead
	// of generating a fresh world.
	WorldArchive string
}

// Create resolves the spec, installs the resolved version, and records the
// new instance. The record is written last, so a failure anywhere leaves no
// instance behind. The version's store lock stays held from install until
// the record is on disk, so a prune running concurrently cannot reclaim the
// not-yet-referenced tree; after a failed create the lock is released and
// prune reclaims the unreferenced install.
func (r *Registry) Create(ctx context.Context, name string, opts CreateOptions) (*Instance, error) {
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid instance name %q", name)
	}
	if opts.Autoupdate == "" {
		opts.Autoupdate = AutoupdateEnabled
	}
	if !opts.Autoupdate.IsValid() {
		return nil, fmt.Errorf("invalid autoupdate policy %q", opts.Autoupdate)
	}

	dir := r.instanceDir(name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}

	target, err := r.catalog.Resolve(ctx, opts.Spec)
	if err != nil {
		return nil, err
	}
	_, release, err := r.store.EnsureInstalledHeld(ctx, target)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := os.MkdirAll(filepath.Join(dir, "mods"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create instance directory: %w", err)
	}

	inst := &Instance{
		Name: name,
		Dir:  dir,
		Info: Info{
			FormatVersion: infoFormatVersion,
			Spec:          opts.Spec,
			Autoupdate:    opts.Autoupdate,
			Current:       target,
		},
	}

	if err := inst.applyCreateDocuments(opts.Docs); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if opts.WorldArchive != "" {
		if err := inst.copyDocument(opts.WorldArchive, "world.zip"); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}
	if err := inst.Save(); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	r.logger.Info("Instance created",
		zap.String("name", name),
		zap.String("version", target.Key()),
		zap.String("autoupdate", string(opts.Autoupdate)))
	return inst, nil
}

// Get loads an instance by name.
func (r *Registry) Get(name string) (*Instance, error) {
	dir := r.instanceDir(name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return loadInstance(name, dir)
}

// Names lists the registered instance names, sorted.
func (r *Registry) Names() ([]string, error) {
	entries, err := os.ReadDir(r.instancesDir())
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the instance's registry entry and data directory. It
// never touches installed versions; reclaiming those is prune's job.
func (r *Registry) Delete(name string) error {
	dir := r.instanceDir(name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	r.logger.Info("Instance deleted", zap.String("name", name))
	return nil
}

// EditOptions parameterize an instance edit. Nil pointer fields are left
// unchanged.
type EditOptions struct {
	Spec       *catalog.Spec
	Autoupdate *Autoupdate
	Docs       Documents
}

// Edit updates an instance's documents and metadata. A changed specifier
// is re-resolved immediately: if the resolved target differs from the
// current version it is applied through the applier with forced semantics,
// and resolving to an older version fails with ErrDowngrade. A policy-only
// edit mutates metadata without contacting the store.
func (r *Registry) Edit(ctx context.Context, name string, opts EditOptions, applier Applier) (*Instance, error) {
	inst, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	if err := inst.importDocuments(opts.Docs, false); err != nil {
		return nil, err
	}
	if opts.Autoupdate != nil {
		inst.Info.Autoupdate = *opts.Autoupdate
	}

	if opts.Spec != nil {
		target, err := r.catalog.Resolve(ctx, *opts.Spec)
		if err != nil {
			return nil, err
		}
		if target.Less(inst.Info.Current) {
			return nil, fmt.Errorf("%w: current version %s is newer than requested %s",
				ErrDowngrade, inst.Info.Current, *opts.Spec)
		}

		inst.Info.Spec = *opts.Spec
		if target != inst.Info.Current {
			// ForceApply persists the record itself via SetCurrent
			if err := applier.ForceApply(ctx, inst, target); err != nil {
				return nil, err
			}
			return inst, nil
		}
	}

	if err := inst.Save(); err != nil {
		return nil, err
	}
	return inst, nil
}

// List enumerates all instances with their current identifier, policy and
// staleness against the feed. An unreachable catalog degrades staleness to
// unknown instead of failing the listing.
func (r *Registry) List(ctx context.Context) ([]Status, error) {
	names, err := r.Names()
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		inst, err := r.Get(name)
		if err != nil {
			return nil, err
		}

		status := Status{
			Name:       name,
			Current:    inst.Info.Current,
			Spec:       inst.Info.Spec,
			Autoupdate: inst.Info.Autoupdate,
		}

		target, err := r.catalog.Resolve(ctx, inst.Info.Spec)
		switch {
		case errors.Is(err, catalog.ErrUnavailable):
			status.Staleness = StaleUnknown
		case err != nil:
			return nil, err
		case inst.Info.Current.Less(target):
			status.Staleness = StaleUpdateAvailable
		default:
			status.Staleness = StaleUpToDate
		}

		statuses = append(statuses, status)
	}
	return statuses, nil
}

// ReferencedVersions recomputes the set of identifiers referenced by any
// instance. It scans every record fresh instead of maintaining a counter,
// so reference state can never drift; any unreadable record fails the whole
// scan, and prune then keeps everything (fail closed).
func (r *Registry) ReferencedVersions() (map[catalog.Identifier]struct{}, error) {
	names, err := r.Names()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrReferenceCheckFailed, err)
	}

	referenced := make(map[catalog.Identifier]struct{}, len(names))
	for _, name := range names {
		inst, err := r.Get(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrReferenceCheckFailed, err)
		}
		referenced[inst.Info.Current] = struct{}{}
	}
	return referenced, nil
}
