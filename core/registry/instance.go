package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"facts/core/catalog"
)

// infoFormatVersion is the instance record format version.
const infoFormatVersion = 1

// infoFileName is the per-instance record file.
const infoFileName = "instance.json"

// Info is the persisted state of one instance: its declared specifier and
// policy, plus the pin to its currently installed version.
type Info struct {
	FormatVersion int `json:"format_version"`
	// Spec is the declared, possibly ambiguous version specifier. It is
	// re-resolved on every check; only Current is a concrete pin.
	Spec catalog.Spec `json:"spec"`
	// Autoupdate is the instance's update policy.
	Autoupdate Autoupdate `json:"autoupdate"`
	// Current identifies the installed version the instance runs.
	Current catalog.Identifier `json:"current_version"`
}

// Instance is one configured, independently versioned server deployment.
type Instance struct {
	// Name is the registry key.
	Name string
	// Dir is the instance's directory holding its record and documents.
	Dir string
	// Info is the persisted state.
	Info Info
}

// infoPath returns the record file location.
func (i *Instance) infoPath() string {
	return filepath.Join(i.Dir, infoFileName)
}

// WorldPath returns the save-game archive location.
func (i *Instance) WorldPath() string {
	return filepath.Join(i.Dir, "world.zip")
}

// Save persists the instance record. The write goes through a temporary
// file and a rename, so an interrupted process never leaves a truncated
// record behind.
func (i *Instance) Save() error {
	data, err := json.MarshalIndent(i.Info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode instance record: %w", err)
	}

	tmp := i.infoPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write instance record: %w", err)
	}
	if err := os.Rename(tmp, i.infoPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write instance record: %w", err)
	}
	return nil
}

// SetCurrent swaps the instance's installed-version reference and persists
// it. This is the single instance-visible commit point of an update: it
// runs only after the target version is fully installed, so a failure
// anywhere earlier leaves the instance pointing at its previous, still
// valid version.
func (i *Instance) SetCurrent(id catalog.Identifier) error {
	previous := i.Info.Current
	i.Info.Current = id
	if err := i.Save(); err != nil {
		i.Info.Current = previous
		return err
	}
	return nil
}

// loadInstance reads an instance record from its directory.
func loadInstance(name, dir string) (*Instance, error) {
	inst := &Instance{Name: name, Dir: dir}

	data, err := os.ReadFile(inst.infoPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read record for %s: %w", name, err)
	}
	if err := json.Unmarshal(data, &inst.Info); err != nil {
		return nil, fmt.Errorf("invalid record for %s: %w", name, err)
	}
	if inst.Info.FormatVersion != infoFormatVersion {
		return nil, fmt.Errorf("unsupported record version %d for %s", inst.Info.FormatVersion, name)
	}

	return inst, nil
}
