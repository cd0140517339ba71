package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Documents are the per-instance configuration files accepted on both
// create and edit. The files are opaque to the registry: they are copied
// into the instance directory, not interpreted. Only the admin list is
// structured input (a JSON array of names merged with the AddAdmins flags).
type Documents struct {
	// ServerSettings is a path to a server-settings.json to copy in.
	ServerSettings string
	// AdminList is a path to an admin list file to merge.
	AdminList string
	// AddAdmins are admin names to add alongside the file.
	AddAdmins []string
}

// CreateDocuments extends Documents with the files only meaningful at
// world-creation time.
type CreateDocuments struct {
	Documents
	// MapGenSettings is a path to a map-gen-settings.json to copy in.
	MapGenSettings string
	// MapSettings is a path to a map-settings.json to copy in.
	MapSettings string
}

// writeConfigIni pins the server's write directory to the instance
// directory so every instance keeps its own saves and logs.
func (i *Instance) writeConfigIni() error {
	content := fmt.Sprintf("[path]\nread-data=__PATH__executable__/../../data\nwrite-data=%s\n", i.Dir)
	return os.WriteFile(filepath.Join(i.Dir, "config.ini"), []byte(content), 0o644)
}

// copyDocument copies an external file into the instance directory under a
// fixed name.
func (i *Instance) copyDocument(src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(i.Dir, name))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	_, err = io.Copy(out, in)
	closeErr := out.Close()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return closeErr
}

// importDocuments applies the shared create/edit documents.
func (i *Instance) importDocuments(docs Documents, force bool) error {
	if docs.ServerSettings != "" {
		if err := i.copyDocument(docs.ServerSettings, "server-settings.json"); err != nil {
			return err
		}
	}

	// The admin list is rewritten at create time and whenever admin input
	// is given; a plain edit leaves the existing list alone.
	if force || docs.AdminList != "" || len(docs.AddAdmins) > 0 {
		if err := i.writeAdminList(docs); err != nil {
			return err
		}
	}
	return nil
}

// writeAdminList merges the admin list file with the flag-provided names
// and writes server-adminlist.json.
func (i *Instance) writeAdminList(docs Documents) error {
	admins := append([]string{}, docs.AddAdmins...)

	if docs.AdminList != "" {
		data, err := os.ReadFile(docs.AdminList)
		if err != nil {
			return fmt.Errorf("failed to read admin list: %w", err)
		}
		var fromFile []string
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return fmt.Errorf("invalid admin list: %w", err)
		}
		admins = append(admins, fromFile...)
	}

	data, err := json.Marshal(admins)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(i.Dir, "server-adminlist.json"), data, 0o644)
}

// applyCreateDocuments writes everything a fresh instance needs.
func (i *Instance) applyCreateDocuments(docs CreateDocuments) error {
	if err := i.writeConfigIni(); err != nil {
		return err
	}
	if docs.MapGenSettings != "" {
		if err := i.copyDocument(docs.MapGenSettings, "map-gen-settings.json"); err != nil {
			return err
		}
	}
	if docs.MapSettings != "" {
		if err := i.copyDocument(docs.MapSettings, "map-settings.json"); err != nil {
			return err
		}
	}
	return i.importDocuments(docs.Documents, true)
}
