package store

// Config holds configuration for the version store.
type Config struct {
	// ExecutablePath is the server binary's path relative to an extracted
	// version tree, used to verify an install is complete.
	ExecutablePath string `mapstructure:"executable_path" default:"factorio/bin/x64/factorio"`
}
