package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"facts/core/catalog"
	"facts/core/logger"
	"facts/core/mirror"
	"facts/core/store"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DataConfig holds the on-disk data location.
type DataConfig struct {
	// Dir is the root directory holding the instance registry and the
	// shared version store. A leading ~ expands to the user's home.
	Dir string `mapstructure:"dir" default:"~/.local/share/facts"`
}

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Data holds the data directory settings.
	Data DataConfig `mapstructure:"data"`
	// Catalog holds configuration for the remote version feed.
	Catalog catalog.Config `mapstructure:"catalog"`
	// Mirror holds configuration for the optional S3 archive mirror.
	Mirror mirror.Config `mapstructure:"mirror"`
	// Store holds configuration for the version store.
	Store store.Config `mapstructure:"store"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
}

// DataDir returns the data directory with ~ expanded.
func (c *Config) DataDir() string {
	dir := c.Data.Dir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	// We construct the path to .env
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. FACTS_CATALOG_BASE_URL -> catalog.base_url)
	v.SetEnvPrefix("facts")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
