// Package config provides configuration management for facts.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file (godotenv).
//
// # Configuration Structure
//
// The Config struct is the central repository for all settings, divided
// into subsections:
//   - Data: root data directory (instances and version store)
//   - Catalog: remote release feed endpoint and timeout
//   - Mirror: optional S3-compatible archive mirror
//   - Store: version store layout (server executable path)
//   - Log: logging level and format
//
// Environment variables map through the FACTS_ prefix, e.g.
// FACTS_CATALOG_BASE_URL or FACTS_MIRROR_ENABLED.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.DataDir())
package config
