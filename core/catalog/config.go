package catalog

// Config holds configuration for the version catalog client.
type Config struct {
	// BaseURL is the endpoint returning the channel-keyed release feed.
	BaseURL string `mapstructure:"base_url" default:"https://releases.factorio.com/api/headless"`
	// TimeoutSeconds is the HTTP timeout for feed and download requests.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
