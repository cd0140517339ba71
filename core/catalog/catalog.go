package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for catalog operations.
var (
	// ErrUnavailable indicates the remote feed could not be reached or
	// returned an unusable response.
	ErrUnavailable = errors.New("version catalog unavailable")
	// ErrNoMatchingVersion indicates a specifier matched nothing in the feed.
	ErrNoMatchingVersion = errors.New("no matching version")
	// ErrDownloadFailed indicates an archive download failed.
	ErrDownloadFailed = errors.New("archive download failed")
	// ErrArchiveCorrupt indicates a downloaded archive failed checksum
	// verification. It must never be treated as success.
	ErrArchiveCorrupt = errors.New("archive corrupt")
)

// Release is one downloadable version as advertised by the feed.
type Release struct {
	// Version is the three-segment version number, e.g. "1.1.87".
	Version string `json:"version"`
	// URL is the archive download location.
	URL string `json:"url"`
	// SHA256 is the hex-encoded archive checksum. May be empty if the feed
	// does not provide one.
	SHA256 string `json:"sha256"`
}

// Feed is the wire format of the remote version catalog: the available
// releases keyed by channel.
type Feed struct {
	Stable       []Release `json:"stable"`
	Experimental []Release `json:"experimental"`
}

// Client resolves version specifiers and retrieves release archives.
type Client interface {
	// Resolve turns a specifier into a concrete identifier by querying the
	// remote feed. Resolution is idempotent for a fixed feed snapshot but
	// not stable across calls; callers resolve once per logical operation.
	Resolve(ctx context.Context, spec Spec) (Identifier, error)

	// FetchArchive retrieves the installable archive for a resolved
	// identifier. It returns the archive stream and the expected hex SHA256
	// checksum (empty if the feed provides none).
	FetchArchive(ctx context.Context, id Identifier) (io.ReadCloser, string, error)
}

// HTTPClient is the Client implementation backed by the HTTP(S) feed.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a catalog client from the configuration.
func NewClient(cfg Config) *HTTPClient {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	// Custom transport with strict timeouts so an unreachable feed fails
	// promptly instead of hanging the CLI
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Transport: transport},
	}
}

// fetchFeed performs a fresh feed query. There is deliberately no caching:
// every resolution is an explicit query, eliminating staleness bugs from an
// implicit process-wide snapshot.
func (c *HTTPClient) fetchFeed(ctx context.Context) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var feed Feed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: invalid feed: %v", ErrUnavailable, err)
	}

	return &feed, nil
}

// Resolve implements Client.
func (c *HTTPClient) Resolve(ctx context.Context, spec Spec) (Identifier, error) {
	feed, err := c.fetchFeed(ctx)
	if err != nil {
		return Identifier{}, err
	}
	return resolveAgainst(feed, spec)
}

// resolveAgainst resolves a spec against a fixed feed snapshot.
func resolveAgainst(feed *Feed, spec Spec) (Identifier, error) {
	if spec.Latest {
		releases := feed.Stable
		if spec.Channel == ChannelExperimental {
			releases = feed.Experimental
		}
		best, found, err := maxRelease(releases, spec.Channel, nil)
		if err != nil {
			return Identifier{}, err
		}
		if !found {
			return Identifier{}, fmt.Errorf("%w: channel %s is empty", ErrNoMatchingVersion, spec.Channel)
		}
		return best, nil
	}

	// Prefix requests search stable before experimental so that a version
	// published on both channels is attributed to stable.
	var best Identifier
	var found bool
	for _, channel := range []Channel{ChannelStable, ChannelExperimental} {
		releases := feed.Stable
		if channel == ChannelExperimental {
			releases = feed.Experimental
		}
		candidate, ok, err := maxRelease(releases, channel, spec.Prefix)
		if err != nil {
			return Identifier{}, err
		}
		// Strictly-greater comparison keeps the stable attribution when the
		// same numeric version exists on both channels
		if ok && (!found || numericCompare(best, candidate) < 0) {
			best, found = candidate, true
		}
	}

	if !found {
		return Identifier{}, fmt.Errorf("%w: %s", ErrNoMatchingVersion, spec)
	}
	return best, nil
}

// maxRelease returns the maximum release on a channel, optionally restricted
// to a numeric prefix.
func maxRelease(releases []Release, channel Channel, prefix []int) (Identifier, bool, error) {
	var best Identifier
	var found bool
	for _, r := range releases {
		id, err := ParseVersion(r.Version, channel)
		if err != nil {
			return Identifier{}, false, fmt.Errorf("%w: invalid feed entry: %v", ErrUnavailable, err)
		}
		if prefix != nil && !id.matchesPrefix(prefix) {
			continue
		}
		if !found || numericCompare(best, id) < 0 {
			best, found = id, true
		}
	}
	return best, found, nil
}

// numericCompare compares the numeric triples only, ignoring channels.
func numericCompare(a, b Identifier) int {
	a.Channel = b.Channel
	return a.Compare(b)
}

// FetchArchive implements Client. The release URL is looked up from a fresh
// feed snapshot; the returned stream must be fully read and checksummed by
// the caller before the archive is trusted.
func (c *HTTPClient) FetchArchive(ctx context.Context, id Identifier) (io.ReadCloser, string, error) {
	feed, err := c.fetchFeed(ctx)
	if err != nil {
		return nil, "", err
	}

	releases := feed.Stable
	if id.Channel == ChannelExperimental {
		releases = feed.Experimental
	}

	var release *Release
	for i := range releases {
		if releases[i].Version == id.String() {
			release = &releases[i]
			break
		}
	}
	if release == nil {
		return nil, "", fmt.Errorf("%w: no download for %s", ErrNoMatchingVersion, id.Key())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, release.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("%w: download returned status %d", ErrDownloadFailed, resp.StatusCode)
	}

	return resp.Body, release.SHA256, nil
}
