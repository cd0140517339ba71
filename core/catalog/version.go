package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Channel is a release track for the managed server binary.
type Channel string

const (
	// ChannelStable is the default release track.
	ChannelStable Channel = "stable"
	// ChannelExperimental is the pre-release track.
	ChannelExperimental Channel = "experimental"
)

// IsValid reports whether the channel is one of the known tracks.
func (c Channel) IsValid() bool {
	return c == ChannelStable || c == ChannelExperimental
}

// Identifier is a fully resolved, immutable version value: a semver-like
// numeric triple plus the channel it was released on.
//
// Identifiers are totally ordered: the numeric triple compares first, and
// the channel (stable before experimental) breaks ties only. Channels are
// never cross-compared when resolving "latest"; that always means the
// maximum numeric version within one channel.
type Identifier struct {
	Major   int     `json:"major"`
	Minor   int     `json:"minor"`
	Patch   int     `json:"patch"`
	Channel Channel `json:"channel"`
}

// versionRe matches a strict three-segment numeric version.
var versionRe = regexp.MustCompile(`^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)$`)

// ParseVersion parses a three-segment numeric version string into an
// identifier on the given channel.
func ParseVersion(s string, channel Channel) (Identifier, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Identifier{}, fmt.Errorf("invalid version number %q", s)
	}

	// The regexp guarantees the segments are plain decimal integers
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	return Identifier{Major: major, Minor: minor, Patch: patch, Channel: channel}, nil
}

// ParseKey parses a store directory key of the form "1.1.87-stable" back
// into an identifier. It is the inverse of Key.
func ParseKey(s string) (Identifier, error) {
	version, channel, ok := strings.Cut(s, "-")
	if !ok || !Channel(channel).IsValid() {
		return Identifier{}, fmt.Errorf("invalid version key %q", s)
	}
	return ParseVersion(version, Channel(channel))
}

// String returns the display form, e.g. "1.1.87".
func (id Identifier) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Major, id.Minor, id.Patch)
}

// Key returns the channel-qualified form used as an on-disk directory name,
// e.g. "1.1.87-stable".
func (id Identifier) Key() string {
	return fmt.Sprintf("%s-%s", id.String(), id.Channel)
}

// Compare returns -1, 0, or 1 ordering identifiers by (major, minor, patch)
// with the channel as a final tie-break (stable sorts before experimental).
func (id Identifier) Compare(other Identifier) int {
	if c := compareInts(id.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInts(id.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInts(id.Patch, other.Patch); c != 0 {
		return c
	}
	return compareInts(channelRank(id.Channel), channelRank(other.Channel))
}

// Less reports whether id orders strictly before other.
func (id Identifier) Less(other Identifier) bool {
	return id.Compare(other) < 0
}

// matchesPrefix reports whether the numeric triple matches the given
// 1-3 segment prefix.
func (id Identifier) matchesPrefix(prefix []int) bool {
	parts := [3]int{id.Major, id.Minor, id.Patch}
	for i, p := range prefix {
		if parts[i] != p {
			return false
		}
	}
	return true
}

func channelRank(c Channel) int {
	if c == ChannelExperimental {
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
