package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Spec is a user-facing, possibly ambiguous version request: either the
// latest release on a channel, or a numeric prefix of 1-3 segments
// ("1", "1.1", "1.1.87"). A spec is resolved against the remote feed once
// per logical operation; the concrete Identifier is used from then on.
// Specs are never stored in resolved form, since the feed is externally
// mutable between invocations.
type Spec struct {
	// Latest marks a channel-latest request. When set, Channel selects the
	// release track and Prefix is empty.
	Latest  bool
	Channel Channel
	// Prefix holds 1-3 numeric segments for a specific-version request.
	Prefix []int
}

// ParseSpec parses a user-supplied version specifier. Accepted forms are
// "stable"/"s", "experimental"/"e", and dotted numeric prefixes such as
// "1", "1.1" or "1.1.87".
func ParseSpec(input string) (Spec, error) {
	switch input {
	case "s", "stable":
		return Spec{Latest: true, Channel: ChannelStable}, nil
	case "e", "experimental":
		return Spec{Latest: true, Channel: ChannelExperimental}, nil
	}

	segments := strings.Split(input, ".")
	if len(segments) > 3 {
		return Spec{}, fmt.Errorf("invalid version %q", input)
	}
	prefix := make([]int, 0, len(segments))
	for _, seg := range segments {
		if seg != "0" && (seg == "" || strings.HasPrefix(seg, "0")) {
			return Spec{}, fmt.Errorf("invalid version %q", input)
		}
		n, err := strconv.Atoi(seg)
		if err != nil || n < 0 {
			return Spec{}, fmt.Errorf("invalid version %q", input)
		}
		prefix = append(prefix, n)
	}

	return Spec{Prefix: prefix}, nil
}

// String returns the parseable textual form of the spec.
func (s Spec) String() string {
	if s.Latest {
		return string(s.Channel)
	}
	parts := make([]string, len(s.Prefix))
	for i, p := range s.Prefix {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

// Exact reports whether the spec pins a full three-segment version.
func (s Spec) Exact() bool {
	return !s.Latest && len(s.Prefix) == 3
}

// MarshalJSON encodes the spec as its textual form.
func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the textual form produced by MarshalJSON.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSpec(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
