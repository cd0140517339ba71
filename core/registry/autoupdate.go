package registry

import (
	"encoding/json"
	"fmt"
)

// Autoupdate is an instance's declared autoupdate policy. It controls
// whether a resolved newer version is actually applied when a check runs.
type Autoupdate string

const (
	// AutoupdateForced applies updates regardless of running state; a
	// running server is signalled to stop first.
	AutoupdateForced Autoupdate = "forced"
	// AutoupdateEnabled applies updates when no players are connected;
	// otherwise the update is deferred until a later check sees zero
	// players. Players are never forcibly disconnected.
	AutoupdateEnabled Autoupdate = "enabled"
	// AutoupdateStartup applies updates only as part of instance start.
	AutoupdateStartup Autoupdate = "startup"
	// AutoupdateDisabled reports available updates but never applies them.
	AutoupdateDisabled Autoupdate = "disabled"
)

// ParseAutoupdate parses the textual policy form.
func ParseAutoupdate(s string) (Autoupdate, error) {
	p := Autoupdate(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid autoupdate policy %q", s)
	}
	return p, nil
}

// IsValid reports whether the policy is one of the four known modes.
func (p Autoupdate) IsValid() bool {
	switch p {
	case AutoupdateForced, AutoupdateEnabled, AutoupdateStartup, AutoupdateDisabled:
		return true
	default:
		return false
	}
}

// UnmarshalJSON validates the policy while decoding instance records.
func (p *Autoupdate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAutoupdate(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
