package catalog

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Identifier
		wantErr bool
	}{
		{
			name:  "simple version",
			input: "1.1.87",
			want:  Identifier{Major: 1, Minor: 1, Patch: 87, Channel: ChannelStable},
		},
		{
			name:  "zeros",
			input: "0.16.36",
			want:  Identifier{Major: 0, Minor: 16, Patch: 36, Channel: ChannelStable},
		},
		{
			name:    "missing patch",
			input:   "1.1",
			wantErr: true,
		},
		{
			name:    "leading zero",
			input:   "1.01.3",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "latest",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input, ChannelStable)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKey_RoundTrip(t *testing.T) {
	tests := []Identifier{
		{Major: 1, Minor: 1, Patch: 87, Channel: ChannelStable},
		{Major: 0, Minor: 17, Patch: 0, Channel: ChannelExperimental},
	}

	for _, id := range tests {
		parsed, err := ParseKey(id.Key())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}

	_, err := ParseKey("1.1.87")
	assert.Error(t, err, "key without channel suffix must not parse")
	_, err = ParseKey("1.1.87-nightly")
	assert.Error(t, err, "unknown channel must not parse")
}

func TestIdentifier_Ordering(t *testing.T) {
	// Shuffled on purpose; sorting by Compare must yield a consistent
	// total order by (major, minor, patch), channel as tie-break only.
	ids := []Identifier{
		{Major: 1, Minor: 1, Patch: 87, Channel: ChannelStable},
		{Major: 0, Minor: 17, Patch: 79, Channel: ChannelExperimental},
		{Major: 1, Minor: 0, Patch: 0, Channel: ChannelStable},
		{Major: 0, Minor: 17, Patch: 79, Channel: ChannelStable},
		{Major: 2, Minor: 0, Patch: 7, Channel: ChannelExperimental},
		{Major: 0, Minor: 16, Patch: 36, Channel: ChannelStable},
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	want := []Identifier{
		{Major: 0, Minor: 16, Patch: 36, Channel: ChannelStable},
		{Major: 0, Minor: 17, Patch: 79, Channel: ChannelStable},
		{Major: 0, Minor: 17, Patch: 79, Channel: ChannelExperimental},
		{Major: 1, Minor: 0, Patch: 0, Channel: ChannelStable},
		{Major: 1, Minor: 1, Patch: 87, Channel: ChannelStable},
		{Major: 2, Minor: 0, Patch: 7, Channel: ChannelExperimental},
	}
	assert.Equal(t, want, ids)

	// Total order sanity: antisymmetry and equality
	for _, a := range ids {
		for _, b := range ids {
			switch {
			case a == b:
				assert.Zero(t, a.Compare(b))
			case a.Less(b):
				assert.True(t, b.Compare(a) > 0)
			default:
				assert.True(t, b.Compare(a) <= 0)
			}
		}
	}
}
