package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"facts/core/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installVersion fabricates an installed tree without going through the
// network path.
func installVersion(t *testing.T, s *Store, id catalog.Identifier) {
	t.Helper()
	dir := s.versionPath(id)
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, s.executable)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, s.executable), []byte("bits"), 0o755))
}

func refs(ids ...catalog.Identifier) map[catalog.Identifier]struct{} {
	m := make(map[catalog.Identifier]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestPrune(t *testing.T) {
	s := newTestStore(t, &fakeFetcher{})

	kept := catalog.Identifier{Major: 1, Minor: 1, Patch: 87, Channel: catalog.ChannelStable}
	doomed := catalog.Identifier{Major: 1, Minor: 0, Patch: 0, Channel: catalog.ChannelStable}
	installVersion(t, s, kept)
	installVersion(t, s, doomed)

	report, err := s.Prune(refs(kept))
	require.NoError(t, err)

	assert.Equal(t, []catalog.Identifier{doomed}, report.Removed())
	assert.DirExists(t, s.versionPath(kept))
	assert.NoDirExists(t, s.versionPath(doomed))
}

func TestPrune_AllReferenced(t *testing.T) {
	s := newTestStore(t, &fakeFetcher{})

	a := catalog.Identifier{Major: 1, Minor: 0, Patch: 0, Channel: catalog.ChannelStable}
	b := catalog.Identifier{Major: 2, Minor: 0, Patch: 0, Channel: catalog.ChannelExperimental}
	installVersion(t, s, a)
	installVersion(t, s, b)

	report, err := s.Prune(refs(a, b))
	require.NoError(t, err)

	assert.Empty(t, report.Outcomes)
	assert.DirExists(t, s.versionPath(a))
	assert.DirExists(t, s.versionPath(b))
}

func TestPrune_LockedVersionKept(t *testing.T) {
	s := newTestStore(t, &fakeFetcher{})

	id := catalog.Identifier{Major: 1, Minor: 0, Patch: 0, Channel: catalog.ChannelStable}
	installVersion(t, s, id)

	// Simulate another live process holding the version's install lock
	require.NoError(t, os.WriteFile(s.lockPath(id), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644))

	report, err := s.Prune(refs())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	outcome := report.Outcomes[0]
	assert.False(t, outcome.Removed)
	assert.ErrorIs(t, outcome.Err, ErrReferenceCheckFailed)
	assert.DirExists(t, s.versionPath(id))
}

func TestPrune_HeldInstallSurvivesUntilRelease(t *testing.T) {
	archive := makeArchive(t, map[string]string{"bin/server": "bits"})
	s := newTestStore(t, &fakeFetcher{archive: archive})

	installed, release, err := s.EnsureInstalledHeld(context.Background(), testID)
	require.NoError(t, err)

	// The version is installed but no instance record references it yet.
	// A prune running in this window must keep it so the caller can still
	// commit its reference.
	report, err := s.Prune(refs())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.False(t, report.Outcomes[0].Removed)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrReferenceCheckFailed)
	assert.DirExists(t, installed.Path)

	release()

	// Still unreferenced after release, so now prune reclaims it
	report, err = s.Prune(refs())
	require.NoError(t, err)
	assert.Equal(t, []catalog.Identifier{testID}, report.Removed())
	assert.NoDirExists(t, installed.Path)
}

func TestPrune_EmptyStore(t *testing.T) {
	s := newTestStore(t, &fakeFetcher{})

	report, err := s.Prune(refs())
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
}
