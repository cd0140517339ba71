package store

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"facts/core/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"
)

var testID = catalog.Identifier{Major: 1, Minor: 1, Patch: 87, Channel: catalog.ChannelStable}

// makeArchive builds an in-memory tar.xz archive from a name-to-content map.
func makeArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	xzw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(xzw)

	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, xzw.Close())
	return buf.Bytes()
}

// archiveEntry describes one member of a hand-built test archive.
type archiveEntry struct {
	name     string
	typeflag byte
	content  string
	linkname string
}

// makeEntryArchive builds a tar.xz archive from explicit entries, used when
// a test needs member types beyond regular files.
func makeEntryArchive(t *testing.T, entries []archiveEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	xzw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(xzw)

	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Mode:     0o755,
			Size:     int64(len(e.content)),
			Linkname: e.linkname,
		}))
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, xzw.Close())
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type fakeFetcher struct {
	archive  []byte
	checksum string
	err      error
	calls    atomic.Int32
}

func (f *fakeFetcher) FetchArchive(ctx context.Context, id catalog.Identifier) (io.ReadCloser, string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, "", f.err
	}
	return io.NopCloser(bytes.NewReader(f.archive)), f.checksum, nil
}

func newTestStore(t *testing.T, fetcher Fetcher) *Store {
	t.Helper()
	s, err := New(t.TempDir(), Config{ExecutablePath: "bin/server"}, fetcher, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestEnsureInstalled(t *testing.T) {
	archive := makeArchive(t, map[string]string{"bin/server": "#!/bin/sh\n"})
	fetcher := &fakeFetcher{archive: archive, checksum: sha256Hex(archive)}
	s := newTestStore(t, fetcher)

	got, err := s.EnsureInstalled(context.Background(), testID)
	require.NoError(t, err)

	assert.Equal(t, testID, got.ID)
	assert.Equal(t, s.versionPath(testID), got.Path)
	assert.FileExists(t, got.Binary)

	// Staging must be empty after a committed install
	entries, err := os.ReadDir(s.stagingDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnsureInstalled_FastPath(t *testing.T) {
	archive := makeArchive(t, map[string]string{"bin/server": "bits"})
	fetcher := &fakeFetcher{archive: archive}
	s := newTestStore(t, fetcher)

	first, err := s.EnsureInstalled(context.Background(), testID)
	require.NoError(t, err)
	second, err := s.EnsureInstalled(context.Background(), testID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fetcher.calls.Load(), "second call must not refetch")
}

func TestEnsureInstalled_Concurrent(t *testing.T) {
	archive := makeArchive(t, map[string]string{"bin/server": "bits"})
	fetcher := &fakeFetcher{archive: archive}
	s := newTestStore(t, fetcher)

	const callers = 4
	results := make([]InstalledVersion, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.EnsureInstalled(context.Background(), testID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), fetcher.calls.Load(), "exactly one caller should install")
}

func TestEnsureInstalled_ChecksumMismatch(t *testing.T) {
	archive := makeArchive(t, map[string]string{"bin/server": "bits"})
	fetcher := &fakeFetcher{archive: archive, checksum: "deadbeef"}
	s := newTestStore(t, fetcher)

	_, err := s.EnsureInstalled(context.Background(), testID)
	assert.ErrorIs(t, err, catalog.ErrArchiveCorrupt)
	assert.NoDirExists(t, s.versionPath(testID))
}

func TestEnsureInstalled_MissingExecutable(t *testing.T) {
	archive := makeArchive(t, map[string]string{"data/readme.txt": "no binary here"})
	fetcher := &fakeFetcher{archive: archive}
	s := newTestStore(t, fetcher)

	_, err := s.EnsureInstalled(context.Background(), testID)
	assert.ErrorIs(t, err, ErrInstallFailed)
	assert.NoDirExists(t, s.versionPath(testID))

	// Failed installs must not leave staging debris behind
	entries, err := os.ReadDir(s.stagingDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnsureInstalled_CorruptArchive(t *testing.T) {
	fetcher := &fakeFetcher{archive: []byte("definitely not xz")}
	s := newTestStore(t, fetcher)

	_, err := s.EnsureInstalled(context.Background(), testID)
	assert.ErrorIs(t, err, ErrInstallFailed)
	assert.NoDirExists(t, s.versionPath(testID))
}

func TestEnsureInstalled_FetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: catalog.ErrDownloadFailed}
	s := newTestStore(t, fetcher)

	_, err := s.EnsureInstalled(context.Background(), testID)
	assert.ErrorIs(t, err, catalog.ErrDownloadFailed)
}

func TestInstalled(t *testing.T) {
	s := newTestStore(t, &fakeFetcher{})

	ids := []catalog.Identifier{
		{Major: 1, Minor: 0, Patch: 0, Channel: catalog.ChannelStable},
		{Major: 1, Minor: 1, Patch: 3, Channel: catalog.ChannelExperimental},
	}
	for _, id := range ids {
		require.NoError(t, os.MkdirAll(s.versionPath(id), 0o755))
	}
	// Entries that are not version keys are skipped
	require.NoError(t, os.MkdirAll(filepath.Join(s.versionsDir(), "lost+found"), 0o755))

	got, err := s.Installed()
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got)
}

func TestExtractArchive_RejectsTraversal(t *testing.T) {
	archive := makeArchive(t, map[string]string{"../escape": "nope"})
	dir := t.TempDir()

	tmp := filepath.Join(dir, "a.tar.xz")
	require.NoError(t, os.WriteFile(tmp, archive, 0o644))

	err := extractArchive(tmp, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape"))
}

func TestExtractArchive_RejectsEscapingSymlink(t *testing.T) {
	cases := []struct {
		name     string
		linkname string
	}{
		{"relative escape", "../../outside"},
		{"absolute target", "/etc/passwd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			archive := makeEntryArchive(t, []archiveEntry{
				{name: "link", typeflag: tar.TypeSymlink, linkname: tc.linkname},
			})
			dir := t.TempDir()
			tmp := filepath.Join(dir, "a.tar.xz")
			require.NoError(t, os.WriteFile(tmp, archive, 0o644))

			err := extractArchive(tmp, filepath.Join(dir, "out"))
			require.Error(t, err)
			assert.NoFileExists(t, filepath.Join(dir, "out", "link"))
		})
	}
}

func TestExtractArchive_AllowsInternalSymlink(t *testing.T) {
	archive := makeEntryArchive(t, []archiveEntry{
		{name: "bin/server", typeflag: tar.TypeReg, content: "bits"},
		{name: "server", typeflag: tar.TypeSymlink, linkname: "bin/server"},
	})
	dir := t.TempDir()
	tmp := filepath.Join(dir, "a.tar.xz")
	require.NoError(t, os.WriteFile(tmp, archive, 0o644))

	out := filepath.Join(dir, "out")
	require.NoError(t, extractArchive(tmp, out))

	link, err := os.Readlink(filepath.Join(out, "server"))
	require.NoError(t, err)
	assert.Equal(t, "bin/server", link)
}

func TestLockIsStale(t *testing.T) {
	dir := t.TempDir()

	t.Run("own pid is live", func(t *testing.T) {
		path := filepath.Join(dir, "live.lock")
		require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))
		// PID 1 always exists
		assert.False(t, lockIsStale(path))
	})

	t.Run("malformed content fails closed", func(t *testing.T) {
		path := filepath.Join(dir, "bad.lock")
		require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
		assert.False(t, lockIsStale(path))
	})

	t.Run("dead pid is stale", func(t *testing.T) {
		path := filepath.Join(dir, "dead.lock")
		// PID_MAX on Linux is far below this, so nothing can own it
		require.NoError(t, os.WriteFile(path, []byte("99999999\n"), 0o644))
		assert.True(t, lockIsStale(path))
	})
}

func TestTryFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.lock")

	lock, ok, err := tryFileLock(path)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = tryFileLock(path)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be reacquired")

	lock.release()
	_, ok, err = tryFileLock(path)
	require.NoError(t, err)
	assert.True(t, ok, "released lock is free again")
}

func TestBreakStaleLock(t *testing.T) {
	dir := t.TempDir()

	t.Run("stale lock removed", func(t *testing.T) {
		path := filepath.Join(dir, "stale.lock")
		require.NoError(t, os.WriteFile(path, []byte("99999999\n"), 0o644))
		breakStaleLock(path)
		assert.NoFileExists(t, path)
	})

	t.Run("live lock kept", func(t *testing.T) {
		path := filepath.Join(dir, "live.lock")
		require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))
		breakStaleLock(path)
		assert.FileExists(t, path)
	})
}

func TestEnsureInstalledHeld_ReleaseIdempotent(t *testing.T) {
	archive := makeArchive(t, map[string]string{"bin/server": "bits"})
	s := newTestStore(t, &fakeFetcher{archive: archive})

	_, release, err := s.EnsureInstalledHeld(context.Background(), testID)
	require.NoError(t, err)
	release()
	release()

	// The lock is free again after the first release
	_, err = s.EnsureInstalled(context.Background(), testID)
	require.NoError(t, err)
}

func TestEnsureInstalled_ExistingBrokenTree(t *testing.T) {
	archive := makeArchive(t, map[string]string{"bin/server": "bits"})
	fetcher := &fakeFetcher{archive: archive}
	s := newTestStore(t, fetcher)

	// A version directory without the executable, e.g. from a different
	// executable layout. It must be reported, not overwritten.
	require.NoError(t, os.MkdirAll(s.versionPath(testID), 0o755))

	_, err := s.EnsureInstalled(context.Background(), testID)
	assert.ErrorIs(t, err, ErrInstallFailed)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}
