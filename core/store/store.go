package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"facts/core/catalog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sentinel errors for store operations.
var (
	// ErrInstallFailed indicates extraction or verification of a version
	// failed. The final version directory is guaranteed untouched.
	ErrInstallFailed = errors.New("version install failed")
	// ErrReferenceCheckFailed indicates prune could not safely determine
	// whether a version is still in use; the version is kept.
	ErrReferenceCheckFailed = errors.New("version reference check failed")
)

// Fetcher retrieves release archives. Satisfied by catalog.Client directly,
// or by mirror.ArchiveCache when a mirror is configured.
type Fetcher interface {
	// FetchArchive returns the archive stream for an identifier plus the
	// expected hex SHA256 checksum (empty if unknown).
	FetchArchive(ctx context.Context, id catalog.Identifier) (io.ReadCloser, string, error)
}

// InstalledVersion is a fully extracted, verified binary tree in the store,
// shared by every instance that references its identifier.
type InstalledVersion struct {
	// ID is the version identifier the tree was installed under.
	ID catalog.Identifier
	// Path is the version's directory inside the store.
	Path string
	// Binary is the absolute path of the server executable.
	Binary string
}

// Store is the shared on-disk repository of installed binary versions,
// keyed by identifier. It is safe for concurrent use within a process and,
// through lock files, across independent processes sharing the same root.
type Store struct {
	root       string
	executable string
	fetcher    Fetcher
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store rooted at the given directory, creating the directory
// layout if needed.
func New(root string, cfg Config, fetcher Fetcher, logger *zap.Logger) (*Store, error) {
	s := &Store{
		root:       root,
		executable: cfg.ExecutablePath,
		fetcher:    fetcher,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, dir := range []string{s.versionsDir(), s.stagingDir(), s.locksDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return s, nil
}

func (s *Store) versionsDir() string { return filepath.Join(s.root, "versions") }
func (s *Store) stagingDir() string  { return filepath.Join(s.root, "staging") }
func (s *Store) locksDir() string    { return filepath.Join(s.root, "locks") }

// versionPath is the final, identifier-keyed location of an installed tree.
func (s *Store) versionPath(id catalog.Identifier) string {
	return filepath.Join(s.versionsDir(), id.Key())
}

func (s *Store) lockPath(id catalog.Identifier) string {
	return filepath.Join(s.locksDir(), id.Key()+".lock")
}

// idMutex returns the in-process mutex for an identifier. The file lock
// alone would make two goroutines of the same process fight over O_EXCL in
// a busy loop; the mutex serializes them first.
func (s *Store) idMutex(id catalog.Identifier) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[id.Key()]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id.Key()] = m
	}
	return m
}

// EnsureInstalled returns the installed tree for an identifier, downloading
// and extracting it first if necessary.
//
// The slow path never mutates the final location until the staged tree is
// complete and verified: download, checksum, extraction and tree
// verification all happen under a staging directory, and a single rename
// commits the result. A failure at any step removes the staging directory
// and leaves the final path untouched, so no caller ever observes a
// partially written version.
func (s *Store) EnsureInstalled(ctx context.Context, id catalog.Identifier) (InstalledVersion, error) {
	installed, release, err := s.EnsureInstalledHeld(ctx, id)
	if err != nil {
		return InstalledVersion{}, err
	}
	release()
	return installed, nil
}

// EnsureInstalledHeld is EnsureInstalled keeping the identifier's lock held
// across the return. While held, prune treats the version as in use, so a
// caller that still has to record a reference to the freshly installed tree
// cannot lose it to a concurrent prune. The caller must call release once
// the reference is durably written (or the attempt abandoned).
func (s *Store) EnsureInstalledHeld(ctx context.Context, id catalog.Identifier) (InstalledVersion, func(), error) {
	mu := s.idMutex(id)
	mu.Lock()

	lock, err := acquireFileLock(ctx, s.lockPath(id))
	if err != nil {
		mu.Unlock()
		return InstalledVersion{}, nil, fmt.Errorf("%w: could not lock %s: %v", ErrInstallFailed, id.Key(), err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			lock.release()
			mu.Unlock()
		})
	}

	installed, err := s.ensureInstalledLocked(ctx, id)
	if err != nil {
		release()
		return InstalledVersion{}, nil, err
	}
	return installed, release, nil
}

// ensureInstalledLocked does the install work; the caller holds both the
// per-identifier mutex and the lock file.
func (s *Store) ensureInstalledLocked(ctx context.Context, id catalog.Identifier) (InstalledVersion, error) {
	final := s.versionPath(id)

	if _, err := os.Stat(final); err == nil {
		// Fast path: already present and verified, no network call
		if err := s.verifyTree(final); err != nil {
			// The tree exists but does not verify. Leave it alone; it may
			// belong to a different executable layout and the operator must
			// inspect it.
			return InstalledVersion{}, fmt.Errorf("%w: existing tree for %s failed verification: %v", ErrInstallFailed, id.Key(), err)
		}
		return s.installed(id), nil
	}

	s.logger.Info("Installing version", zap.String("version", id.Key()))

	if err := s.install(ctx, id, final); err != nil {
		return InstalledVersion{}, err
	}

	s.logger.Info("Version installed", zap.String("version", id.Key()))
	return s.installed(id), nil
}

// install runs the download-verify-extract-rename sequence.
func (s *Store) install(ctx context.Context, id catalog.Identifier, final string) error {
	archive, err := s.download(ctx, id)
	if err != nil {
		return err
	}
	defer os.Remove(archive)

	staging := filepath.Join(s.stagingDir(), id.Key()+"-"+uuid.NewString())
	if err := extractArchive(archive, staging); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	if err := s.verifyTree(staging); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	// The single commit point. Everything before this is invisible to
	// other processes.
	if err := os.Rename(staging, final); err != nil {
		os.RemoveAll(staging)
		if s.verifyTree(final) == nil {
			// Lost a cross-process race to an installer that committed
			// first; its tree is just as good.
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	return nil
}

// download fetches the archive to a temporary file, verifying the checksum
// when the feed provides one. It returns the temporary file path.
func (s *Store) download(ctx context.Context, id catalog.Identifier) (string, error) {
	stream, expected, err := s.fetcher.FetchArchive(ctx, id)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	tmp, err := os.CreateTemp(s.stagingDir(), id.Key()+"-*.tar.xz")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	hash := sha256.New()
	_, err = io.Copy(tmp, io.TeeReader(stream, hash))
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", catalog.ErrDownloadFailed, errors.Join(err, closeErr))
	}

	if expected != "" {
		actual := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(actual, expected) {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("%w: %s: sha256 %s does not match feed checksum %s",
				catalog.ErrArchiveCorrupt, id.Key(), actual, expected)
		}
	}

	return tmp.Name(), nil
}

// verifyTree checks that an extracted tree contains the expected server
// executable with non-zero size. Returns an os.IsNotExist error when the
// tree (or the executable within it) is absent.
func (s *Store) verifyTree(dir string) error {
	info, err := os.Stat(filepath.Join(dir, s.executable))
	if err != nil {
		return err
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("executable %s is empty or not a file", s.executable)
	}
	return nil
}

func (s *Store) installed(id catalog.Identifier) InstalledVersion {
	path := s.versionPath(id)
	return InstalledVersion{
		ID:     id,
		Path:   path,
		Binary: filepath.Join(path, s.executable),
	}
}

// Installed lists the identifiers currently present in the store.
// Directories that do not parse as version keys are ignored.
func (s *Store) Installed() ([]catalog.Identifier, error) {
	entries, err := os.ReadDir(s.versionsDir())
	if err != nil {
		return nil, err
	}

	var ids []catalog.Identifier
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := catalog.ParseKey(entry.Name())
		if err != nil {
			s.logger.Warn("Ignoring unrecognized store entry", zap.String("name", entry.Name()))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
