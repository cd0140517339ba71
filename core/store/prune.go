package store

import (
	"fmt"
	"os"

	"facts/core/catalog"

	"go.uber.org/zap"
)

// PruneOutcome is the per-identifier result of a prune run.
type PruneOutcome struct {
	// ID is the version the outcome concerns.
	ID catalog.Identifier `json:"id"`
	// Removed indicates the version directory was deleted.
	Removed bool `json:"removed"`
	// Err carries the reason a candidate was kept, nil when Removed.
	Err error `json:"-"`
}

// PruneReport collects the outcomes of one prune run. A failure on one
// identifier never blocks pruning of the others.
type PruneReport struct {
	Outcomes []PruneOutcome
}

// Removed returns the identifiers that were actually deleted.
func (r PruneReport) Removed() []catalog.Identifier {
	var ids []catalog.Identifier
	for _, o := range r.Outcomes {
		if o.Removed {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Prune removes every installed version not present in the referenced set.
//
// The referenced set must be recomputed from the instance registry
// immediately before the call; it is never a stored counter, so deleting an
// instance through any path keeps prune correct. A version whose lock is
// currently held (an install may be extracting into it from another
// process) is kept and reported, never deleted mid-flight. Installs for
// identifiers not under consideration proceed concurrently.
func (s *Store) Prune(referenced map[catalog.Identifier]struct{}) (PruneReport, error) {
	installed, err := s.Installed()
	if err != nil {
		return PruneReport{}, fmt.Errorf("%w: %v", ErrReferenceCheckFailed, err)
	}

	var report PruneReport
	for _, id := range installed {
		if _, ok := referenced[id]; ok {
			continue
		}
		report.Outcomes = append(report.Outcomes, s.pruneOne(id))
	}
	return report, nil
}

// pruneOne removes a single unreferenced version under its identifier lock.
func (s *Store) pruneOne(id catalog.Identifier) PruneOutcome {
	mu := s.idMutex(id)
	if !mu.TryLock() {
		return PruneOutcome{ID: id, Err: fmt.Errorf("%w: install in progress", ErrReferenceCheckFailed)}
	}
	defer mu.Unlock()

	lock, ok, err := tryFileLock(s.lockPath(id))
	if err != nil {
		return PruneOutcome{ID: id, Err: fmt.Errorf("%w: %v", ErrReferenceCheckFailed, err)}
	}
	if !ok {
		// Another process holds the version; fail closed and keep it
		return PruneOutcome{ID: id, Err: fmt.Errorf("%w: locked by another process", ErrReferenceCheckFailed)}
	}
	defer lock.release()

	if err := s.remove(id); err != nil {
		return PruneOutcome{ID: id, Err: err}
	}

	s.logger.Info("Pruned version", zap.String("version", id.Key()))
	return PruneOutcome{ID: id, Removed: true}
}

// remove deletes a version's directory tree.
func (s *Store) remove(id catalog.Identifier) error {
	if err := os.RemoveAll(s.versionPath(id)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", id.Key(), err)
	}
	return nil
}
