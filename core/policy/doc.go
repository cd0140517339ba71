// Package policy implements the per-instance update decision engine.
//
// A check runs through a fixed sequence: resolve the instance's declared
// specifier to a concrete target, short-circuit when the current version
// already satisfies it, gate on the instance's autoupdate policy and
// runtime state, and finally apply: install the target in the shared store
// and swap the instance's version reference. The reference swap is the
// single commit point, so an interrupted or failed apply always leaves the
// instance on its previous, still installed version.
//
// # Policy gate
//
//   - disabled: an available update is reported, never applied.
//   - enabled: applied unless players are connected; with players online
//     the check returns deferred and a later check retries. Retries are
//     driven solely by the caller invoking another check; there is no
//     background timer.
//   - forced: applied regardless of running state; a running server is
//     signalled to stop first.
//   - startup: applied only when the check runs as part of instance start.
package policy
