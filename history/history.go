// Package history implements the five pluggable consistency models behind
// one History interface: Linearizable, MonotonicSession, ResettableSession,
// OptimisticLinear, and Causal. Every variant commits writes in program
// order; they differ only in which revisions a given reader may observe.
package history

import (
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

// Mutator is applied to a clone of the view a controller read from,
// already tagged with the prospective new revision. Returning a non-nil
// error (typically one of store's sentinel kinds) rejects the change: no
// new state is committed, and the caller should treat its action as a
// no-op to retry on its next tick.
type Mutator func(v *resources.View) error

// History mediates every read and write against the resource graph.
type History interface {
	// Add applies mutate against the view rooted at base, producing a new
	// revision. ok is false when mutate rejected the change; err is
	// non-nil either because mutate returned one (ok is then also false)
	// or because base does not name a revision this history knows about.
	// The linear variants ignore base and always extend the latest state.
	Add(base corev1.Revision, mutate Mutator) (rev corev1.Revision, ok bool, err error)

	// MaxRevision is the most recently committed revision.
	MaxRevision() corev1.Revision

	// StateAt returns the view committed at rev, if any.
	StateAt(rev corev1.Revision) (*resources.View, bool)

	// ValidRevisions returns the revisions a reader whose last-observed
	// revision is session may read next. A nil session means "first read"
	// and always returns at least [MaxRevision()].
	ValidRevisions(session *corev1.Revision) []corev1.Revision
}

// newInitialView returns the empty View every history variant seeds
// itself with, at DefaultRevision.
func newInitialView(clock store.Clock) *resources.View {
	return resources.NewView(corev1.DefaultRevision(), clock)
}
