package history

import (
	"fmt"

	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

type optimisticState struct {
	view   *resources.View
	parent int
}

// OptimisticLinear is a tree-shaped history: each write branches from the
// base revision its writer last observed, rather than always from the
// latest state. Concurrent writers racing from the same base each get
// their own child; there is no merge, only a committed/optimistic
// distinction a real implementation would use to decide which branch
// eventually wins.
type OptimisticLinear struct {
	states    []optimisticState
	committed int
}

// NewOptimisticLinear returns a fresh OptimisticLinear history at
// DefaultRevision.
func NewOptimisticLinear(clock store.Clock) *OptimisticLinear {
	return &OptimisticLinear{
		states: []optimisticState{{view: newInitialView(clock), parent: 0}},
	}
}

func (h *OptimisticLinear) MaxRevision() corev1.Revision {
	return h.states[len(h.states)-1].view.Revision
}

func (h *OptimisticLinear) StateAt(rev corev1.Revision) (*resources.View, bool) {
	cs := rev.Components()
	if len(cs) != 1 || cs[0] >= uint64(len(h.states)) {
		return nil, false
	}
	return h.states[cs[0]].view, true
}

func (h *OptimisticLinear) Add(base corev1.Revision, mutate Mutator) (corev1.Revision, bool, error) {
	idx, err := sessionIndex(&base)
	if err != nil || idx < 0 || idx >= len(h.states) {
		return corev1.Revision{}, false, fmt.Errorf("history: base revision %s not found", base)
	}
	newRev := h.MaxRevision().Increment()
	newView := h.states[idx].view.Clone(newRev)
	if err := mutate(newView); err != nil {
		return h.MaxRevision(), false, err
	}
	h.states = append(h.states, optimisticState{view: newView, parent: idx})
	return newRev, true, nil
}

// ValidRevisions walks the parent chain back from the latest (optimistic)
// state, collecting every revision down to the reader's session or the
// last committed index — whichever is reached first.
func (h *OptimisticLinear) ValidRevisions(session *corev1.Revision) []corev1.Revision {
	if session == nil {
		return []corev1.Revision{h.MaxRevision()}
	}
	idx, err := sessionIndex(session)
	if err != nil {
		return []corev1.Revision{h.MaxRevision()}
	}
	var out []corev1.Revision
	sindex := len(h.states) - 1
	for {
		if sindex <= idx || sindex < h.committed {
			break
		}
		st := h.states[sindex]
		out = append(out, st.view.Revision)
		sindex = st.parent
	}
	return out
}
