package history

import (
	"fmt"

	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

type causalState struct {
	view         *resources.View
	predecessors []int
	successors   []int
}

// Causal is a DAG-shaped history: a write's base revision may name several
// components (a prior join), each becoming a predecessor edge. Reads can
// observe any state outside a session's causal past, or a merge of two
// such states.
type Causal struct {
	states []causalState
}

// NewCausal returns a fresh Causal history at DefaultRevision.
func NewCausal(clock store.Clock) *Causal {
	return &Causal{
		states: []causalState{{view: newInitialView(clock)}},
	}
}

func (h *Causal) indicesForRevision(rev corev1.Revision) ([]int, error) {
	cs := rev.Components()
	out := make([]int, len(cs))
	for i, c := range cs {
		if c >= uint64(len(h.states)) {
			return nil, fmt.Errorf("history: revision component %d not found", c)
		}
		out[i] = int(c)
	}
	return out, nil
}

func (h *Causal) buildView(indices []int) *resources.View {
	acc := h.states[indices[0]].view
	for _, i := range indices[1:] {
		acc = acc.Merge(h.states[i].view)
	}
	return acc
}

func (h *Causal) MaxRevision() corev1.Revision {
	return h.states[len(h.states)-1].view.Revision
}

func (h *Causal) StateAt(rev corev1.Revision) (*resources.View, bool) {
	idxs, err := h.indicesForRevision(rev)
	if err != nil {
		return nil, false
	}
	return h.buildView(idxs), true
}

func (h *Causal) Add(base corev1.Revision, mutate Mutator) (corev1.Revision, bool, error) {
	idxs, err := h.indicesForRevision(base)
	if err != nil {
		return corev1.Revision{}, false, err
	}
	baseView := h.buildView(idxs)
	newRev := h.MaxRevision().Increment()
	newView := baseView.Clone(newRev)
	if err := mutate(newView); err != nil {
		return h.MaxRevision(), false, err
	}
	newIndex := len(h.states)
	for _, i := range idxs {
		h.states[i].successors = append(h.states[i].successors, newIndex)
	}
	h.states = append(h.states, causalState{view: newView, predecessors: idxs})
	return newRev, true, nil
}

// ValidRevisions returns every state that is neither session itself nor
// one of its ancestors, plus pairwise merges of those states (bounded to
// 2-way combinations) — giving a causally-consistent reader both
// individual branch points and their joins to choose from.
func (h *Causal) ValidRevisions(session *corev1.Revision) []corev1.Revision {
	if session == nil {
		return []corev1.Revision{h.MaxRevision()}
	}
	seen := make(map[int]bool)
	stack, err := h.indicesForRevision(*session)
	if err != nil {
		return []corev1.Revision{h.MaxRevision()}
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[idx] {
			continue
		}
		seen[idx] = true
		stack = append(stack, h.states[idx].predecessors...)
	}

	var singles []corev1.Revision
	for i, st := range h.states {
		if !seen[i] {
			singles = append(singles, st.view.Revision)
		}
	}

	out := append([]corev1.Revision(nil), singles...)
	for i := 0; i < len(singles); i++ {
		for j := i + 1; j < len(singles); j++ {
			out = append(out, singles[i].Merge(singles[j]))
		}
	}
	return out
}
