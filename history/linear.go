package history

import (
	"fmt"

	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

// linearLog is the Add/MaxRevision/StateAt implementation shared by
// Linearizable, MonotonicSession, and ResettableSession: a single forward
// list of views, one per committed revision, always extended from the
// last committed view regardless of which base a writer read from
// (matching the reference's "ignore the change's revision, always clone
// the tail" behavior for these three variants).
type linearLog struct {
	states []*resources.View // states[i].Revision.Components() == [i]
}

func newLinearLog(clock store.Clock) *linearLog {
	return &linearLog{states: []*resources.View{newInitialView(clock)}}
}

func (l *linearLog) MaxRevision() corev1.Revision {
	return l.states[len(l.states)-1].Revision
}

func (l *linearLog) StateAt(rev corev1.Revision) (*resources.View, bool) {
	cs := rev.Components()
	if len(cs) != 1 || cs[0] >= uint64(len(l.states)) {
		return nil, false
	}
	return l.states[cs[0]], true
}

func (l *linearLog) Add(_ corev1.Revision, mutate Mutator) (corev1.Revision, bool, error) {
	newRev := l.MaxRevision().Increment()
	newView := l.states[len(l.states)-1].Clone(newRev)
	if err := mutate(newView); err != nil {
		return l.MaxRevision(), false, err
	}
	l.states = append(l.states, newView)
	return newRev, true, nil
}

func sessionIndex(session *corev1.Revision) (int, error) {
	cs := session.Components()
	if len(cs) != 1 {
		return 0, fmt.Errorf("history: session revision %s is not a single-branch revision", session)
	}
	return int(cs[0]), nil
}

// Linearizable always serves the latest committed view: every reader sees
// every write in the same total order, with no staleness at all.
type Linearizable struct {
	*linearLog
}

// NewLinearizable returns a fresh Linearizable history at DefaultRevision.
func NewLinearizable(clock store.Clock) *Linearizable {
	return &Linearizable{linearLog: newLinearLog(clock)}
}

func (h *Linearizable) ValidRevisions(_ *corev1.Revision) []corev1.Revision {
	return []corev1.Revision{h.MaxRevision()}
}

// MonotonicSession serves any revision strictly newer than the reader's
// session, guaranteeing a client never observes a regression.
type MonotonicSession struct {
	*linearLog
}

// NewMonotonicSession returns a fresh MonotonicSession history at
// DefaultRevision.
func NewMonotonicSession(clock store.Clock) *MonotonicSession {
	return &MonotonicSession{linearLog: newLinearLog(clock)}
}

func (h *MonotonicSession) ValidRevisions(session *corev1.Revision) []corev1.Revision {
	if session == nil {
		return []corev1.Revision{h.MaxRevision()}
	}
	idx, err := sessionIndex(session)
	if err != nil {
		return []corev1.Revision{h.MaxRevision()}
	}
	var out []corev1.Revision
	for i := idx + 1; i < len(h.states); i++ {
		out = append(out, h.states[i].Revision)
	}
	return out
}

// ResettableSession serves every revision at or after the reader's
// session, including the session revision itself — a client may always
// re-observe its own last read.
type ResettableSession struct {
	*linearLog
}

// NewResettableSession returns a fresh ResettableSession history at
// DefaultRevision.
func NewResettableSession(clock store.Clock) *ResettableSession {
	return &ResettableSession{linearLog: newLinearLog(clock)}
}

func (h *ResettableSession) ValidRevisions(session *corev1.Revision) []corev1.Revision {
	if session == nil {
		out := make([]corev1.Revision, len(h.states))
		for i, s := range h.states {
			out[i] = s.Revision
		}
		return out
	}
	idx, err := sessionIndex(session)
	if err != nil {
		return []corev1.Revision{h.MaxRevision()}
	}
	var out []corev1.Revision
	for i := idx; i < len(h.states); i++ {
		out = append(out, h.states[i].Revision)
	}
	return out
}
