package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

type fixedClock struct{}

func (c fixedClock) Now() time.Time { return time.Unix(0, 0) }

func addNode(name string) Mutator {
	return func(v *resources.View) error {
		_, err := v.Nodes.Create(&resources.Node{
			Meta: corev1.Metadata{Name: name},
		}, v.Revision)
		return err
	}
}

func TestLinearizableAlwaysServesLatest(t *testing.T) {
	h := NewLinearizable(fixedClock{})
	rev0 := h.MaxRevision()

	rev1, ok, err := h.Add(rev0, addNode("a"))
	require.NoError(t, err)
	require.True(t, ok)

	rev2, ok, err := h.Add(rev0, addNode("b"))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []corev1.Revision{rev2}, h.ValidRevisions(&rev0))
	assert.Equal(t, []corev1.Revision{rev2}, h.ValidRevisions(&rev1))
	assert.Equal(t, rev2, h.MaxRevision())
}

func TestMonotonicSessionNeverRegresses(t *testing.T) {
	h := NewMonotonicSession(fixedClock{})
	rev0 := h.MaxRevision()
	rev1, _, err := h.Add(rev0, addNode("a"))
	require.NoError(t, err)
	rev2, _, err := h.Add(rev1, addNode("b"))
	require.NoError(t, err)

	assert.Equal(t, []corev1.Revision{rev1, rev2}, h.ValidRevisions(&rev0))
	assert.Equal(t, []corev1.Revision{rev2}, h.ValidRevisions(&rev1))
	assert.Empty(t, h.ValidRevisions(&rev2))
}

func TestResettableSessionCanReobserve(t *testing.T) {
	h := NewResettableSession(fixedClock{})
	rev0 := h.MaxRevision()
	rev1, _, err := h.Add(rev0, addNode("a"))
	require.NoError(t, err)

	out := h.ValidRevisions(&rev0)
	assert.Equal(t, []corev1.Revision{rev0, rev1}, out)

	out = h.ValidRevisions(&rev1)
	assert.Equal(t, []corev1.Revision{rev1}, out)
}

func TestOptimisticLinearForksOnConcurrentBase(t *testing.T) {
	h := NewOptimisticLinear(fixedClock{})
	rev0 := h.MaxRevision()

	revA, ok, err := h.Add(rev0, addNode("a"))
	require.NoError(t, err)
	require.True(t, ok)

	// A second writer branches from the same base rev0, producing a
	// sibling of revA rather than a descendant.
	revB, ok, err := h.Add(rev0, addNode("b"))
	require.NoError(t, err)
	require.True(t, ok)

	viewA, ok := h.StateAt(revA)
	require.True(t, ok)
	assert.True(t, viewA.Nodes.Has("a"))
	assert.False(t, viewA.Nodes.Has("b"))

	viewB, ok := h.StateAt(revB)
	require.True(t, ok)
	assert.True(t, viewB.Nodes.Has("b"))
	assert.False(t, viewB.Nodes.Has("a"))
}

func TestCausalMergesConcurrentAncestors(t *testing.T) {
	h := NewCausal(fixedClock{})
	rev0 := h.MaxRevision()

	revA, ok, err := h.Add(rev0, addNode("a"))
	require.NoError(t, err)
	require.True(t, ok)

	revB, ok, err := h.Add(rev0, addNode("b"))
	require.NoError(t, err)
	require.True(t, ok)

	merged := revA.Merge(revB)
	view, ok := h.StateAt(merged)
	require.True(t, ok)
	assert.True(t, view.Nodes.Has("a"))
	assert.True(t, view.Nodes.Has("b"))

	valid := h.ValidRevisions(&rev0)
	assert.Contains(t, valid, revA)
	assert.Contains(t, valid, revB)
	assert.Contains(t, valid, merged)
}

func TestCausalAddFromMergedBase(t *testing.T) {
	h := NewCausal(fixedClock{})
	rev0 := h.MaxRevision()

	revA, _, err := h.Add(rev0, addNode("a"))
	require.NoError(t, err)
	revB, _, err := h.Add(rev0, addNode("b"))
	require.NoError(t, err)

	merged := revA.Merge(revB)
	revC, ok, err := h.Add(merged, addNode("c"))
	require.NoError(t, err)
	require.True(t, ok)

	view, ok := h.StateAt(revC)
	require.True(t, ok)
	assert.True(t, view.Nodes.Has("a"))
	assert.True(t, view.Nodes.Has("b"))
	assert.True(t, view.Nodes.Has("c"))
}

func TestAddRejectsUnknownBase(t *testing.T) {
	h := NewOptimisticLinear(fixedClock{})
	bogus := corev1.NewRevision(99)
	_, ok, err := h.Add(bogus, addNode("a"))
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestCausalAddRejectsUnknownBase(t *testing.T) {
	h := NewCausal(fixedClock{})
	bogus := corev1.NewRevision(99)
	_, ok, err := h.Add(bogus, addNode("a"))
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestMutatorRejectionDoesNotAdvance(t *testing.T) {
	h := NewLinearizable(fixedClock{})
	rev0 := h.MaxRevision()
	_, ok, err := h.Add(rev0, func(v *resources.View) error {
		return store.ErrInvalidAction
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, store.ErrInvalidAction)
	assert.Equal(t, rev0, h.MaxRevision())
}
