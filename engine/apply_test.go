package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/history"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestHistory() *history.Linearizable {
	return history.NewLinearizable(fixedClock{t: time.Unix(1000, 0)})
}

func commit(t *testing.T, h history.History, act *action.Action) *resources.View {
	t.Helper()
	rev, ok, err := h.Add(h.MaxRevision(), Mutate(act, time.Unix(1000, 0)))
	require.NoError(t, err)
	require.True(t, ok)
	view, ok := h.StateAt(rev)
	require.True(t, ok)
	return view
}

func TestApplyNodeJoinThenNodeCrashReparentsPods(t *testing.T) {
	h := newTestHistory()

	commit(t, h, &action.Action{Kind: action.NodeJoin, ControllerID: "node-1", NodeCapacity: resources.ResourceList{}})

	view := commit(t, h, &action.Action{Kind: action.CreatePod, Pod: &resources.Pod{
		Meta: corev1.Metadata{Name: "pod-a"},
		Spec: resources.PodSpec{NodeName: "node-1"},
	}})
	pod, ok := view.Pods.Get("pod-a")
	require.True(t, ok)
	assert.Equal(t, "node-1", pod.Spec.NodeName)

	view = commit(t, h, &action.Action{Kind: action.NodeCrash, ControllerID: "node-1"})
	assert.False(t, view.Nodes.Has("node-1"))
	pod, ok = view.Pods.Get("pod-a")
	require.True(t, ok)
	assert.Empty(t, pod.Spec.NodeName)
}

func TestApplyNodeCrashUnknownNodeIsInvalidAction(t *testing.T) {
	h := newTestHistory()
	_, ok, err := h.Add(h.MaxRevision(), Mutate(&action.Action{Kind: action.NodeCrash, ControllerID: "ghost"}, time.Unix(1000, 0)))
	assert.False(t, ok)
	assert.ErrorIs(t, err, store.ErrInvalidAction)
}

func TestApplySoftDeleteThenHardDeletePod(t *testing.T) {
	h := newTestHistory()
	view := commit(t, h, &action.Action{Kind: action.CreatePod, Pod: &resources.Pod{Meta: corev1.Metadata{Name: "pod-b"}}})
	pod, _ := view.Pods.Get("pod-b")

	view = commit(t, h, &action.Action{Kind: action.SoftDeletePod, Pod: pod})
	pod, ok := view.Pods.Get("pod-b")
	require.True(t, ok)
	require.NotNil(t, pod.Meta.DeletionTimestamp)

	view = commit(t, h, &action.Action{Kind: action.HardDeletePod, Pod: pod})
	assert.False(t, view.Pods.Has("pod-b"))
}

func TestApplySchedulePodSetsNodeName(t *testing.T) {
	h := newTestHistory()
	commit(t, h, &action.Action{Kind: action.CreatePod, Pod: &resources.Pod{Meta: corev1.Metadata{Name: "pod-c"}}})
	view := commit(t, h, &action.Action{Kind: action.SchedulePod, PodName: "pod-c", NodeName: "node-9"})
	pod, ok := view.Pods.Get("pod-c")
	require.True(t, ok)
	assert.Equal(t, "node-9", pod.Spec.NodeName)
}

func TestApplyNilActionIsNoOp(t *testing.T) {
	h := newTestHistory()
	_, ok, err := h.Add(h.MaxRevision(), Mutate(nil, time.Unix(1000, 0)))
	assert.False(t, ok)
	assert.ErrorIs(t, err, store.ErrNoOp)
}

func TestApplyControllerJoinMarksFleetMember(t *testing.T) {
	h := newTestHistory()
	view := commit(t, h, &action.Action{Kind: action.ControllerJoin, ControllerID: "scheduler-1"})
	assert.True(t, view.HasJoined("scheduler-1"))
}
