package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestView(t *testing.T) *resources.View {
	t.Helper()
	return resources.NewView(corev1.NewRevision(1), fixedClock{t: time.Unix(1000, 0)})
}

func TestStepPodGCSoftDeletesOrphanPod(t *testing.T) {
	view := newTestView(t)
	_, err := view.Pods.Create(&resources.Pod{
		Meta: corev1.Metadata{Name: "orphan"},
		Spec: resources.PodSpec{NodeName: "gone"},
	}, view.Revision)
	require.NoError(t, err)

	c := Controller{Kind: PodGCKind, ID: "gc"}
	act, local := Step(c, view, NewLocalState(PodGCKind), time.Unix(1000, 0))
	require.NotNil(t, act)
	assert.Equal(t, action.SoftDeletePod, act.Kind)
	assert.Equal(t, "orphan", act.Pod.Meta.Name)
	require.NotNil(t, local.PodGCRevision)
	assert.True(t, local.PodGCRevision.Equal(view.Revision))
}

func TestStepPodGCHardDeletesAlreadyTerminatingOrphan(t *testing.T) {
	view := newTestView(t)
	now := metav1.NewTime(time.Unix(1000, 0))
	_, err := view.Pods.Create(&resources.Pod{
		Meta: corev1.Metadata{Name: "orphan", DeletionTimestamp: &now},
		Spec: resources.PodSpec{NodeName: "gone"},
	}, view.Revision)
	require.NoError(t, err)

	act, _ := Step(Controller{Kind: PodGCKind}, view, NewLocalState(PodGCKind), time.Unix(1000, 0))
	require.NotNil(t, act)
	assert.Equal(t, action.HardDeletePod, act.Kind)
}

func TestStepPodGCHardDeletesTerminatingUnscheduledPod(t *testing.T) {
	view := newTestView(t)
	now := metav1.NewTime(time.Unix(1000, 0))
	_, err := view.Pods.Create(&resources.Pod{
		Meta: corev1.Metadata{Name: "pending", DeletionTimestamp: &now, Finalizers: []string{"keep-me"}},
	}, view.Revision)
	require.NoError(t, err)

	act, _ := Step(Controller{Kind: PodGCKind}, view, NewLocalState(PodGCKind), time.Unix(1000, 0))
	require.NotNil(t, act)
	assert.Equal(t, action.HardDeletePod, act.Kind)
}

func TestStepPodGCNoActionWhenNothingToCollect(t *testing.T) {
	view := newTestView(t)
	_, err := view.Nodes.Create(&resources.Node{Meta: corev1.Metadata{Name: "healthy"}}, view.Revision)
	require.NoError(t, err)
	_, err = view.Pods.Create(&resources.Pod{
		Meta: corev1.Metadata{Name: "fine"},
		Spec: resources.PodSpec{NodeName: "healthy"},
	}, view.Revision)
	require.NoError(t, err)

	act, _ := Step(Controller{Kind: PodGCKind}, view, NewLocalState(PodGCKind), time.Unix(1000, 0))
	assert.Equal(t, action.NoAction, act)
}
