package engine

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/controllers"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/history"
	"github.com/controlplane/simkube/resources"
)

// createDirect commits create straight through its Resources[T].Create, the
// same bypass httpapi.Server.commitCreate uses for kinds with no CreateX
// action — here used to seed a scenario's starting Deployment/StatefulSet,
// which in a real cluster would arrive the same way: from a client, not a
// controller.
func createDirect(t *testing.T, h history.History, create func(v *resources.View) error) *resources.View {
	t.Helper()
	rev, ok, err := h.Add(h.MaxRevision(), create)
	require.NoError(t, err)
	require.True(t, ok)
	view, ok := h.StateAt(rev)
	require.True(t, ok)
	return view
}

// stepAndCommit runs one Step for c against h's current view and, if it
// produced an action, commits it. Returns whether anything was committed,
// mirroring Driver.Tick but without depending on Fleet/controller
// selection, so scenario tests can run the controllers relevant to a
// specific workload in whatever order they need.
func stepAndCommit(t *testing.T, h history.History, c controllers.Controller, local controllers.LocalState, now time.Time) (controllers.LocalState, bool) {
	t.Helper()
	view, ok := h.StateAt(h.MaxRevision())
	require.True(t, ok)
	act, next := controllers.Step(c, view, local, now)
	if act == nil {
		return next, false
	}
	_, committed, err := h.Add(view.Revision, Mutate(act, now))
	require.NoError(t, err)
	return next, committed
}

// runUntilQuiet steps each of cs in round-robin order, committing whatever
// action results, until a full pass produces no commits at all (or maxPasses
// is exceeded, which fails the test rather than looping forever on a
// reconciliation bug).
func runUntilQuiet(t *testing.T, h history.History, cs []controllers.Controller, now time.Time, maxPasses int) {
	t.Helper()
	locals := make([]controllers.LocalState, len(cs))
	for i, c := range cs {
		locals[i] = controllers.NewLocalState(c.Kind)
	}
	for pass := 0; pass < maxPasses; pass++ {
		anyCommitted := false
		for i, c := range cs {
			next, committed := stepAndCommit(t, h, c, locals[i], now)
			locals[i] = next
			anyCommitted = anyCommitted || committed
		}
		if !anyCommitted {
			return
		}
	}
	t.Fatalf("runUntilQuiet: still committing actions after %d passes", maxPasses)
}

// TestScenarioFreshDeploymentCreatesReplicaSetAndPods exercises spec.md
// §8's "fresh deployment" scenario: a freshly created Deployment(replicas=2)
// eventually owns exactly one ReplicaSet sized 2, itself owning two Pods,
// all three sharing the same non-empty pod-template-hash label.
func TestScenarioFreshDeploymentCreatesReplicaSetAndPods(t *testing.T) {
	now := time.Unix(1000, 0)
	h := newTestHistory()

	dep := &resources.Deployment{
		Meta: corev1.Metadata{Name: "web", Namespace: "default"},
		Spec: resources.DeploymentSpec{
			Replicas: 2,
			Selector: metav1.LabelSelector{MatchLabels: map[string]string{"name": "web"}},
			Template: resources.PodTemplateSpec{
				Labels:     map[string]string{"name": "web"},
				Containers: []resources.Container{{Name: "fake", Image: "fake"}},
			},
		},
	}
	createDirect(t, h, func(v *resources.View) error {
		_, err := v.Deployments.Create(dep, v.Revision)
		return err
	})

	cs := []controllers.Controller{
		{Kind: controllers.DeploymentKind},
		{Kind: controllers.ReplicaSetKind},
	}
	runUntilQuiet(t, h, cs, now, 20)

	view, _ := h.StateAt(h.MaxRevision())

	rss := view.ReplicaSets.List()
	require.Len(t, rss, 1, "expected exactly one ReplicaSet owned by the deployment")
	rs := rss[0]
	assert.EqualValues(t, 2, rs.Spec.Replicas)
	hash := rs.Meta.Labels[resources.LabelPodTemplateHash]
	require.NotEmpty(t, hash)
	assert.Contains(t, rs.Meta.Name, hash)

	var owned []*resources.Pod
	for _, p := range view.Pods.List() {
		if ref, ok := p.Meta.ControllerRef(); ok && ref.UID == rs.Meta.UID {
			owned = append(owned, p)
		}
	}
	require.Len(t, owned, 2)
	for _, p := range owned {
		assert.Equal(t, "web", p.Meta.Labels["name"])
		assert.Equal(t, hash, p.Meta.Labels[resources.LabelPodTemplateHash])
	}

	updatedDep, ok := view.Deployments.Get("web")
	require.True(t, ok)
	assert.EqualValues(t, 2, updatedDep.Status.Replicas)
}

// TestScenarioStatefulSetOrdinalsFormContiguousPrefix exercises spec.md §8's
// StatefulSet prefix invariant at every intermediate revision: reconciling
// one ordinal at a time, the set of existing pods never has a gap.
func TestScenarioStatefulSetOrdinalsFormContiguousPrefix(t *testing.T) {
	now := time.Unix(1000, 0)
	h := newTestHistory()

	sts := &resources.StatefulSet{
		Meta: corev1.Metadata{Name: "db", Namespace: "default"},
		Spec: resources.StatefulSetSpec{
			Replicas: 3,
			Selector: metav1.LabelSelector{MatchLabels: map[string]string{"name": "db"}},
			Template: resources.PodTemplateSpec{
				Labels:     map[string]string{"name": "db"},
				Containers: []resources.Container{{Name: "fake", Image: "fake"}},
			},
		},
	}
	createDirect(t, h, func(v *resources.View) error {
		_, err := v.StatefulSets.Create(sts, v.Revision)
		return err
	})

	c := controllers.Controller{Kind: controllers.StatefulSetKind}
	local := controllers.NewLocalState(controllers.StatefulSetKind)
	for i := 0; i < 10; i++ {
		next, committed := stepAndCommit(t, h, c, local, now)
		local = next
		if !committed {
			break
		}

		view, _ := h.StateAt(h.MaxRevision())
		ordinals := map[int]bool{}
		for _, p := range view.Pods.List() {
			for j := 0; j < 3; j++ {
				if p.Meta.Name == "db-"+strconv.Itoa(j) {
					ordinals[j] = true
				}
			}
		}
		for j := 1; j < 3; j++ {
			if ordinals[j] {
				assert.True(t, ordinals[j-1], "ordinal %d present without %d", j, j-1)
			}
		}
	}

	view, _ := h.StateAt(h.MaxRevision())
	var names []string
	for _, p := range view.Pods.List() {
		names = append(names, p.Meta.Name)
	}
	assert.ElementsMatch(t, []string{"db-0", "db-1", "db-2"}, names)
}

// TestScenarioResourceNamesUniqueWithinKind exercises spec.md §8's name
// uniqueness invariant: creating a second Pod with a name already in use
// is rejected, never silently overwriting the first.
func TestScenarioResourceNamesUniqueWithinKind(t *testing.T) {
	h := newTestHistory()
	createDirect(t, h, func(v *resources.View) error {
		_, err := v.Pods.Create(&resources.Pod{Meta: corev1.Metadata{Name: "dup"}}, v.Revision)
		return err
	})

	view, _ := h.StateAt(h.MaxRevision())
	_, err := view.Pods.Create(&resources.Pod{Meta: corev1.Metadata{Name: "dup"}}, view.Revision)
	assert.Error(t, err)

	got, ok := view.Pods.Get("dup")
	require.True(t, ok)
	assert.Equal(t, "default", got.Meta.Namespace)
}
