package resources

import (
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/store"
)

// View is a snapshot of every resource kind's collection at one revision,
// plus the set of controller ids that have joined. It is the only thing a
// controller step reads and the only thing History.StateAt produces.
type View struct {
	Revision corev1.Revision

	Nodes               *store.Resources[*Node]
	Pods                *store.Resources[*Pod]
	ReplicaSets         *store.Resources[*ReplicaSet]
	Deployments         *store.Resources[*Deployment]
	StatefulSets        *store.Resources[*StatefulSet]
	Jobs                *store.Resources[*Job]
	ControllerRevisions *store.Resources[*ControllerRevision]
	PVCs                *store.Resources[*PersistentVolumeClaim]

	Controllers map[string]bool
}

// NewView builds an empty View at rev, with empty collections for every
// kind and no joined controllers.
func NewView(rev corev1.Revision, clock store.Clock) *View {
	return &View{
		Revision:            rev,
		Nodes:               store.NewResources[*Node](clock),
		Pods:                store.NewResources[*Pod](clock),
		ReplicaSets:         store.NewResources[*ReplicaSet](clock),
		Deployments:         store.NewResources[*Deployment](clock),
		StatefulSets:        store.NewResources[*StatefulSet](clock),
		Jobs:                store.NewResources[*Job](clock),
		ControllerRevisions: store.NewResources[*ControllerRevision](clock),
		PVCs:                store.NewResources[*PersistentVolumeClaim](clock),
		Controllers:         make(map[string]bool),
	}
}

// Clone returns a deep-enough copy of v suitable as the basis for the next
// revision: every collection is cloned, and the controller set is copied.
func (v *View) Clone(rev corev1.Revision) *View {
	out := &View{
		Revision:            rev,
		Nodes:               v.Nodes.Clone(),
		Pods:                v.Pods.Clone(),
		ReplicaSets:         v.ReplicaSets.Clone(),
		Deployments:         v.Deployments.Clone(),
		StatefulSets:        v.StatefulSets.Clone(),
		Jobs:                v.Jobs.Clone(),
		ControllerRevisions: v.ControllerRevisions.Clone(),
		PVCs:                v.PVCs.Clone(),
		Controllers:         make(map[string]bool, len(v.Controllers)),
	}
	for id := range v.Controllers {
		out.Controllers[id] = true
	}
	return out
}

// HasJoined reports whether controller id has already emitted its join
// action in this or an ancestor view.
func (v *View) HasJoined(id string) bool {
	return v.Controllers[id]
}

// Merge folds other into v, per-kind, keeping whichever side observed the
// newer resourceVersion for a given name (see Resources.Merge), and unions
// the joined-controller sets. Used by the Causal history to build a
// consistent read over two concurrent branches.
func (v *View) Merge(other *View) *View {
	out := &View{
		Revision:            v.Revision.Merge(other.Revision),
		Nodes:               v.Nodes.Merge(other.Nodes),
		Pods:                v.Pods.Merge(other.Pods),
		ReplicaSets:         v.ReplicaSets.Merge(other.ReplicaSets),
		Deployments:         v.Deployments.Merge(other.Deployments),
		StatefulSets:        v.StatefulSets.Merge(other.StatefulSets),
		Jobs:                v.Jobs.Merge(other.Jobs),
		ControllerRevisions: v.ControllerRevisions.Merge(other.ControllerRevisions),
		PVCs:                v.PVCs.Merge(other.PVCs),
		Controllers:         make(map[string]bool, len(v.Controllers)+len(other.Controllers)),
	}
	for id := range v.Controllers {
		out.Controllers[id] = true
	}
	for id := range other.Controllers {
		out.Controllers[id] = true
	}
	return out
}
