package controllers

import (
	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/resources"
)

// stepPodGC implements §4.9: PodGC soft-deletes orphan pods (bound to a
// node that no longer exists) on first sighting, then hard-deletes them
// once they carry a deletionTimestamp; unscheduled pods that are already
// terminating are hard-deleted directly. At most one action is emitted per
// step, matching every other controller's pure Step shape.
//
// local.PodGCRevision records the newest revision this controller has
// observed; it only ever advances forward (it is never read back to filter
// which pods are considered — it is purely a bookkeeping high-water mark).
func stepPodGC(view *resources.View, local LocalState) (*action.Action, LocalState) {
	rev := view.Revision
	if local.PodGCRevision == nil || local.PodGCRevision.Less(rev) {
		local.PodGCRevision = &rev
	}

	for _, pod := range view.Pods.List() {
		if pod.Spec.NodeName != "" && !view.Nodes.Has(pod.Spec.NodeName) {
			if !pod.Meta.IsTerminating() {
				return &action.Action{Kind: action.SoftDeletePod, Pod: pod}, local
			}
			return &action.Action{Kind: action.HardDeletePod, Pod: pod}, local
		}
		if pod.Spec.NodeName == "" && isPodTerminating(pod) {
			return &action.Action{Kind: action.HardDeletePod, Pod: pod}, local
		}
	}
	return action.NoAction, local
}
