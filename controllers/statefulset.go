package controllers

import (
	"fmt"
	"time"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/resources"
)

const statefulSetControllerKind = "StatefulSet"

// stepStatefulSet implements §4.7: claim/disown against the selector, then
// maintain the ordinal-prefix pod set — create the lowest missing ordinal
// below spec.replicas, or delete the highest ordinal at or above it — and
// finally publish status. Exposes the invariant that at every observable
// revision the existing ordinals form a contiguous [0..k) prefix.
func stepStatefulSet(view *resources.View, local LocalState, now time.Time) (*action.Action, LocalState) {
	for _, sts := range view.StatefulSets.List() {
		if act := reconcileStatefulSet(view, sts, now); act != nil {
			return act, local
		}
	}
	return action.NoAction, local
}

func reconcileStatefulSet(view *resources.View, sts *resources.StatefulSet, now time.Time) *action.Action {
	sel, err := selectorFor(sts.Spec.Selector)
	if err != nil {
		return nil
	}

	candidates := filterActivePods(view.Pods.Matching(sel))
	claim := claimPods(&sts.Meta, statefulSetControllerKind, candidates)
	if claim.update != nil {
		return &action.Action{Kind: action.UpdatePod, Pod: claim.update}
	}
	owned := claim.owned

	if !sts.Meta.IsTerminating() {
		if act := manageOrdinals(sts, owned); act != nil {
			return act
		}
	}

	newStatus := calculateStatefulSetStatus(sts, owned, now)
	return updateStatefulSetStatusIfChanged(sts, newStatus)
}

// manageOrdinals creates the lowest missing ordinal in [0, replicas) if one
// is absent, else deletes the highest present ordinal at or beyond
// replicas — one pod per tick, preserving the contiguous-prefix invariant
// at every observed revision.
func manageOrdinals(sts *resources.StatefulSet, owned []*resources.Pod) *action.Action {
	present := make(map[int32]*resources.Pod, len(owned))
	var maxOrdinal int32 = -1
	for _, pod := range owned {
		ord, ok := podOrdinal(sts.Meta.Name, pod.Meta.Name)
		if !ok {
			continue
		}
		present[ord] = pod
		if ord > maxOrdinal {
			maxOrdinal = ord
		}
	}

	for ord := int32(0); ord < sts.Spec.Replicas; ord++ {
		if _, ok := present[ord]; ok {
			continue
		}
		pod := podFromTemplate(&sts.Meta, sts.Spec.Template, statefulSetControllerKind)
		pod.Meta.Name = ordinalPodName(sts.Meta.Name, ord)
		pod.Spec.NodeName = sts.Spec.Template.NodeName
		return &action.Action{Kind: action.CreatePod, Pod: pod}
	}

	if maxOrdinal >= sts.Spec.Replicas {
		return &action.Action{Kind: action.SoftDeletePod, Pod: present[maxOrdinal]}
	}
	return nil
}

func ordinalPodName(stsName string, ordinal int32) string {
	return fmt.Sprintf("%s-%d", stsName, ordinal)
}

// podOrdinal extracts the ordinal suffix from a pod named "{sts}-{n}".
func podOrdinal(stsName, podName string) (int32, bool) {
	prefix := stsName + "-"
	if len(podName) <= len(prefix) || podName[:len(prefix)] != prefix {
		return 0, false
	}
	suffix := podName[len(prefix):]
	var n int32
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int32(r-'0')
	}
	return n, true
}

func calculateStatefulSetStatus(sts *resources.StatefulSet, owned []*resources.Pod, now time.Time) resources.StatefulSetStatus {
	status := sts.Status
	var ready, available, current int32
	for _, pod := range owned {
		if isPodReady(pod) {
			ready++
			if isPodAvailable(pod, 0, now) {
				available++
			}
		}
		if ord, ok := podOrdinal(sts.Meta.Name, pod.Meta.Name); ok && ord < sts.Spec.Replicas {
			current++
		}
	}
	status.Replicas = int32(len(owned))
	status.ReadyReplicas = ready
	status.AvailableReplicas = available
	status.CurrentReplicas = current
	return status
}

func updateStatefulSetStatusIfChanged(sts *resources.StatefulSet, newStatus resources.StatefulSetStatus) *action.Action {
	if sts.Status.Replicas == newStatus.Replicas &&
		sts.Status.ReadyReplicas == newStatus.ReadyReplicas &&
		sts.Status.AvailableReplicas == newStatus.AvailableReplicas &&
		sts.Status.CurrentReplicas == newStatus.CurrentReplicas &&
		sts.Meta.Generation == sts.Status.ObservedGeneration {
		return nil
	}
	newStatus.ObservedGeneration = sts.Meta.Generation
	cp := sts.DeepCopyObject().(*resources.StatefulSet)
	cp.Status = newStatus
	return &action.Action{Kind: action.UpdateStatefulSetStatus, StatefulSet: cp}
}
