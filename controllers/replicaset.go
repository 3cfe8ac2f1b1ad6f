package controllers

import (
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/resources"
)

const replicaSetControllerKind = "ReplicaSet"

// stepReplicaSet implements §4.5: claim/disown against the selector, diff
// owned-pod count against spec.replicas (create or delete exactly one pod
// per tick), then recompute and publish status. Each of the three phases
// can short-circuit the tick by returning its own action; only when a
// ReplicaSet needs nothing at all does the loop continue to the next one.
func stepReplicaSet(view *resources.View, local LocalState, now time.Time) (*action.Action, LocalState) {
	for _, rs := range view.ReplicaSets.List() {
		if act := reconcileReplicaSet(view, rs, now); act != nil {
			return act, local
		}
	}
	return action.NoAction, local
}

func reconcileReplicaSet(view *resources.View, rs *resources.ReplicaSet, now time.Time) *action.Action {
	sel, err := selectorFor(rs.Spec.Selector)
	if err != nil {
		return nil
	}

	candidates := filterActivePods(view.Pods.Matching(sel))
	claim := claimPods(&rs.Meta, replicaSetControllerKind, candidates)
	if claim.update != nil {
		return &action.Action{Kind: action.UpdatePod, Pod: claim.update}
	}
	owned := claim.owned

	if !rs.Meta.IsTerminating() {
		if act := manageReplicas(view, rs, owned); act != nil {
			return act
		}
	}

	newStatus := calculateReplicaSetStatus(rs, owned, now)
	return updateReplicaSetStatusIfChanged(rs, newStatus)
}

// manageReplicas implements §4.5 step 4: create one pod from the template
// (named "{rs}-{n}" with the lowest n not already taken by a pod) when
// under-replicated, or delete one (pending/unready first, then oldest)
// when over-replicated.
func manageReplicas(view *resources.View, rs *resources.ReplicaSet, owned []*resources.Pod) *action.Action {
	diff := len(owned) - int(rs.Spec.Replicas)
	if diff < 0 {
		pod := podFromTemplate(&rs.Meta, rs.Spec.Template, replicaSetControllerKind)
		for n := 0; ; n++ {
			if name := fmt.Sprintf("%s-%d", rs.Meta.Name, n); !view.Pods.Has(name) {
				pod.Meta.Name = name
				break
			}
		}
		return &action.Action{Kind: action.CreatePod, Pod: pod}
	}
	if diff > 0 {
		victim := choosePodToDelete(owned)
		return &action.Action{Kind: action.SoftDeletePod, Pod: victim}
	}
	return nil
}

// choosePodToDelete picks the pending/unready pods first, then the oldest,
// matching §4.5 step 4's deletion preference.
func choosePodToDelete(pods []*resources.Pod) *resources.Pod {
	notReady := make([]*resources.Pod, 0, len(pods))
	for _, p := range pods {
		if !isPodReady(p) {
			notReady = append(notReady, p)
		}
	}
	pool := pods
	if len(notReady) > 0 {
		pool = notReady
	}
	sortPodsByCreation(pool)
	return pool[0]
}

func calculateReplicaSetStatus(rs *resources.ReplicaSet, owned []*resources.Pod, now time.Time) resources.ReplicaSetStatus {
	status := rs.Status

	templateSel := rs.Spec.Template.Labels
	var fullyLabeled, ready, available int32
	for _, pod := range owned {
		if labelSuperset(pod.Meta.Labels, templateSel) {
			fullyLabeled++
		}
		if isPodReady(pod) {
			ready++
			if isPodAvailable(pod, rs.Spec.MinReadySeconds, now) {
				available++
			}
		}
	}

	if hasCondition(status.Conditions, resources.ReplicaSetConditionReplicaFailure) {
		status.Conditions = removeConditionType(status.Conditions, resources.ReplicaSetConditionReplicaFailure)
	}

	status.Replicas = int32(len(owned))
	status.FullyLabeledReplicas = fullyLabeled
	status.ReadyReplicas = ready
	status.AvailableReplicas = available
	return status
}

func updateReplicaSetStatusIfChanged(rs *resources.ReplicaSet, newStatus resources.ReplicaSetStatus) *action.Action {
	if rs.Status.Replicas == newStatus.Replicas &&
		rs.Status.FullyLabeledReplicas == newStatus.FullyLabeledReplicas &&
		rs.Status.ReadyReplicas == newStatus.ReadyReplicas &&
		rs.Status.AvailableReplicas == newStatus.AvailableReplicas &&
		rs.Meta.Generation == rs.Status.ObservedGeneration &&
		resources.ConditionsEqual(rs.Status.Conditions, newStatus.Conditions) {
		return nil
	}
	newStatus.ObservedGeneration = rs.Meta.Generation
	cp := rs.DeepCopyObject().(*resources.ReplicaSet)
	cp.Status = newStatus
	return &action.Action{Kind: action.UpdateReplicaSetStatus, ReplicaSet: cp}
}

// labelSuperset reports whether labels is a superset of template —
// "fully labeled" per §4.5 step 5.
func labelSuperset(labels, template map[string]string) bool {
	for k, v := range template {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func hasCondition(conditions []metav1.Condition, condType string) bool {
	for _, c := range conditions {
		if c.Type == condType {
			return true
		}
	}
	return false
}

func removeConditionType(conditions []metav1.Condition, condType string) []metav1.Condition {
	out := make([]metav1.Condition, 0, len(conditions))
	for _, c := range conditions {
		if c.Type != condType {
			out = append(out, c)
		}
	}
	return out
}
