package controllers

import (
	"fmt"
	"sort"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"

	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
)

// newControllerRef builds the controller owner reference a child gets when
// claimed by owner, following controller/util.rs's new_controller_ref.
func newControllerRef(owner *corev1.Metadata, kind string) corev1.OwnerReference {
	return corev1.OwnerReference{
		UID:                owner.UID,
		Name:               owner.Name,
		Kind:                kind,
		Controller:         true,
		BlockOwnerDeletion: true,
	}
}

// podFromTemplate stamps out an unnamed pod from a controller's template
// and metadata, adding the controller owner reference. Callers fill in
// Meta.Name (or GenerateName-style prefix resolution) before Create.
func podFromTemplate(owner *corev1.Metadata, template resources.PodTemplateSpec, ownerKind string) *resources.Pod {
	pod := &resources.Pod{
		Meta: corev1.Metadata{
			Namespace:   owner.Namespace,
			Labels:      cloneLabels(template.Labels),
			Annotations: cloneLabels(template.Annotations),
		},
		Spec: resources.PodSpec{
			Containers: append([]resources.Container(nil), template.Containers...),
		},
	}
	pod.Meta.OwnerReferences = []corev1.OwnerReference{newControllerRef(owner, ownerKind)}
	return pod
}

func cloneResourceList(rl resources.ResourceList) resources.ResourceList {
	out := make(resources.ResourceList, len(rl))
	for k, v := range rl {
		out[k] = v.DeepCopy()
	}
	return out
}

func cloneLabels(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// isPodActive reports whether a pod is neither finished nor terminating —
// used by every controller that counts "the pods I currently own".
func isPodActive(p *resources.Pod) bool {
	return p.IsActive()
}

func filterActivePods(pods []*resources.Pod) []*resources.Pod {
	out := make([]*resources.Pod, 0, len(pods))
	for _, p := range pods {
		if isPodActive(p) {
			out = append(out, p)
		}
	}
	return out
}

func isPodTerminating(p *resources.Pod) bool {
	return p.Status.Phase != resources.PodSucceeded && p.Status.Phase != resources.PodFailed && p.Meta.IsTerminating()
}

func isPodReady(p *resources.Pod) bool {
	return p.IsReady()
}

// isPodAvailable reports whether p has been continuously Ready for at
// least minReadySeconds as of now.
func isPodAvailable(p *resources.Pod, minReadySeconds int32, now time.Time) bool {
	for _, c := range p.Status.Conditions {
		if c.Type != "Ready" || c.Status != metav1.ConditionTrue {
			continue
		}
		if minReadySeconds <= 0 {
			return true
		}
		return !c.LastTransitionTime.IsZero() &&
			c.LastTransitionTime.Add(time.Duration(minReadySeconds)*time.Second).Before(now)
	}
	return false
}

// selectorFor builds a labels.Selector from a LabelSelector, treating a nil
// MatchLabels/MatchExpressions selector as "match everything" the way
// metav1.LabelSelectorAsSelector does for an empty selector.
func selectorFor(sel metav1.LabelSelector) (labels.Selector, error) {
	s, err := metav1.LabelSelectorAsSelector(&sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}
	return s, nil
}

// selectsEverything reports whether sel matches every object regardless of
// labels — deployment.rs's "selector is empty" fast path (§4.6).
func selectsEverything(sel metav1.LabelSelector) bool {
	s, err := selectorFor(sel)
	return err == nil && s.Empty()
}

// claimResult is the outcome of running the claim/adopt/disown pass over a
// candidate pod set: either the pass wants to emit exactly one UpdatePod
// (to claim or disown), or it settles on the final owned set.
type claimResult struct {
	update *resources.Pod
	owned  []*resources.Pod
}

// claimPods runs the Kubernetes ControllerRef claim algorithm (ReplicaSet
// and StatefulSet both use the same shape, per controller/replicaset.rs
// claim_pods): first disown any pod whose owner reference names this
// controller by name but not by uid (a stale name collision), then adopt
// any selector-matching pod with no controller owner at all. At most one
// UpdatePod is proposed per call; the remaining, settled owned set is
// returned once no claim/disown remains to do.
func claimPods(owner *corev1.Metadata, ownerKind string, candidates []*resources.Pod) claimResult {
	for _, pod := range candidates {
		for _, ref := range pod.Meta.OwnerReferences {
			if ref.Name == owner.Name && ref.UID != owner.UID {
				cp := pod.DeepCopyObject().(*resources.Pod)
				cp.Meta.OwnerReferences = removeOwnerByUID(cp.Meta.OwnerReferences, owner.UID)
				return claimResult{update: cp}
			}
		}
	}

	owned := make([]*resources.Pod, 0, len(candidates))
	for _, pod := range candidates {
		if _, hasController := pod.Meta.ControllerRef(); !hasController {
			cp := pod.DeepCopyObject().(*resources.Pod)
			cp.Meta.SetControllerRef(newControllerRef(owner, ownerKind))
			return claimResult{update: cp}
		}
		if pod.Meta.IsControlledBy(owner.UID) {
			owned = append(owned, pod)
		}
	}
	return claimResult{owned: owned}
}

func removeOwnerByUID(refs []corev1.OwnerReference, uid types.UID) []corev1.OwnerReference {
	out := make([]corev1.OwnerReference, 0, len(refs))
	for _, ref := range refs {
		if ref.UID != uid {
			out = append(out, ref)
		}
	}
	return out
}

// sortPodsByCreation orders pods oldest-first, the order the reference
// scale-down logic walks old ReplicaSets and pending pods in.
func sortPodsByCreation(pods []*resources.Pod) {
	sort.Slice(pods, func(i, j int) bool {
		return pods[i].Meta.CreationTimestamp.Before(&pods[j].Meta.CreationTimestamp)
	})
}
