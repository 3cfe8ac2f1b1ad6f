// Package engine wires the controllers, the History variants, and the
// action taxonomy together into the model driver described by spec.md §2
// and §9: repeatedly pick a (controller, readable view) pair, run its
// Step, and commit whatever Action it returns against the active history.
package engine

import (
	"fmt"
	"reflect"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/history"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

// Apply translates act into a mutation of view, using the same
// Create/Update/Remove discipline every Resources[T] collection enforces
// (spec.md §4.2). It is the Mutator every History variant's Add wraps one
// of, so the store's sentinel errors (store.ErrStaleWrite,
// store.ErrUIDMismatch, ...) propagate straight back to the committing
// caller per §7's error taxonomy. now is the clock reading stamped onto a
// newly soft-deleted object's deletionTimestamp.
func Apply(view *resources.View, act *action.Action, now time.Time) error {
	if act == nil {
		return store.ErrNoOp
	}
	switch act.Kind {
	case action.ControllerJoin:
		view.Controllers[act.ControllerID] = true
		return nil

	case action.NodeJoin:
		node := &resources.Node{
			Meta:   corev1.Metadata{Name: act.ControllerID},
			Status: resources.NodeStatus{Capacity: act.NodeCapacity, Allocatable: act.NodeCapacity, Ready: true},
		}
		_, err := view.Nodes.Create(node, view.Revision)
		return err

	case action.NodeCrash:
		node, ok := view.Nodes.Get(act.ControllerID)
		if !ok {
			return fmt.Errorf("apply NodeCrash %q: %w", act.ControllerID, store.ErrInvalidAction)
		}
		if _, err := view.Nodes.Remove(node); err != nil {
			return err
		}
		for _, pod := range view.Pods.List() {
			if pod.Spec.NodeName == act.ControllerID {
				cp := pod.DeepCopyObject().(*resources.Pod)
				cp.Spec.NodeName = ""
				if _, err := view.Pods.Update(cp, view.Revision, true); err != nil {
					return err
				}
			}
		}
		return nil

	case action.CreatePod:
		_, err := view.Pods.Create(act.Pod, view.Revision)
		return err
	case action.UpdatePod:
		return applyPodUpdate(view, act.Pod, true)
	case action.SoftDeletePod:
		return softDeletePod(view, act.Pod, now)
	case action.HardDeletePod:
		_, err := view.Pods.Remove(act.Pod)
		return err
	case action.SchedulePod:
		return schedulePod(view, act.PodName, act.NodeName)
	case action.RunPod:
		// RunPod's effect is entirely local to the Node controller's own
		// LocalState.Running set (spec.md §4.4); it touches no shared
		// resource, so there is nothing for the store to apply.
		return nil

	case action.CreateReplicaSet:
		_, err := view.ReplicaSets.Create(act.ReplicaSet, view.Revision)
		return err
	case action.UpdateReplicaSet:
		return applyReplicaSetUpdate(view, act.ReplicaSet, true)
	case action.UpdateReplicaSets:
		for _, rs := range act.ReplicaSets {
			if err := applyReplicaSetUpdate(view, rs, true); err != nil {
				return err
			}
		}
		return nil
	case action.UpdateReplicaSetStatus:
		return applyReplicaSetUpdate(view, act.ReplicaSet, false)
	case action.DeleteReplicaSet:
		_, err := view.ReplicaSets.Remove(act.ReplicaSet)
		return err

	case action.UpdateDeployment:
		return applyDeploymentUpdate(view, act.Deployment, true)
	case action.UpdateDeploymentStatus:
		return applyDeploymentUpdate(view, act.Deployment, false)
	case action.RequeueDeployment:
		// Requeue carries no state mutation (spec.md §5): it only tells the
		// driver to re-examine this Deployment on a later tick.
		return nil

	case action.UpdateStatefulSet:
		return applyStatefulSetUpdate(view, act.StatefulSet, true)
	case action.UpdateStatefulSetStatus:
		return applyStatefulSetUpdate(view, act.StatefulSet, false)

	case action.CreateControllerRevision:
		_, err := view.ControllerRevisions.Create(act.ControllerRevision, view.Revision)
		return err
	case action.UpdateControllerRevision:
		existing, ok := view.ControllerRevisions.Get(act.ControllerRevision.Meta.Name)
		specChanged := !ok || !reflect.DeepEqual(existing.Template, act.ControllerRevision.Template) ||
			existing.Revision != act.ControllerRevision.Revision
		_, err := view.ControllerRevisions.Update(act.ControllerRevision, view.Revision, specChanged)
		return err
	case action.DeleteControllerRevision:
		_, err := view.ControllerRevisions.Remove(act.ControllerRevision)
		return err

	case action.CreatePersistentVolumeClaim:
		_, err := view.PVCs.Create(act.PersistentVolumeClaim, view.Revision)
		return err
	case action.UpdatePersistentVolumeClaim:
		existing, ok := view.PVCs.Get(act.PersistentVolumeClaim.Meta.Name)
		specChanged := !ok || !reflect.DeepEqual(existing.Spec, act.PersistentVolumeClaim.Spec)
		_, err := view.PVCs.Update(act.PersistentVolumeClaim, view.Revision, specChanged)
		return err

	case action.UpdateJob:
		return applyJobUpdate(view, act.Job, true)
	case action.UpdateJobStatus:
		return applyJobUpdate(view, act.Job, false)

	default:
		return fmt.Errorf("apply: unknown action kind %v: %w", act.Kind, store.ErrInvalidAction)
	}
}

func applyPodUpdate(view *resources.View, pod *resources.Pod, mayChangeSpec bool) error {
	specChanged := false
	if mayChangeSpec {
		if existing, ok := view.Pods.Get(pod.Meta.Name); ok {
			specChanged = !reflect.DeepEqual(existing.Spec, pod.Spec)
		}
	}
	_, err := view.Pods.Update(pod, view.Revision, specChanged)
	return err
}

func applyReplicaSetUpdate(view *resources.View, rs *resources.ReplicaSet, mayChangeSpec bool) error {
	specChanged := false
	if mayChangeSpec {
		if existing, ok := view.ReplicaSets.Get(rs.Meta.Name); ok {
			specChanged = !reflect.DeepEqual(existing.Spec, rs.Spec)
		}
	}
	_, err := view.ReplicaSets.Update(rs, view.Revision, specChanged)
	return err
}

func applyDeploymentUpdate(view *resources.View, dep *resources.Deployment, mayChangeSpec bool) error {
	specChanged := false
	if mayChangeSpec {
		if existing, ok := view.Deployments.Get(dep.Meta.Name); ok {
			specChanged = !reflect.DeepEqual(existing.Spec, dep.Spec)
		}
	}
	_, err := view.Deployments.Update(dep, view.Revision, specChanged)
	return err
}

func applyStatefulSetUpdate(view *resources.View, sts *resources.StatefulSet, mayChangeSpec bool) error {
	specChanged := false
	if mayChangeSpec {
		if existing, ok := view.StatefulSets.Get(sts.Meta.Name); ok {
			specChanged = !reflect.DeepEqual(existing.Spec, sts.Spec)
		}
	}
	_, err := view.StatefulSets.Update(sts, view.Revision, specChanged)
	return err
}

func applyJobUpdate(view *resources.View, job *resources.Job, mayChangeSpec bool) error {
	specChanged := false
	if mayChangeSpec {
		if existing, ok := view.Jobs.Get(job.Meta.Name); ok {
			specChanged = !reflect.DeepEqual(existing.Spec, job.Spec)
		}
	}
	_, err := view.Jobs.Update(job, view.Revision, specChanged)
	return err
}

// softDeletePod sets deletionTimestamp (if not already set) and re-stores
// the pod via the ordinary Update path — a soft delete is, to Resources[T],
// just a finalizer-preserving metadata update (spec.md §3 "Lifecycle").
func softDeletePod(view *resources.View, pod *resources.Pod, now time.Time) error {
	cp := pod.DeepCopyObject().(*resources.Pod)
	if cp.Meta.DeletionTimestamp == nil {
		t := metav1.NewTime(now)
		cp.Meta.DeletionTimestamp = &t
	}
	return applyPodUpdate(view, cp, false)
}

// schedulePod sets spec.nodeName on the pod named podName — a spec-level
// change, so it goes through the full Update path with specChanged=true.
func schedulePod(view *resources.View, podName, nodeName string) error {
	pod, ok := view.Pods.Get(podName)
	if !ok {
		return fmt.Errorf("apply SchedulePod %q: %w", podName, store.ErrInvalidAction)
	}
	cp := pod.DeepCopyObject().(*resources.Pod)
	cp.Spec.NodeName = nodeName
	_, err := view.Pods.Update(cp, view.Revision, true)
	return err
}

// Mutate adapts Apply to history.Mutator, the closure shape every History
// variant's Add expects.
func Mutate(act *action.Action, now time.Time) history.Mutator {
	return func(v *resources.View) error {
		return Apply(v, act, now)
	}
}
