// Package controllers implements the seven reconciling controllers —
// Node, Scheduler, ReplicaSet, Deployment, StatefulSet, Job, PodGC — each a
// pure Step(view, local) -> (action, local') following the reference
// controllers under original_source/src/controller/. Go has no trait
// objects, so Controller and LocalState follow the same tagged-variant
// shape as action.Action: one struct, one Kind discriminant, the field(s)
// matching that kind populated.
package controllers

import (
	"time"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
)

// Kind discriminates which controller behavior Step dispatches to.
type Kind int

const (
	NodeKind Kind = iota
	SchedulerKind
	ReplicaSetKind
	DeploymentKind
	StatefulSetKind
	JobKind
	PodGCKind
)

func (k Kind) String() string {
	switch k {
	case NodeKind:
		return "Node"
	case SchedulerKind:
		return "Scheduler"
	case ReplicaSetKind:
		return "ReplicaSet"
	case DeploymentKind:
		return "Deployment"
	case StatefulSetKind:
		return "StatefulSet"
	case JobKind:
		return "Job"
	case PodGCKind:
		return "PodGC"
	default:
		return "Unknown"
	}
}

// Controller identifies one controller instance in the fleet. Every kind
// except Node is a singleton that reconciles every resource of its kind in
// one step; Node is instantiated once per simulated node, with ID equal to
// the node's name and NodeCapacity the capacity it joins the cluster with.
type Controller struct {
	Kind Kind
	ID   string

	// NodeCapacity is only meaningful for Kind == NodeKind: the resource
	// quantities this node reports on NodeJoin.
	NodeCapacity resources.ResourceList
}

// LocalState is the per-controller-id state a driver must thread back into
// the next Step call for the same Controller. It is exclusively owned by
// that controller id and never shared (spec §5).
type LocalState struct {
	// Running holds the names of pods this Node controller has already
	// emitted RunPod for, so it does not re-emit on every tick.
	Running map[string]bool

	// PodGCRevision is the last revision PodGC has consumed; the
	// controller only ever advances it forward.
	PodGCRevision *corev1.Revision
}

// NewLocalState returns the zero LocalState appropriate for a freshly
// joined controller of kind k.
func NewLocalState(k Kind) LocalState {
	switch k {
	case NodeKind:
		return LocalState{Running: make(map[string]bool)}
	default:
		return LocalState{}
	}
}

// Step dispatches to the controller named by c.Kind, returning the action
// to commit (nil if there is nothing to do) and the controller's updated
// local state. Step never mutates view; any resource touched by the
// returned action is a clone of what view holds. now is the only clock
// input a controller ever sees (spec §9 "Time"), so a caller can pass a
// fixed value for deterministic tests.
func Step(c Controller, view *resources.View, local LocalState, now time.Time) (*action.Action, LocalState) {
	switch c.Kind {
	case NodeKind:
		return stepNode(c, view, local)
	case SchedulerKind:
		return stepScheduler(view, local)
	case ReplicaSetKind:
		return stepReplicaSet(view, local, now)
	case DeploymentKind:
		return stepDeployment(view, local, now)
	case StatefulSetKind:
		return stepStatefulSet(view, local)
	case JobKind:
		return stepJob(view, local, now)
	case PodGCKind:
		return stepPodGC(view, local)
	default:
		return action.NoAction, local
	}
}
