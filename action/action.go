// Package action defines ControllerAction: the tagged union of every
// mutation a controller may request. A controller step returns at most one
// Action; the driver is the only thing that applies one.
package action

import "github.com/controlplane/simkube/resources"

// Kind discriminates which field of an Action is populated. Go has no sum
// type, so Action follows the same "one struct per variant, held behind a
// discriminant" shape the reference condition-handling code uses, widened
// to cover every mutation in the system.
type Kind int

const (
	ControllerJoin Kind = iota
	NodeJoin
	NodeCrash

	CreatePod
	UpdatePod
	SoftDeletePod
	HardDeletePod
	SchedulePod
	RunPod

	CreateReplicaSet
	UpdateReplicaSet
	UpdateReplicaSets
	UpdateReplicaSetStatus
	DeleteReplicaSet

	UpdateDeployment
	UpdateDeploymentStatus
	RequeueDeployment

	UpdateStatefulSet
	UpdateStatefulSetStatus

	CreateControllerRevision
	UpdateControllerRevision
	DeleteControllerRevision

	CreatePersistentVolumeClaim
	UpdatePersistentVolumeClaim

	UpdateJob
	UpdateJobStatus
)

func (k Kind) String() string {
	switch k {
	case ControllerJoin:
		return "ControllerJoin"
	case NodeJoin:
		return "NodeJoin"
	case NodeCrash:
		return "NodeCrash"
	case CreatePod:
		return "CreatePod"
	case UpdatePod:
		return "UpdatePod"
	case SoftDeletePod:
		return "SoftDeletePod"
	case HardDeletePod:
		return "HardDeletePod"
	case SchedulePod:
		return "SchedulePod"
	case RunPod:
		return "RunPod"
	case CreateReplicaSet:
		return "CreateReplicaSet"
	case UpdateReplicaSet:
		return "UpdateReplicaSet"
	case UpdateReplicaSets:
		return "UpdateReplicaSets"
	case UpdateReplicaSetStatus:
		return "UpdateReplicaSetStatus"
	case DeleteReplicaSet:
		return "DeleteReplicaSet"
	case UpdateDeployment:
		return "UpdateDeployment"
	case UpdateDeploymentStatus:
		return "UpdateDeploymentStatus"
	case RequeueDeployment:
		return "RequeueDeployment"
	case UpdateStatefulSet:
		return "UpdateStatefulSet"
	case UpdateStatefulSetStatus:
		return "UpdateStatefulSetStatus"
	case CreateControllerRevision:
		return "CreateControllerRevision"
	case UpdateControllerRevision:
		return "UpdateControllerRevision"
	case DeleteControllerRevision:
		return "DeleteControllerRevision"
	case CreatePersistentVolumeClaim:
		return "CreatePersistentVolumeClaim"
	case UpdatePersistentVolumeClaim:
		return "UpdatePersistentVolumeClaim"
	case UpdateJob:
		return "UpdateJob"
	case UpdateJobStatus:
		return "UpdateJobStatus"
	default:
		return "Unknown"
	}
}

// Action is the value a controller step returns to request a mutation.
// Exactly the field matching Kind is meaningful; the rest are zero.
type Action struct {
	Kind Kind

	ControllerID string // ControllerJoin, NodeJoin, NodeCrash
	NodeCapacity resources.ResourceList // NodeJoin

	Pod        *resources.Pod // CreatePod/UpdatePod/SoftDeletePod/HardDeletePod/RunPod
	NodeName   string         // SchedulePod/RunPod
	PodName    string         // SchedulePod

	ReplicaSet  *resources.ReplicaSet   // Create/Update/Delete/UpdateStatus ReplicaSet
	ReplicaSets []*resources.ReplicaSet // UpdateReplicaSets (batch proportional scaling)

	Deployment *resources.Deployment // UpdateDeployment/UpdateDeploymentStatus/RequeueDeployment

	StatefulSet *resources.StatefulSet // UpdateStatefulSet/UpdateStatefulSetStatus

	ControllerRevision *resources.ControllerRevision // Create/Update/DeleteControllerRevision

	PersistentVolumeClaim *resources.PersistentVolumeClaim // Create/UpdatePersistentVolumeClaim

	Job *resources.Job // UpdateJob/UpdateJobStatus
}

// NoAction is returned by a controller step that found nothing to do; the
// driver treats a nil *Action identically, this is just the explicit form.
var NoAction *Action
