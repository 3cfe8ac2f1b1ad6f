package resources

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/controlplane/simkube/corev1"
)

// Deployment annotation and condition-reason constants, carried over from
// the reference controller's naming so rollout state is legible the same
// way a real Kubernetes deployment's annotations are.
const (
	AnnotationDeprecatedRollbackTo = "deprecated.deployment.rollback.to"
	AnnotationRevision             = "deployment.kubernetes.io/revision"
	AnnotationRevisionHistory      = "deployment.kubernetes.io/revision-history"
	AnnotationDesiredReplicas      = "deployment.kubernetes.io/desired-replicas"
	AnnotationMaxReplicas          = "deployment.kubernetes.io/max-replicas"
	LabelPodTemplateHash           = "pod-template-hash"

	ReasonPausedDeploy        = "DeploymentPaused"
	ReasonResumedDeploy       = "DeploymentResumed"
	ReasonReplicaSetUpdated   = "ReplicaSetUpdated"
	ReasonNewRSAvailable      = "NewReplicaSetAvailable"
	ReasonTimedOut            = "ProgressDeadlineExceeded"
	ReasonFoundNewRS          = "FoundNewReplicaSet"
	ReasonMinAvailable        = "MinimumReplicasAvailable"
	ReasonMinUnavailable      = "MinimumReplicasUnavailable"

	// MaxRevisionHistoryChars bounds the revision-history annotation's
	// length, matching the reference controller's budget.
	MaxRevisionHistoryChars = 2000

	ConditionAvailable    = "Available"
	ConditionProgressing  = "Progressing"
	ConditionReplicaFailure = "ReplicaFailure"
)

// DeploymentStrategyType selects the rollout strategy.
type DeploymentStrategyType string

const (
	RecreateDeploymentStrategy     DeploymentStrategyType = "Recreate"
	RollingUpdateDeploymentStrategy DeploymentStrategyType = "RollingUpdate"
)

// RollingUpdateDeployment carries the surge/unavailable bounds for the
// RollingUpdate strategy, expressed as IntOrString exactly as Kubernetes
// does (absolute count or percentage of spec.replicas).
type RollingUpdateDeployment struct {
	MaxUnavailable *intstr.IntOrString
	MaxSurge       *intstr.IntOrString
}

// DeploymentStrategy selects and parameterizes the rollout strategy.
type DeploymentStrategy struct {
	Type          DeploymentStrategyType
	RollingUpdate *RollingUpdateDeployment
}

// DeploymentSpec is the Deployment's desired state.
type DeploymentSpec struct {
	Replicas              int32
	Selector              metav1.LabelSelector
	Template              PodTemplateSpec
	Strategy              DeploymentStrategy
	MinReadySeconds       int32
	RevisionHistoryLimit  *int32
	Paused                bool
	ProgressDeadlineSeconds *int32
}

// DeploymentStatus is the Deployment's observed state.
type DeploymentStatus struct {
	ObservedGeneration int64
	Replicas           int32
	UpdatedReplicas    int32
	ReadyReplicas      int32
	AvailableReplicas  int32
	UnavailableReplicas int32
	CollisionCount     *int32
	Conditions         []metav1.Condition
}

// Deployment is the top-level, self-healing, rolling-update-capable
// workload resource. It owns one or more ReplicaSets (one "new", any number
// "old") and never owns pods directly.
type Deployment struct {
	Meta   corev1.Metadata
	Spec   DeploymentSpec
	Status DeploymentStatus
}

func (d *Deployment) GetMetadata() *corev1.Metadata { return &d.Meta }

func (d *Deployment) DeepCopyObject() corev1.Object {
	cp := *d
	cp.Meta = deepCopyMetadata(d.Meta)
	cp.Spec.Template.Labels = cloneStringMap(d.Spec.Template.Labels)
	cp.Spec.Template.Annotations = cloneStringMap(d.Spec.Template.Annotations)
	cp.Spec.Template.Containers = append([]Container(nil), d.Spec.Template.Containers...)
	if d.Spec.RevisionHistoryLimit != nil {
		v := *d.Spec.RevisionHistoryLimit
		cp.Spec.RevisionHistoryLimit = &v
	}
	if d.Spec.ProgressDeadlineSeconds != nil {
		v := *d.Spec.ProgressDeadlineSeconds
		cp.Spec.ProgressDeadlineSeconds = &v
	}
	if d.Spec.Strategy.RollingUpdate != nil {
		ru := *d.Spec.Strategy.RollingUpdate
		cp.Spec.Strategy.RollingUpdate = &ru
	}
	if d.Status.CollisionCount != nil {
		v := *d.Status.CollisionCount
		cp.Status.CollisionCount = &v
	}
	cp.Status.Conditions = append([]metav1.Condition(nil), d.Status.Conditions...)
	return &cp
}

// HasProgressDeadline reports whether a progress deadline is configured.
// Resolves Open Question 1 (see DESIGN.md): a MaxInt32 deadline, like a nil
// one, means "no deadline", following the reference's inverted-branch
// semantics restated as a single positive predicate.
func (d *Deployment) HasProgressDeadline() bool {
	return d.Spec.ProgressDeadlineSeconds != nil && *d.Spec.ProgressDeadlineSeconds != 1<<31-1
}
