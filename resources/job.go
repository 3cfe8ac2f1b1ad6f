package resources

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/corev1"
)

// Job annotation/label/finalizer constants, named after the reference
// controller so traced state reads the same way real Job bookkeeping does.
const (
	JobCompletionIndexAnnotation           = "batch.kubernetes.io/job-completion-index"
	JobTrackingFinalizer                   = "batch.kubernetes.io/job-tracking"
	JobNameLabel                           = "batch.kubernetes.io/job-name"
	JobControllerUIDLabel                  = "batch.kubernetes.io/controller-uid"
	JobIndexFailureCountAnnotation         = "batch.kubernetes.io/job-index-failure-count"
	JobIndexIgnoredFailureCountAnnotation  = "batch.kubernetes.io/job-index-ignored-failure-count"

	JobReasonPodFailurePolicy     = "PodFailurePolicy"
	JobReasonBackoffLimitExceeded = "BackoffLimitExceeded"
	JobReasonDeadlineExceeded     = "DeadlineExceeded"

	JobConditionComplete  = "Complete"
	JobConditionFailed    = "Failed"
	JobConditionSuspended = "Suspended"
)

// JobCompletionMode selects whether succeeded-pod tracking is by count or
// by stable completion index.
type JobCompletionMode string

const (
	NonIndexedCompletion JobCompletionMode = "NonIndexed"
	IndexedCompletion    JobCompletionMode = "Indexed"
)

// PodFailurePolicyOnExitCodesOperator selects how a rule's containerName/
// exit-code set is matched against a terminated container.
type PodFailurePolicyOnExitCodesOperator string

const (
	OpIn    PodFailurePolicyOnExitCodesOperator = "In"
	OpNotIn PodFailurePolicyOnExitCodesOperator = "NotIn"
)

// PodFailurePolicyAction is the effect applied when a rule matches.
type PodFailurePolicyAction string

const (
	ActionIgnore    PodFailurePolicyAction = "Ignore"
	ActionCount     PodFailurePolicyAction = "Count"
	ActionFailIndex PodFailurePolicyAction = "FailIndex"
	ActionFailJob   PodFailurePolicyAction = "FailJob"
)

// PodFailurePolicyOnExitCodesRequirement matches a failed container's exit
// code against a fixed set, optionally scoped to one container name.
type PodFailurePolicyOnExitCodesRequirement struct {
	ContainerName *string
	Operator      PodFailurePolicyOnExitCodesOperator
	Values        []int32
}

// PodFailurePolicyOnPodConditionsPattern matches a (type, status) pair
// present on the failed pod.
type PodFailurePolicyOnPodConditionsPattern struct {
	Type   string
	Status metav1.ConditionStatus
}

// PodFailurePolicyRule is one ordered rule in spec.podFailurePolicy.rules;
// the first matching rule wins, except that the Job controller passes a
// matching FailIndex rule on to the next rule.
type PodFailurePolicyRule struct {
	Action          PodFailurePolicyAction
	OnExitCodes     *PodFailurePolicyOnExitCodesRequirement
	OnPodConditions []PodFailurePolicyOnPodConditionsPattern
}

// PodFailurePolicy is the ordered rule set the Job controller consults
// before counting a failed pod against backoffLimit.
type PodFailurePolicy struct {
	Rules []PodFailurePolicyRule
}

// JobSpec is the Job's desired state.
type JobSpec struct {
	Selector             metav1.LabelSelector
	Template             PodTemplateSpec
	Completions          *int32
	Parallelism          int32
	BackoffLimit         int32
	ActiveDeadlineSeconds *int64
	CompletionMode       JobCompletionMode
	Suspend              bool
	PodFailurePolicy     *PodFailurePolicy
}

// UncountedTerminatedPods tracks finished pods the controller has observed
// but not yet folded into status.{succeeded,failed} — the same staging
// area the real Job controller uses to make counting idempotent under
// restarts.
type UncountedTerminatedPods struct {
	Succeeded []string
	Failed    []string
}

// JobStatus is the Job's observed state.
type JobStatus struct {
	Active                int32
	Ready                 int32
	Succeeded             int32
	Failed                int32
	StartTime             *metav1.Time
	CompletionTime        *metav1.Time
	CompletedIndexes      string // compressed interval form, e.g. "0-2,5"
	UncountedTerminatedPods UncountedTerminatedPods
	Conditions            []metav1.Condition
}

// Job runs pods to completion, optionally with a stable index per pod
// (CompletionMode=Indexed) and a pod-failure-policy-driven termination
// decision instead of plain retry-until-backoffLimit.
type Job struct {
	Meta   corev1.Metadata
	Spec   JobSpec
	Status JobStatus
}

func (j *Job) GetMetadata() *corev1.Metadata { return &j.Meta }

func (j *Job) DeepCopyObject() corev1.Object {
	cp := *j
	cp.Meta = deepCopyMetadata(j.Meta)
	cp.Spec.Template.Labels = cloneStringMap(j.Spec.Template.Labels)
	cp.Spec.Template.Annotations = cloneStringMap(j.Spec.Template.Annotations)
	cp.Spec.Template.Containers = append([]Container(nil), j.Spec.Template.Containers...)
	if j.Spec.Completions != nil {
		v := *j.Spec.Completions
		cp.Spec.Completions = &v
	}
	if j.Spec.ActiveDeadlineSeconds != nil {
		v := *j.Spec.ActiveDeadlineSeconds
		cp.Spec.ActiveDeadlineSeconds = &v
	}
	if j.Status.StartTime != nil {
		t := *j.Status.StartTime
		cp.Status.StartTime = &t
	}
	if j.Status.CompletionTime != nil {
		t := *j.Status.CompletionTime
		cp.Status.CompletionTime = &t
	}
	cp.Status.UncountedTerminatedPods.Succeeded = append([]string(nil), j.Status.UncountedTerminatedPods.Succeeded...)
	cp.Status.UncountedTerminatedPods.Failed = append([]string(nil), j.Status.UncountedTerminatedPods.Failed...)
	cp.Status.Conditions = append([]metav1.Condition(nil), j.Status.Conditions...)
	return &cp
}

// IsComplete reports whether spec.completions (if any) is satisfied by
// status.succeeded with no remaining active pods.
func (j *Job) IsComplete() bool {
	if j.Status.Active != 0 {
		return false
	}
	if j.Spec.Completions == nil {
		return j.Status.Succeeded > 0
	}
	return j.Status.Succeeded >= *j.Spec.Completions
}
