package resources

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/corev1"
)

// ReplicaSetSpec is the ReplicaSet's desired state.
type ReplicaSetSpec struct {
	Replicas        int32
	Selector        metav1.LabelSelector
	Template        PodTemplateSpec
	MinReadySeconds int32
}

// ReplicaSetStatus is the ReplicaSet's observed state.
type ReplicaSetStatus struct {
	Replicas             int32
	FullyLabeledReplicas int32
	ReadyReplicas        int32
	AvailableReplicas    int32
	ObservedGeneration   int64
	Conditions           []metav1.Condition
}

// ReplicaSetConditionReplicaFailure is the condition type the ReplicaSet
// controller sets when it cannot create or delete a pod it needs to.
const ReplicaSetConditionReplicaFailure = "ReplicaFailure"

// ReplicaSet is the pod-count-maintaining resource every Deployment
// revision and every StatefulSet-adjacent workload bottoms out at.
type ReplicaSet struct {
	Meta   corev1.Metadata
	Spec   ReplicaSetSpec
	Status ReplicaSetStatus
}

func (r *ReplicaSet) GetMetadata() *corev1.Metadata { return &r.Meta }

func (r *ReplicaSet) DeepCopyObject() corev1.Object {
	cp := *r
	cp.Meta = deepCopyMetadata(r.Meta)
	cp.Spec.Template.Labels = cloneStringMap(r.Spec.Template.Labels)
	cp.Spec.Template.Annotations = cloneStringMap(r.Spec.Template.Annotations)
	cp.Spec.Template.Containers = append([]Container(nil), r.Spec.Template.Containers...)
	cp.Status.Conditions = append([]metav1.Condition(nil), r.Status.Conditions...)
	return &cp
}
