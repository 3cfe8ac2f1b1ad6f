package resources

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/corev1"
)

// StatefulSetSpec is the StatefulSet's desired state. Pods are named
// "{name}-{ordinal}" and must exist as a contiguous [0..replicas) prefix.
type StatefulSetSpec struct {
	Replicas             int32
	Selector             metav1.LabelSelector
	Template             PodTemplateSpec
	ServiceName          string
	VolumeClaimTemplates []PersistentVolumeClaim
}

// StatefulSetStatus is the StatefulSet's observed state.
type StatefulSetStatus struct {
	Replicas           int32
	ReadyReplicas      int32
	AvailableReplicas  int32
	CurrentReplicas    int32
	ObservedGeneration int64
}

// StatefulSet maintains an ordinal-prefix set of uniquely-named,
// individually-addressable pods.
type StatefulSet struct {
	Meta   corev1.Metadata
	Spec   StatefulSetSpec
	Status StatefulSetStatus
}

func (s *StatefulSet) GetMetadata() *corev1.Metadata { return &s.Meta }

func (s *StatefulSet) DeepCopyObject() corev1.Object {
	cp := *s
	cp.Meta = deepCopyMetadata(s.Meta)
	cp.Spec.Template.Labels = cloneStringMap(s.Spec.Template.Labels)
	cp.Spec.Template.Annotations = cloneStringMap(s.Spec.Template.Annotations)
	cp.Spec.Template.Containers = append([]Container(nil), s.Spec.Template.Containers...)
	cp.Spec.VolumeClaimTemplates = append([]PersistentVolumeClaim(nil), s.Spec.VolumeClaimTemplates...)
	return &cp
}
