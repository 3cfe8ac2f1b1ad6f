// Package resources defines the typed resource kinds (Pod, ReplicaSet,
// Deployment, StatefulSet, Job, Node, ControllerRevision,
// PersistentVolumeClaim) and the StateView snapshot that joins one
// Resources[T] collection per kind at a single revision.
package resources

import (
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/corev1"
)

// ResourceName names a resource dimension tracked by the scheduler and
// node capacity bookkeeping (e.g. "cpu", "memory").
type ResourceName string

const (
	ResourceCPU    ResourceName = "cpu"
	ResourceMemory ResourceName = "memory"
)

// ResourceList is a named set of resource quantities, e.g. a pod's
// requests or a node's capacity.
type ResourceList map[ResourceName]resource.Quantity

// PodTemplateSpec is the embeddable template ReplicaSet/Deployment/
// StatefulSet/Job stamp out pods from.
type PodTemplateSpec struct {
	Labels      map[string]string
	Annotations map[string]string
	Containers  []Container
	NodeName    string // only meaningful for already-scheduled clones
}

// Container is a minimal container spec: enough to compute resource
// requests and match podFailurePolicy exit codes against, without modeling
// execution.
type Container struct {
	Name     string
	Image    string
	Requests ResourceList
}

// PodPhase mirrors the Kubernetes pod phase enum.
type PodPhase string

const (
	PodPending   PodPhase = "Pending"
	PodRunning   PodPhase = "Running"
	PodSucceeded PodPhase = "Succeeded"
	PodFailed    PodPhase = "Failed"
	PodUnknown   PodPhase = "Unknown"
)

// Toleration mirrors the subset of Kubernetes toleration matching the
// scheduler needs: effect/key/value equality against a node taint.
type Toleration struct {
	Key      string
	Value    string
	Effect   string
	Operator string // "Equal" (default) or "Exists"
}

// Taint is a node-side repellent a pod must tolerate to be scheduled there.
type Taint struct {
	Key    string
	Value  string
	Effect string
}

// ContainerStatus records a single container's last known termination, used
// by the Job controller's podFailurePolicy onExitCodes matching.
type ContainerStatus struct {
	Name     string
	ExitCode *int32
}

// PodSpec is the pod's desired state.
type PodSpec struct {
	NodeName   string
	Containers []Container
	Tolerations []Toleration
}

// PodStatus is the pod's observed state.
type PodStatus struct {
	Phase             PodPhase
	Conditions        []metav1.Condition
	ContainerStatuses []ContainerStatus
}

// Pod is the leaf resource every controller ultimately manages.
type Pod struct {
	Meta   corev1.Metadata
	Spec   PodSpec
	Status PodStatus
}

func (p *Pod) GetMetadata() *corev1.Metadata { return &p.Meta }

func (p *Pod) DeepCopyObject() corev1.Object {
	cp := *p
	cp.Meta = deepCopyMetadata(p.Meta)
	cp.Spec.Containers = append([]Container(nil), p.Spec.Containers...)
	cp.Spec.Tolerations = append([]Toleration(nil), p.Spec.Tolerations...)
	cp.Status.Conditions = append([]metav1.Condition(nil), p.Status.Conditions...)
	cp.Status.ContainerStatuses = append([]ContainerStatus(nil), p.Status.ContainerStatuses...)
	return &cp
}

// IsActive reports whether the pod is neither finished nor being deleted —
// the "owned, active pod" notion used throughout §4.5/§4.8.
func (p *Pod) IsActive() bool {
	return p.Status.Phase != PodSucceeded && p.Status.Phase != PodFailed && !p.Meta.IsTerminating()
}

// IsReady reports whether the pod carries a True "Ready" condition.
func (p *Pod) IsReady() bool {
	for _, c := range p.Status.Conditions {
		if c.Type == "Ready" {
			return c.Status == metav1.ConditionTrue
		}
	}
	return false
}

func deepCopyMetadata(m corev1.Metadata) corev1.Metadata {
	cp := m
	if m.DeletionTimestamp != nil {
		t := *m.DeletionTimestamp
		cp.DeletionTimestamp = &t
	}
	cp.Labels = cloneStringMap(m.Labels)
	cp.Annotations = cloneStringMap(m.Annotations)
	cp.Finalizers = append([]string(nil), m.Finalizers...)
	cp.OwnerReferences = append([]corev1.OwnerReference(nil), m.OwnerReferences...)
	return cp
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
