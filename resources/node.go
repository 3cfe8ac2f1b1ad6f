package resources

import "github.com/controlplane/simkube/corev1"

// NodeSpec is the node's desired state: the taints it repels pods with.
type NodeSpec struct {
	Taints []Taint
}

// NodeStatus is the node's observed state.
type NodeStatus struct {
	Capacity    ResourceList
	Allocatable ResourceList
	Ready       bool
}

// Node is the scheduling target managed by the Node controller and read by
// the Scheduler controller.
type Node struct {
	Meta   corev1.Metadata
	Spec   NodeSpec
	Status NodeStatus
}

func (n *Node) GetMetadata() *corev1.Metadata { return &n.Meta }

func (n *Node) DeepCopyObject() corev1.Object {
	cp := *n
	cp.Meta = deepCopyMetadata(n.Meta)
	cp.Spec.Taints = append([]Taint(nil), n.Spec.Taints...)
	cp.Status.Capacity = cloneResourceList(n.Status.Capacity)
	cp.Status.Allocatable = cloneResourceList(n.Status.Allocatable)
	return &cp
}

func cloneResourceList(rl ResourceList) ResourceList {
	if rl == nil {
		return nil
	}
	out := make(ResourceList, len(rl))
	for k, v := range rl {
		out[k] = v.DeepCopy()
	}
	return out
}
