package resources

import "github.com/controlplane/simkube/corev1"

// ControllerRevision snapshots a controller's template at a point in time,
// used by the Deployment controller to represent each rollout as a
// numbered revision and by StatefulSet for its update history.
type ControllerRevision struct {
	Meta     corev1.Metadata
	Revision int64
	Template PodTemplateSpec
}

func (c *ControllerRevision) GetMetadata() *corev1.Metadata { return &c.Meta }

func (c *ControllerRevision) DeepCopyObject() corev1.Object {
	cp := *c
	cp.Meta = deepCopyMetadata(c.Meta)
	cp.Template.Labels = cloneStringMap(c.Template.Labels)
	cp.Template.Annotations = cloneStringMap(c.Template.Annotations)
	cp.Template.Containers = append([]Container(nil), c.Template.Containers...)
	return &cp
}

// PersistentVolumeClaimSpec is the minimal PVC spec this system tracks:
// enough for StatefulSet volume-claim bookkeeping, not provisioning.
type PersistentVolumeClaimSpec struct {
	StorageClassName string
	Requests         ResourceList
}

// PersistentVolumeClaimStatus is the PVC's observed state.
type PersistentVolumeClaimStatus struct {
	Phase string // "Pending" | "Bound" | "Lost"
}

// PersistentVolumeClaim is tracked for StatefulSet's volumeClaimTemplates
// bookkeeping; this system does not provision real storage.
type PersistentVolumeClaim struct {
	Meta   corev1.Metadata
	Spec   PersistentVolumeClaimSpec
	Status PersistentVolumeClaimStatus
}

func (p *PersistentVolumeClaim) GetMetadata() *corev1.Metadata { return &p.Meta }

func (p *PersistentVolumeClaim) DeepCopyObject() corev1.Object {
	cp := *p
	cp.Meta = deepCopyMetadata(p.Meta)
	cp.Spec.Requests = cloneResourceList(p.Spec.Requests)
	return &cp
}
