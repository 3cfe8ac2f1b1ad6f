package corev1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// OwnerReference mirrors the Kubernetes ownership record: a controller
// owner (Controller=true) is the only reference a child's claim/adopt
// logic acts on.
type OwnerReference struct {
	UID                types.UID
	Name               string
	Kind               string
	Controller         bool
	BlockOwnerDeletion bool
}

// Metadata is embedded by every typed resource and carries the identity and
// lifecycle bookkeeping fields described by the resource discipline: name
// uniqueness, uid/generation/resourceVersion invariants, finalizers, and
// ownership.
type Metadata struct {
	Name              string
	Namespace         string
	UID               types.UID
	Generation        int64
	CreationTimestamp metav1.Time
	DeletionTimestamp *metav1.Time
	ResourceVersion   string
	Labels            map[string]string
	Annotations       map[string]string
	Finalizers        []string
	OwnerReferences   []OwnerReference
}

// IsTerminating reports whether the object has been soft-deleted.
func (m *Metadata) IsTerminating() bool {
	return m.DeletionTimestamp != nil
}

// ControllerRef returns the owner reference with Controller=true, if any.
func (m *Metadata) ControllerRef() (OwnerReference, bool) {
	for _, ref := range m.OwnerReferences {
		if ref.Controller {
			return ref, true
		}
	}
	return OwnerReference{}, false
}

// IsControlledBy reports whether uid owns m via a controller reference.
func (m *Metadata) IsControlledBy(uid types.UID) bool {
	ref, ok := m.ControllerRef()
	return ok && ref.UID == uid
}

// RemoveOwnerRef drops the controller owner reference matching uid, if
// present, returning whether anything changed.
func (m *Metadata) RemoveOwnerRef(uid types.UID) bool {
	for i, ref := range m.OwnerReferences {
		if ref.Controller && ref.UID == uid {
			m.OwnerReferences = append(m.OwnerReferences[:i], m.OwnerReferences[i+1:]...)
			return true
		}
	}
	return false
}

// SetControllerRef adds a controller owner reference, replacing any
// existing controller reference (a child may only have one controller
// owner at a time).
func (m *Metadata) SetControllerRef(ref OwnerReference) {
	ref.Controller = true
	for i, existing := range m.OwnerReferences {
		if existing.Controller {
			m.OwnerReferences[i] = ref
			return
		}
	}
	m.OwnerReferences = append(m.OwnerReferences, ref)
}

// HasFinalizer reports whether name is present in the finalizer set.
func (m *Metadata) HasFinalizer(name string) bool {
	for _, f := range m.Finalizers {
		if f == name {
			return true
		}
	}
	return false
}

// AddFinalizer adds name to the finalizer set if not already present,
// returning whether it changed anything.
func (m *Metadata) AddFinalizer(name string) bool {
	if m.HasFinalizer(name) {
		return false
	}
	m.Finalizers = append(m.Finalizers, name)
	return true
}

// RemoveFinalizer removes name from the finalizer set, returning whether it
// changed anything.
func (m *Metadata) RemoveFinalizer(name string) bool {
	for i, f := range m.Finalizers {
		if f == name {
			m.Finalizers = append(m.Finalizers[:i], m.Finalizers[i+1:]...)
			return true
		}
	}
	return false
}

// Object is implemented by every typed resource so generic store code can
// manipulate Metadata without a type switch.
type Object interface {
	GetMetadata() *Metadata
	DeepCopyObject() Object
}
