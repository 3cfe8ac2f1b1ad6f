// Package store implements the generic name-unique resource collection
// and the sentinel errors it reports. The ControllerAction taxonomy lives
// in package action and the History variants in package history.
package store

import (
	"fmt"
	"sort"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"

	"github.com/controlplane/simkube/corev1"
)

// Clock abstracts wall-clock reads so tests can inject a deterministic
// time source instead of time.Now.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the default Clock, backed by time.Now.
var RealClock Clock = realClock{}

// Resources is a name-ordered collection of T with the uid/generation/
// resourceVersion discipline described by the resource model: name
// uniqueness, monotonic resourceVersion, and generation bumps on spec or
// identity-relevant metadata changes.
type Resources[T corev1.Object] struct {
	byName map[string]T
	clock  Clock
}

// NewResources constructs an empty collection using the given clock (pass
// store.RealClock outside tests).
func NewResources[T corev1.Object](clock Clock) *Resources[T] {
	return &Resources[T]{byName: make(map[string]T), clock: clock}
}

// Create inserts obj, failing with ErrNameCollision if the name is taken.
// It defaults uid (to rev's string form, unless already set), namespace,
// generation, creationTimestamp, and resourceVersion.
func (r *Resources[T]) Create(obj T, rev corev1.Revision) (T, error) {
	var zero T
	meta := obj.GetMetadata()
	if _, exists := r.byName[meta.Name]; exists {
		return zero, fmt.Errorf("create %q: %w", meta.Name, ErrNameCollision)
	}
	if meta.UID == "" {
		meta.UID = types.UID(rev.String())
	}
	if meta.Namespace == "" {
		meta.Namespace = "default"
	}
	if meta.Generation == 0 {
		meta.Generation = 1
	}
	if meta.CreationTimestamp.IsZero() {
		meta.CreationTimestamp = metav1.NewTime(r.clock.Now())
	}
	meta.ResourceVersion = rev.String()
	r.byName[meta.Name] = obj
	return obj, nil
}

// Update replaces the stored object with obj, failing with ErrUIDMismatch
// if obj's uid does not match the stored object's, ErrStaleWrite if obj's
// resourceVersion predates the stored object's, or
// ErrTerminatingViolation if the stored object is terminating and obj
// changes anything beyond its finalizer set. On success, generation is
// bumped iff spec-relevant fields changed, and resourceVersion is set to
// rev.
func (r *Resources[T]) Update(obj T, rev corev1.Revision, specChanged bool) (T, error) {
	var zero T
	meta := obj.GetMetadata()
	existing, ok := r.byName[meta.Name]
	if !ok {
		return zero, fmt.Errorf("update %q: %w", meta.Name, ErrNotFound)
	}
	existingMeta := existing.GetMetadata()
	if existingMeta.UID != meta.UID {
		return zero, fmt.Errorf("update %q: %w", meta.Name, ErrUIDMismatch)
	}
	if compareResourceVersion(meta.ResourceVersion, existingMeta.ResourceVersion) < 0 {
		return zero, fmt.Errorf("update %q: %w", meta.Name, ErrStaleWrite)
	}
	if existingMeta.IsTerminating() && (specChanged || !onlyFinalizersDiffer(existingMeta, meta)) {
		return zero, fmt.Errorf("update %q: %w", meta.Name, ErrTerminatingViolation)
	}
	if specChanged || metadataIdentityChanged(existingMeta, meta) {
		meta.Generation = existingMeta.Generation + 1
	} else {
		meta.Generation = existingMeta.Generation
	}
	meta.ResourceVersion = rev.String()
	r.byName[meta.Name] = obj
	return obj, nil
}

// Remove deletes the object named by obj's metadata, failing with
// ErrUIDMismatch if the stored object's uid differs, or ErrNotFound if no
// object with that name exists. Returns the removed object.
func (r *Resources[T]) Remove(obj T) (T, error) {
	var zero T
	meta := obj.GetMetadata()
	existing, ok := r.byName[meta.Name]
	if !ok {
		return zero, fmt.Errorf("remove %q: %w", meta.Name, ErrNotFound)
	}
	if meta.UID != "" && existing.GetMetadata().UID != meta.UID {
		return zero, fmt.Errorf("remove %q: %w", meta.Name, ErrUIDMismatch)
	}
	delete(r.byName, meta.Name)
	return existing, nil
}

// Get returns the object named name, if present.
func (r *Resources[T]) Get(name string) (T, bool) {
	obj, ok := r.byName[name]
	return obj, ok
}

// Has reports whether an object named name exists.
func (r *Resources[T]) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// List returns every object, ordered by name.
func (r *Resources[T]) List() []T {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]T, len(names))
	for i, n := range names {
		out[i] = r.byName[n]
	}
	return out
}

// Len returns the number of objects in the collection.
func (r *Resources[T]) Len() int {
	return len(r.byName)
}

// ForController returns every object whose controller owner reference
// matches uid, ordered by name.
func (r *Resources[T]) ForController(uid types.UID) []T {
	var out []T
	for _, obj := range r.List() {
		if obj.GetMetadata().IsControlledBy(uid) {
			out = append(out, obj)
		}
	}
	return out
}

// Matching returns every object whose labels satisfy sel, ordered by name.
func (r *Resources[T]) Matching(sel labels.Selector) []T {
	var out []T
	for _, obj := range r.List() {
		if sel.Matches(labels.Set(obj.GetMetadata().Labels)) {
			out = append(out, obj)
		}
	}
	return out
}

// Merge folds other into a copy of r, keeping, per name, whichever side has
// the newer resourceVersion. Used to build joined views over concurrent
// branches (Causal history).
func (r *Resources[T]) Merge(other *Resources[T]) *Resources[T] {
	out := &Resources[T]{byName: make(map[string]T, len(r.byName)+len(other.byName)), clock: r.clock}
	for name, obj := range r.byName {
		out.byName[name] = obj
	}
	for name, obj := range other.byName {
		existing, ok := out.byName[name]
		if !ok || compareResourceVersion(obj.GetMetadata().ResourceVersion, existing.GetMetadata().ResourceVersion) > 0 {
			out.byName[name] = obj
		}
	}
	return out
}

// Clone returns a shallow copy of the collection (same object values, new
// backing map) suitable as the basis for a new StateView snapshot.
func (r *Resources[T]) Clone() *Resources[T] {
	out := &Resources[T]{byName: make(map[string]T, len(r.byName)), clock: r.clock}
	for name, obj := range r.byName {
		out.byName[name] = obj.DeepCopyObject().(T)
	}
	return out
}

func onlyFinalizersDiffer(a, b *corev1.Metadata) bool {
	cp := *a
	cp.Finalizers = b.Finalizers
	cp.ResourceVersion = b.ResourceVersion
	return metadataEqualIgnoringResourceVersion(&cp, b)
}

func metadataEqualIgnoringResourceVersion(a, b *corev1.Metadata) bool {
	if a.Name != b.Name || a.Namespace != b.Namespace || a.UID != b.UID || a.Generation != b.Generation {
		return false
	}
	if (a.DeletionTimestamp == nil) != (b.DeletionTimestamp == nil) {
		return false
	}
	if len(a.Finalizers) != len(b.Finalizers) {
		return false
	}
	for i := range a.Finalizers {
		if a.Finalizers[i] != b.Finalizers[i] {
			return false
		}
	}
	return mapsEqual(a.Labels, b.Labels) && mapsEqual(a.Annotations, b.Annotations)
}

func metadataIdentityChanged(a, b *corev1.Metadata) bool {
	return !mapsEqual(a.Labels, b.Labels) || !mapsEqual(a.Annotations, b.Annotations)
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// compareResourceVersion compares two revision strings using corev1's
// lexicographic Revision ordering, treating unparseable strings as
// DefaultRevision.
func compareResourceVersion(a, b string) int {
	ra, err := corev1.ParseRevision(a)
	if err != nil {
		ra = corev1.DefaultRevision()
	}
	rb, err := corev1.ParseRevision(b)
	if err != nil {
		rb = corev1.DefaultRevision()
	}
	return ra.Compare(rb)
}
