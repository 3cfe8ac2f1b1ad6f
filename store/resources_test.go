package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/controlplane/simkube/corev1"
)

type fakeResource struct {
	Meta corev1.Metadata
	Foo  string
}

func (f *fakeResource) GetMetadata() *corev1.Metadata { return &f.Meta }
func (f *fakeResource) DeepCopyObject() corev1.Object {
	cp := *f
	return &cp
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestResources() *Resources[*fakeResource] {
	return NewResources[*fakeResource](fixedClock{t: time.Unix(0, 0)})
}

func TestResourcesCreateAssignsDefaults(t *testing.T) {
	r := newTestResources()
	obj := &fakeResource{Meta: corev1.Metadata{Name: "a"}}
	created, err := r.Create(obj, corev1.NewRevision(1))
	require.NoError(t, err)
	assert.EqualValues(t, "1", created.Meta.UID)
	assert.Equal(t, "default", created.Meta.Namespace)
	assert.Equal(t, int64(1), created.Meta.Generation)
	assert.Equal(t, "1", created.Meta.ResourceVersion)
}

func TestResourcesCreateNameCollision(t *testing.T) {
	r := newTestResources()
	_, err := r.Create(&fakeResource{Meta: corev1.Metadata{Name: "a"}}, corev1.NewRevision(1))
	require.NoError(t, err)
	_, err = r.Create(&fakeResource{Meta: corev1.Metadata{Name: "a"}}, corev1.NewRevision(2))
	assert.True(t, errors.Is(err, ErrNameCollision))
}

func TestResourcesUpdateUIDMismatch(t *testing.T) {
	r := newTestResources()
	created, err := r.Create(&fakeResource{Meta: corev1.Metadata{Name: "a"}}, corev1.NewRevision(1))
	require.NoError(t, err)
	other := created.DeepCopyObject().(*fakeResource)
	other.Meta.UID = "not-the-real-uid"
	_, err = r.Update(other, corev1.NewRevision(2), false)
	assert.True(t, errors.Is(err, ErrUIDMismatch))
}

func TestResourcesUpdateStaleWrite(t *testing.T) {
	r := newTestResources()
	created, err := r.Create(&fakeResource{Meta: corev1.Metadata{Name: "a"}}, corev1.NewRevision(1))
	require.NoError(t, err)
	_, err = r.Update(created.DeepCopyObject().(*fakeResource), corev1.NewRevision(2), true)
	require.NoError(t, err)

	stale := created.DeepCopyObject().(*fakeResource) // still carries resourceVersion "1"
	_, err = r.Update(stale, corev1.NewRevision(3), true)
	assert.True(t, errors.Is(err, ErrStaleWrite))
}

func TestResourcesUpdateGenerationBumpsOnlyOnSpecChange(t *testing.T) {
	r := newTestResources()
	created, err := r.Create(&fakeResource{Meta: corev1.Metadata{Name: "a"}}, corev1.NewRevision(1))
	require.NoError(t, err)

	unchanged := created.DeepCopyObject().(*fakeResource)
	updated, err := r.Update(unchanged, corev1.NewRevision(2), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Meta.Generation)

	changed := updated.DeepCopyObject().(*fakeResource)
	changed.Foo = "new-value"
	updated, err = r.Update(changed, corev1.NewRevision(3), true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Meta.Generation)
}

func TestResourcesUpdateTerminatingRejectsNonFinalizerChange(t *testing.T) {
	r := newTestResources()
	created, err := r.Create(&fakeResource{Meta: corev1.Metadata{Name: "a"}}, corev1.NewRevision(1))
	require.NoError(t, err)

	terminating := created.DeepCopyObject().(*fakeResource)
	deletedAt := metav1.NewTime(time.Unix(1, 0))
	terminating.Meta.DeletionTimestamp = &deletedAt
	terminating, err = r.Update(terminating, corev1.NewRevision(2), false)
	require.NoError(t, err)

	mutated := terminating.DeepCopyObject().(*fakeResource)
	mutated.Foo = "should not be allowed"
	_, err = r.Update(mutated, corev1.NewRevision(3), true)
	assert.True(t, errors.Is(err, ErrTerminatingViolation))

	okUpdate := terminating.DeepCopyObject().(*fakeResource)
	okUpdate.Meta.AddFinalizer("keep-me")
	_, err = r.Update(okUpdate, corev1.NewRevision(3), false)
	assert.NoError(t, err)
}

func TestResourcesRemoveRequiresMatchingUID(t *testing.T) {
	r := newTestResources()
	created, err := r.Create(&fakeResource{Meta: corev1.Metadata{Name: "a"}}, corev1.NewRevision(1))
	require.NoError(t, err)

	wrong := created.DeepCopyObject().(*fakeResource)
	wrong.Meta.UID = "wrong"
	_, err = r.Remove(wrong)
	assert.True(t, errors.Is(err, ErrUIDMismatch))

	_, err = r.Remove(created)
	assert.NoError(t, err)
	assert.False(t, r.Has("a"))
}
