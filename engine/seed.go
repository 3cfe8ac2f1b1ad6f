package engine

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/history"
	"github.com/controlplane/simkube/resources"
)

// Fixture is the YAML shape a scenario file (spec.md §8 "Concrete
// scenarios") is loaded from: one list per resource kind, each element
// unmarshalled straight into the corresponding typed resource via
// sigs.k8s.io/yaml's JSON-tag-free, case-insensitive field matching —
// there is no bespoke fixture format, just the same resource structs the
// engine already operates on.
type Fixture struct {
	Nodes        []resources.Node        `json:"nodes"`
	Pods         []resources.Pod         `json:"pods"`
	ReplicaSets  []resources.ReplicaSet  `json:"replicaSets"`
	Deployments  []resources.Deployment  `json:"deployments"`
	StatefulSets []resources.StatefulSet `json:"statefulSets"`
	Jobs         []resources.Job         `json:"jobs"`
}

// LoadFixture reads and parses a scenario file from path.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("seed: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("seed: parse %s: %w", path, err)
	}
	return f, nil
}

// Seed commits every resource in f as a single Change against h, returning
// the revision it landed at. Each resource goes through the ordinary
// Create path (store.Resources[T].Create), so uid/generation/
// resourceVersion/creationTimestamp defaulting behaves identically to a
// controller-issued CreateX action (spec.md §3 "Lifecycle: Created").
func Seed(h history.History, f Fixture) (corev1.Revision, error) {
	rev, ok, err := h.Add(h.MaxRevision(), func(v *resources.View) error {
		for i := range f.Nodes {
			if _, err := v.Nodes.Create(&f.Nodes[i], v.Revision); err != nil {
				return err
			}
		}
		for i := range f.Pods {
			if _, err := v.Pods.Create(&f.Pods[i], v.Revision); err != nil {
				return err
			}
		}
		for i := range f.ReplicaSets {
			if _, err := v.ReplicaSets.Create(&f.ReplicaSets[i], v.Revision); err != nil {
				return err
			}
		}
		for i := range f.Deployments {
			if _, err := v.Deployments.Create(&f.Deployments[i], v.Revision); err != nil {
				return err
			}
		}
		for i := range f.StatefulSets {
			if _, err := v.StatefulSets.Create(&f.StatefulSets[i], v.Revision); err != nil {
				return err
			}
		}
		for i := range f.Jobs {
			if _, err := v.Jobs.Create(&f.Jobs[i], v.Revision); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return rev, fmt.Errorf("seed: %w", err)
	}
	if !ok {
		return rev, fmt.Errorf("seed: rejected")
	}
	return rev, nil
}
