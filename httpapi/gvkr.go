// Package httpapi is the thin, Kubernetes-compatible HTTP surface spec.md
// §6 describes: list/get/create/put/delete per kind under the conventional
// /api/v1 and /apis/apps/v1 route trees, plus the deployment scale
// subresource. It is explicitly out of core scope (§1 "external,
// referenced only by interface") — real auth, real watch streams, and
// real apiserver discovery are not attempted — but it is still real
// routing against the in-memory engine, not a stub.
package httpapi

import "k8s.io/apimachinery/pkg/runtime/schema"

// gvkr mirrors the teacher's pkg/util/gvkr.go GroupVersionKindResource,
// adapted from "resolve against a live cluster's RESTMapper" to "resolve
// against this module's fixed, compile-time-known kind set" — there is no
// real apiserver here to ask for a dynamic mapping.
type gvkr struct {
	Group    string
	Version  string
	Kind     string
	Resource string
}

func (g gvkr) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: g.Group, Version: g.Version, Kind: g.Kind}
}

func (g gvkr) APIVersion() string {
	if g.Group == "" {
		return g.Version
	}
	return g.Group + "/" + g.Version
}

var (
	podGVKR = gvkr{Version: "v1", Kind: "Pod", Resource: "pods"}
	nodeGVKR = gvkr{Version: "v1", Kind: "Node", Resource: "nodes"}
	deploymentGVKR = gvkr{Group: "apps", Version: "v1", Kind: "Deployment", Resource: "deployments"}
	replicaSetGVKR = gvkr{Group: "apps", Version: "v1", Kind: "ReplicaSet", Resource: "replicasets"}
	statefulSetGVKR = gvkr{Group: "apps", Version: "v1", Kind: "StatefulSet", Resource: "statefulsets"}
	jobGVKR = gvkr{Group: "batch", Version: "v1", Kind: "Job", Resource: "jobs"}
)
