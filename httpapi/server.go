package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/engine"
	"github.com/controlplane/simkube/history"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

// Server serves the route tree spec.md §6 describes against a single
// History. It holds no resource state of its own — every request reads or
// writes straight through to History.
type Server struct {
	History history.History
	Clock   store.Clock
	mux     *http.ServeMux
}

// NewServer builds a Server with every route registered and ready to
// mount under http.Handle("/", srv) or inside a larger mux.
func NewServer(h history.History, clock store.Clock) *Server {
	s := &Server{History: h, Clock: clock, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/apis", s.handleAPIGroups)
	s.mux.HandleFunc("/api/v1", s.handleCoreDiscovery)
	s.mux.HandleFunc("/apis/apps/v1", s.handleAppsDiscovery)

	s.mux.HandleFunc("/api/v1/namespaces/", s.dispatchCore)
	s.mux.HandleFunc("/apis/apps/v1/namespaces/", s.dispatchApps)
}

// --- discovery -------------------------------------------------------

type apiGroupList struct {
	Kind  string `json:"kind"`
	Groups []struct {
		Name             string `json:"name"`
		PreferredVersion struct {
			GroupVersion string `json:"groupVersion"`
			Version      string `json:"version"`
		} `json:"preferredVersion"`
	} `json:"groups"`
}

func (s *Server) handleAPIGroups(w http.ResponseWriter, _ *http.Request) {
	var groups apiGroupList
	groups.Kind = "APIGroupList"
	groups.Groups = append(groups.Groups, struct {
		Name             string `json:"name"`
		PreferredVersion struct {
			GroupVersion string `json:"groupVersion"`
			Version      string `json:"version"`
		} `json:"preferredVersion"`
	}{Name: "apps"})
	groups.Groups[0].PreferredVersion.GroupVersion = "apps/v1"
	groups.Groups[0].PreferredVersion.Version = "v1"
	writeJSON(w, http.StatusOK, groups)
}

type apiResourceList struct {
	Kind         string         `json:"kind"`
	GroupVersion string         `json:"groupVersion"`
	Resources    []apiResource  `json:"resources"`
}

type apiResource struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Namespaced bool   `json:"namespaced"`
}

func (s *Server) handleCoreDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apiResourceList{
		Kind:         "APIResourceList",
		GroupVersion: "v1",
		Resources: []apiResource{
			{Name: podGVKR.Resource, Kind: podGVKR.Kind, Namespaced: true},
			{Name: nodeGVKR.Resource, Kind: nodeGVKR.Kind, Namespaced: true},
		},
	})
}

func (s *Server) handleAppsDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apiResourceList{
		Kind:         "APIResourceList",
		GroupVersion: "apps/v1",
		Resources: []apiResource{
			{Name: deploymentGVKR.Resource, Kind: deploymentGVKR.Kind, Namespaced: true},
			{Name: replicaSetGVKR.Resource, Kind: replicaSetGVKR.Kind, Namespaced: true},
			{Name: statefulSetGVKR.Resource, Kind: statefulSetGVKR.Kind, Namespaced: true},
		},
	})
}

// --- routing -----------------------------------------------------------

// path is "{ns}/{resource}[/{name}[/scale]]" once the prefix (which ends
// in "namespaces/") is stripped.
func splitPath(prefix string, r *http.Request) []string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func (s *Server) dispatchCore(w http.ResponseWriter, r *http.Request) {
	parts := splitPath("/api/v1/namespaces/", r)
	if len(parts) < 2 {
		http.NotFound(w, r)
		return
	}
	ns, resource, rest := parts[0], parts[1], parts[2:]
	switch resource {
	case podGVKR.Resource:
		s.handlePods(w, r, ns, rest)
	case nodeGVKR.Resource:
		s.handleNodes(w, r, ns, rest)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) dispatchApps(w http.ResponseWriter, r *http.Request) {
	parts := splitPath("/apis/apps/v1/namespaces/", r)
	if len(parts) < 2 {
		http.NotFound(w, r)
		return
	}
	ns, resource, rest := parts[0], parts[1], parts[2:]
	switch resource {
	case deploymentGVKR.Resource:
		s.handleDeployments(w, r, ns, rest)
	case replicaSetGVKR.Resource:
		s.handleReplicaSets(w, r, ns, rest)
	case statefulSetGVKR.Resource:
		s.handleStatefulSets(w, r, ns, rest)
	default:
		http.NotFound(w, r)
	}
}

// --- shared helpers ------------------------------------------------------

func (s *Server) currentView() *resources.View {
	view, _ := s.History.StateAt(s.History.MaxRevision())
	return view
}

// commit applies act against the engine and writes the HTTP response for
// the three error kinds spec.md §7 says are user-visible: NoOp -> 204,
// InvalidAction -> 4xx, everything else -> 500 (a programming error
// internally, §7's "fatal at the boundary" framing stretched to cover the
// other sentinels since none of StaleWrite/UidMismatch/NameCollision/
// TerminatingViolation should ever reach an HTTP client that read current
// state immediately beforehand).
func (s *Server) commit(w http.ResponseWriter, act *action.Action) {
	now := s.Clock.Now()
	_, ok, err := s.History.Add(s.History.MaxRevision(), engine.Mutate(act, now))
	switch {
	case errors.Is(err, store.ErrInvalidAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNoOp):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case !ok:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeStatus(w, http.StatusOK, "Success")
	}
}

// commitCreate runs mutate directly against the store, bypassing the
// action/Apply path. Deployments and StatefulSets have no CreateX entry in
// the action taxonomy (spec.md §6) — a controller never originates one,
// only a client submitting a brand-new workload does — so their initial
// creation goes straight through store.Resources[T].Create the way a
// fixture load does, not through an action a controller could also emit.
func (s *Server) commitCreate(w http.ResponseWriter, mutate history.Mutator) {
	_, ok, err := s.History.Add(s.History.MaxRevision(), mutate)
	switch {
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case !ok:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeStatus(w, http.StatusOK, "Success")
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// status mirrors Kubernetes' metav1.Status, used for delete responses.
type status struct {
	Kind       string `json:"kind"`
	APIVersion string `json:"apiVersion"`
	Status     string `json:"status"`
}

func writeStatus(w http.ResponseWriter, code int, s string) {
	writeJSON(w, code, status{Kind: "Status", APIVersion: "v1", Status: s})
}

// wrappedMeta is the metadata block every response envelope carries,
// matching the apiVersion/kind/metadata.resourceVersion shape spec.md §6
// describes.
type wrappedMeta struct {
	Name            string `json:"name"`
	Namespace       string `json:"namespace"`
	ResourceVersion string `json:"resourceVersion"`
}

type envelope struct {
	APIVersion string      `json:"apiVersion"`
	Kind       string      `json:"kind"`
	Metadata   wrappedMeta `json:"metadata"`
	Spec       interface{} `json:"spec,omitempty"`
	Status     interface{} `json:"status,omitempty"`
}

// wrap adds apiVersion/kind/resourceVersion around obj's spec/status the
// way every response body spec.md §6 describes does, without requiring
// every typed resource to carry its own apiVersion/kind fields.
func (s *Server) wrap(g gvkr, obj corev1.Object, spec, objStatus interface{}) envelope {
	m := obj.GetMetadata()
	return envelope{
		APIVersion: g.APIVersion(),
		Kind:       g.Kind,
		Metadata: wrappedMeta{
			Name:            m.Name,
			Namespace:       m.Namespace,
			ResourceVersion: s.History.MaxRevision().String(),
		},
		Spec:   spec,
		Status: objStatus,
	}
}

type list struct {
	APIVersion string        `json:"apiVersion"`
	Kind       string        `json:"kind"`
	Items      []interface{} `json:"items"`
}
