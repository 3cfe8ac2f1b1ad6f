package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/resources"
)

// handlePods implements list/get/create/put/delete for
// /api/v1/namespaces/{ns}/pods[/{name}].
func (s *Server) handlePods(w http.ResponseWriter, r *http.Request, ns string, rest []string) {
	view := s.currentView()
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		items := make([]interface{}, 0)
		for _, p := range view.Pods.List() {
			if p.Meta.Namespace == ns {
				items = append(items, s.wrap(podGVKR, p, p.Spec, p.Status))
			}
		}
		writeJSON(w, http.StatusOK, list{APIVersion: podGVKR.APIVersion(), Kind: "PodList", Items: items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var pod resources.Pod
		if !decodeBody(w, r, &pod) {
			return
		}
		pod.Meta.Namespace = ns
		s.commit(w, &action.Action{Kind: action.CreatePod, Pod: &pod})

	case len(rest) == 1 && r.Method == http.MethodGet:
		pod, ok := view.Pods.Get(rest[0])
		if !ok || pod.Meta.Namespace != ns {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, s.wrap(podGVKR, pod, pod.Spec, pod.Status))

	case len(rest) == 1 && r.Method == http.MethodPut:
		var pod resources.Pod
		if !decodeBody(w, r, &pod) {
			return
		}
		pod.Meta.Namespace = ns
		s.commit(w, &action.Action{Kind: action.UpdatePod, Pod: &pod})

	case len(rest) == 1 && r.Method == http.MethodDelete:
		pod, ok := view.Pods.Get(rest[0])
		if !ok || pod.Meta.Namespace != ns {
			http.NotFound(w, r)
			return
		}
		s.commit(w, &action.Action{Kind: action.SoftDeletePod, Pod: pod})

	default:
		http.NotFound(w, r)
	}
}

// handleNodes implements list/get/create/delete for
// /api/v1/namespaces/{ns}/nodes[/{name}] — nodes aren't namespace-scoped in
// a real cluster, but the route tree spec.md §6 lays out nests every kind
// under namespaces/{ns}, so ns is accepted and ignored for this kind.
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request, _ string, rest []string) {
	view := s.currentView()
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		items := make([]interface{}, 0)
		for _, n := range view.Nodes.List() {
			items = append(items, s.wrap(nodeGVKR, n, n.Spec, n.Status))
		}
		writeJSON(w, http.StatusOK, list{APIVersion: nodeGVKR.APIVersion(), Kind: "NodeList", Items: items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var node resources.Node
		if !decodeBody(w, r, &node) {
			return
		}
		s.commit(w, &action.Action{Kind: action.NodeJoin, ControllerID: node.Meta.Name, NodeCapacity: node.Status.Capacity})

	case len(rest) == 1 && r.Method == http.MethodGet:
		n, ok := view.Nodes.Get(rest[0])
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, s.wrap(nodeGVKR, n, n.Spec, n.Status))

	case len(rest) == 1 && r.Method == http.MethodDelete:
		if _, ok := view.Nodes.Get(rest[0]); !ok {
			http.NotFound(w, r)
			return
		}
		s.commit(w, &action.Action{Kind: action.NodeCrash, ControllerID: rest[0]})

	default:
		http.NotFound(w, r)
	}
}

// handleDeployments implements list/get/create/put/delete plus the
// /scale subresource (PUT or PATCH) for
// /apis/apps/v1/namespaces/{ns}/deployments[/{name}[/scale]].
func (s *Server) handleDeployments(w http.ResponseWriter, r *http.Request, ns string, rest []string) {
	view := s.currentView()
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		items := make([]interface{}, 0)
		for _, d := range view.Deployments.List() {
			if d.Meta.Namespace == ns {
				items = append(items, s.wrap(deploymentGVKR, d, d.Spec, d.Status))
			}
		}
		writeJSON(w, http.StatusOK, list{APIVersion: deploymentGVKR.APIVersion(), Kind: "DeploymentList", Items: items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var dep resources.Deployment
		if !decodeBody(w, r, &dep) {
			return
		}
		dep.Meta.Namespace = ns
		s.commitCreate(w, func(v *resources.View) error {
			_, err := v.Deployments.Create(&dep, v.Revision)
			return err
		})

	case len(rest) == 1 && r.Method == http.MethodGet:
		dep, ok := view.Deployments.Get(rest[0])
		if !ok || dep.Meta.Namespace != ns {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, s.wrap(deploymentGVKR, dep, dep.Spec, dep.Status))

	case len(rest) == 1 && r.Method == http.MethodPut:
		var dep resources.Deployment
		if !decodeBody(w, r, &dep) {
			return
		}
		dep.Meta.Namespace = ns
		s.commit(w, &action.Action{Kind: action.UpdateDeployment, Deployment: &dep})

	case len(rest) == 1 && r.Method == http.MethodDelete:
		dep, ok := view.Deployments.Get(rest[0])
		if !ok || dep.Meta.Namespace != ns {
			http.NotFound(w, r)
			return
		}
		// There is no dedicated delete action for deployments in the action
		// taxonomy (controllers only ever update them); the closest
		// user-facing equivalent is scaling to zero and letting the
		// Deployment controller tear down its ReplicaSets on later ticks.
		cp := dep.DeepCopyObject().(*resources.Deployment)
		cp.Spec.Replicas = 0
		s.commit(w, &action.Action{Kind: action.UpdateDeployment, Deployment: cp})

	case len(rest) == 2 && rest[1] == "scale" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		dep, ok := view.Deployments.Get(rest[0])
		if !ok || dep.Meta.Namespace != ns {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Spec struct {
				Replicas int32 `json:"replicas"`
			} `json:"spec"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		cp := dep.DeepCopyObject().(*resources.Deployment)
		cp.Spec.Replicas = body.Spec.Replicas
		s.commit(w, &action.Action{Kind: action.UpdateDeployment, Deployment: cp})

	default:
		http.NotFound(w, r)
	}
}

// handleReplicaSets implements list/get/delete for
// /apis/apps/v1/namespaces/{ns}/replicasets[/{name}] — replica sets are
// normally only ever written by the Deployment and ReplicaSet controllers, so
// no create/put route is exposed, matching the real apiserver's "you can
// read and delete these, the controller owns writing them" posture.
func (s *Server) handleReplicaSets(w http.ResponseWriter, r *http.Request, ns string, rest []string) {
	view := s.currentView()
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		items := make([]interface{}, 0)
		for _, rs := range view.ReplicaSets.List() {
			if rs.Meta.Namespace == ns {
				items = append(items, s.wrap(replicaSetGVKR, rs, rs.Spec, rs.Status))
			}
		}
		writeJSON(w, http.StatusOK, list{APIVersion: replicaSetGVKR.APIVersion(), Kind: "ReplicaSetList", Items: items})

	case len(rest) == 1 && r.Method == http.MethodGet:
		rs, ok := view.ReplicaSets.Get(rest[0])
		if !ok || rs.Meta.Namespace != ns {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, s.wrap(replicaSetGVKR, rs, rs.Spec, rs.Status))

	case len(rest) == 1 && r.Method == http.MethodDelete:
		rs, ok := view.ReplicaSets.Get(rest[0])
		if !ok || rs.Meta.Namespace != ns {
			http.NotFound(w, r)
			return
		}
		s.commit(w, &action.Action{Kind: action.DeleteReplicaSet, ReplicaSet: rs})

	default:
		http.NotFound(w, r)
	}
}

// handleStatefulSets implements list/get/create/put for
// /apis/apps/v1/namespaces/{ns}/statefulsets[/{name}].
func (s *Server) handleStatefulSets(w http.ResponseWriter, r *http.Request, ns string, rest []string) {
	view := s.currentView()
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		items := make([]interface{}, 0)
		for _, sts := range view.StatefulSets.List() {
			if sts.Meta.Namespace == ns {
				items = append(items, s.wrap(statefulSetGVKR, sts, sts.Spec, sts.Status))
			}
		}
		writeJSON(w, http.StatusOK, list{APIVersion: statefulSetGVKR.APIVersion(), Kind: "StatefulSetList", Items: items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var sts resources.StatefulSet
		if !decodeBody(w, r, &sts) {
			return
		}
		sts.Meta.Namespace = ns
		s.commitCreate(w, func(v *resources.View) error {
			_, err := v.StatefulSets.Create(&sts, v.Revision)
			return err
		})

	case len(rest) == 1 && r.Method == http.MethodGet:
		sts, ok := view.StatefulSets.Get(rest[0])
		if !ok || sts.Meta.Namespace != ns {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, s.wrap(statefulSetGVKR, sts, sts.Spec, sts.Status))

	case len(rest) == 1 && r.Method == http.MethodPut:
		var sts resources.StatefulSet
		if !decodeBody(w, r, &sts) {
			return
		}
		sts.Meta.Namespace = ns
		s.commit(w, &action.Action{Kind: action.UpdateStatefulSet, StatefulSet: &sts})

	default:
		http.NotFound(w, r)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
