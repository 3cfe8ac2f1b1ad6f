package controllers

import (
	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/resources"
)

// stepNode implements §4.4: a Node controller joins the cluster once
// (ControllerJoin, then NodeJoin with its reported capacity if its Node
// resource does not exist yet), then emits RunPod for every pod bound to
// it that local.Running has not already seen. The running set is this
// controller-id's exclusive local state; nothing else reads or writes it.
func stepNode(c Controller, view *resources.View, local LocalState) (*action.Action, LocalState) {
	if !view.HasJoined(c.ID) {
		return &action.Action{Kind: action.ControllerJoin, ControllerID: c.ID}, local
	}
	if !view.Nodes.Has(c.ID) {
		return &action.Action{
			Kind:         action.NodeJoin,
			ControllerID: c.ID,
			NodeCapacity: c.NodeCapacity,
		}, local
	}

	if local.Running == nil {
		local.Running = make(map[string]bool)
	}
	for _, pod := range view.Pods.List() {
		if pod.Spec.NodeName != c.ID {
			continue
		}
		if local.Running[pod.Meta.Name] {
			continue
		}
		next := local
		next.Running = cloneRunningSet(local.Running)
		next.Running[pod.Meta.Name] = true
		return &action.Action{Kind: action.RunPod, Pod: pod, NodeName: c.ID}, next
	}
	return action.NoAction, local
}

func cloneRunningSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
