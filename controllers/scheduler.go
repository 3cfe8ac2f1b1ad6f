package controllers

import (
	"sort"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/resources"
)

// stepScheduler implements §4.3: for each unscheduled pod, pick the
// least-loaded node (by resident pod count, tie-broken by name) whose
// remaining capacity (capacity minus resident pods' requests) covers the
// pod's requests, and emit exactly one SchedulePod. Produces no action
// when no pod fits anywhere; the scheduler does not retry on its own.
func stepScheduler(view *resources.View, local LocalState) (*action.Action, LocalState) {
	type candidate struct {
		node *resources.Node
		pods []*resources.Pod
	}

	nodes := view.Nodes.List()
	podsByNode := make(map[string][]*resources.Pod, len(nodes))
	for _, pod := range view.Pods.List() {
		if pod.Spec.NodeName != "" {
			podsByNode[pod.Spec.NodeName] = append(podsByNode[pod.Spec.NodeName], pod)
		}
	}

	candidates := make([]candidate, 0, len(nodes))
	for _, n := range nodes {
		candidates = append(candidates, candidate{node: n, pods: podsByNode[n.Meta.Name]})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].pods) != len(candidates[j].pods) {
			return len(candidates[i].pods) < len(candidates[j].pods)
		}
		return candidates[i].node.Meta.Name < candidates[j].node.Meta.Name
	})

	for _, pod := range view.Pods.List() {
		if pod.Spec.NodeName != "" {
			continue
		}
		requests := podRequests(pod)
		for _, cand := range candidates {
			if !tolerates(pod.Spec.Tolerations, cand.node.Spec.Taints) {
				continue
			}
			remaining := cloneResourceList(cand.node.Status.Capacity)
			for _, resident := range cand.pods {
				subtractInto(remaining, podRequests(resident))
			}
			if fits(remaining, requests) {
				return &action.Action{
					Kind:     action.SchedulePod,
					PodName:  pod.Meta.Name,
					NodeName: cand.node.Meta.Name,
				}, local
			}
		}
	}
	return action.NoAction, local
}

func podRequests(p *resources.Pod) resources.ResourceList {
	total := make(resources.ResourceList)
	for _, c := range p.Spec.Containers {
		for name, qty := range c.Requests {
			sum := total[name]
			sum.Add(qty)
			total[name] = sum
		}
	}
	return total
}

func subtractInto(remaining resources.ResourceList, used resources.ResourceList) {
	for name, qty := range used {
		r := remaining[name]
		r.Sub(qty)
		remaining[name] = r
	}
}

// fits reports whether remaining covers requests component-wise; a
// resource dimension requests needs but remaining never reports is treated
// as zero capacity (the pod cannot fit).
func fits(remaining resources.ResourceList, requests resources.ResourceList) bool {
	for name, want := range requests {
		have, ok := remaining[name]
		if !ok || have.Cmp(want) < 0 {
			return false
		}
	}
	return true
}

// tolerates reports whether every taint on the node is tolerated by some
// toleration on the pod.
func tolerates(tolerations []resources.Toleration, taints []resources.Taint) bool {
	for _, taint := range taints {
		matched := false
		for _, tol := range tolerations {
			if tol.Key != taint.Key {
				continue
			}
			if tol.Effect != "" && tol.Effect != taint.Effect {
				continue
			}
			if tol.Operator == "Exists" || tol.Value == taint.Value {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
