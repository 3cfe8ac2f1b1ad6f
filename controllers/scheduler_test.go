package controllers

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
)

var _ = Describe("Scheduler", func() {
	var view *resources.View

	BeforeEach(func() {
		view = resources.NewView(corev1.NewRevision(1), fixedClock{t: time.Unix(1000, 0)})
	})

	node := func(name string, cpu string) *resources.Node {
		return &resources.Node{
			Meta: corev1.Metadata{Name: name},
			Status: resources.NodeStatus{
				Capacity: resources.ResourceList{resources.ResourceCPU: resource.MustParse(cpu)},
			},
		}
	}

	pod := func(name, cpu string) *resources.Pod {
		return &resources.Pod{
			Meta: corev1.Metadata{Name: name},
			Spec: resources.PodSpec{
				Containers: []resources.Container{{
					Name:     "c",
					Requests: resources.ResourceList{resources.ResourceCPU: resource.MustParse(cpu)},
				}},
			},
		}
	}

	When("a pod fits on the least-loaded node", func() {
		It("schedules it there", func() {
			_, err := view.Nodes.Create(node("busy", "1"), view.Revision)
			Expect(err).NotTo(HaveOccurred())
			_, err = view.Nodes.Create(node("idle", "1"), view.Revision)
			Expect(err).NotTo(HaveOccurred())
			busyPod := pod("resident", "500m")
			busyPod.Spec.NodeName = "busy"
			_, err = view.Pods.Create(busyPod, view.Revision)
			Expect(err).NotTo(HaveOccurred())
			_, err = view.Pods.Create(pod("new", "200m"), view.Revision)
			Expect(err).NotTo(HaveOccurred())

			act, _ := Step(Controller{Kind: SchedulerKind}, view, NewLocalState(SchedulerKind), time.Unix(1000, 0))

			Expect(act).NotTo(BeNil())
			Expect(act.Kind).To(Equal(action.SchedulePod))
			Expect(act.PodName).To(Equal("new"))
			Expect(act.NodeName).To(Equal("idle"))
		})
	})

	When("no node has room", func() {
		It("produces no action", func() {
			_, err := view.Nodes.Create(node("only", "100m"), view.Revision)
			Expect(err).NotTo(HaveOccurred())
			_, err = view.Pods.Create(pod("big", "1"), view.Revision)
			Expect(err).NotTo(HaveOccurred())

			act, _ := Step(Controller{Kind: SchedulerKind}, view, NewLocalState(SchedulerKind), time.Unix(1000, 0))

			Expect(act).To(Equal(action.NoAction))
		})
	})

	When("a taint is not tolerated", func() {
		It("skips that node even if it has capacity", func() {
			tainted := node("tainted", "1")
			tainted.Spec.Taints = []resources.Taint{{Key: "dedicated", Value: "gpu", Effect: "NoSchedule"}}
			_, err := view.Nodes.Create(tainted, view.Revision)
			Expect(err).NotTo(HaveOccurred())
			_, err = view.Pods.Create(pod("untolerated", "100m"), view.Revision)
			Expect(err).NotTo(HaveOccurred())

			act, _ := Step(Controller{Kind: SchedulerKind}, view, NewLocalState(SchedulerKind), time.Unix(1000, 0))

			Expect(act).To(Equal(action.NoAction))
		})
	})

	When("a pod already has a nodeName", func() {
		It("is left alone", func() {
			_, err := view.Nodes.Create(node("n", "1"), view.Revision)
			Expect(err).NotTo(HaveOccurred())
			already := pod("placed", "100m")
			already.Spec.NodeName = "n"
			_, err = view.Pods.Create(already, view.Revision)
			Expect(err).NotTo(HaveOccurred())

			act, _ := Step(Controller{Kind: SchedulerKind}, view, NewLocalState(SchedulerKind), time.Unix(1000, 0))

			Expect(act).To(Equal(action.NoAction))
		})
	})
})
