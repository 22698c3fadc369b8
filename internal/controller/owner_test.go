package controller

import (
	"context"

	"github.com/cybozu-go/project-propagator/internal/constants"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

var _ = Describe("Ownership resolution", func() {
	ctx := context.Background()

	It("should list only the namespaces annotated with the full owner", func() {
		c := newFakeClient(newApplyRecorder(),
			newNamespace("ns-a-1", "ns-a:proj1", nil),
			newNamespace("ns-a-2", "ns-a:proj1", nil),
			newNamespace("ns-b-1", "ns-b:proj1", nil),
			newNamespace("ns-a-3", "ns-a:proj2", nil),
		)

		namespaces, err := ownedNamespaces(ctx, c, types.NamespacedName{Namespace: "ns-b", Name: "proj1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(namespaces).To(HaveLen(1))
		Expect(namespaces[0].Name).To(Equal("ns-b-1"))

		namespaces, err = ownedNamespaces(ctx, c, types.NamespacedName{Namespace: "ns-a", Name: "proj1"})
		Expect(err).NotTo(HaveOccurred())
		names := []string{}
		for _, ns := range namespaces {
			names = append(names, ns.Name)
		}
		Expect(names).To(ConsistOf("ns-a-1", "ns-a-2"))
	})

	It("should panic for a project without name", func() {
		c := newFakeClient(newApplyRecorder())
		Expect(func() {
			_, _ = ownedNamespaces(ctx, c, types.NamespacedName{Namespace: "local"})
		}).To(Panic())
	})

	DescribeTable("mapping a namespace to its project",
		func(annotation string, expected []reconcile.Request) {
			ns := newNamespace("ns", "", nil)
			if annotation != "" {
				ns.Annotations = map[string]string{constants.ProjectIDKey: annotation}
			}
			Expect(projectRequestsForNamespace("local")(ctx, ns)).To(Equal(expected))
		},
		Entry("owned", "local:p1", []reconcile.Request{{NamespacedName: types.NamespacedName{Namespace: "local", Name: "p1"}}}),
		Entry("owned by another cluster", "c-m-other:p1", nil),
		Entry("malformed", "p1", nil),
		Entry("empty name", "local:", nil),
		Entry("unowned", "", nil),
	)

	It("should map a project to the namespaces it owns", func() {
		c := newFakeClient(newApplyRecorder(),
			newNamespace("ns-1", "local:p1", nil),
			newNamespace("ns-2", "local:p1", nil),
			newNamespace("ns-3", "c-m-other:p1", nil),
			newNamespace("ns-4", "local:p2", nil),
		)

		requests := namespaceRequestsForProject(c)(ctx, newProject("local", "p1", nil))
		Expect(requests).To(ConsistOf(
			reconcile.Request{NamespacedName: client.ObjectKey{Name: "ns-1"}},
			reconcile.Request{NamespacedName: client.ObjectKey{Name: "ns-2"}},
		))
	})
})

var _ = Describe("Rate limiter", func() {
	It("should retry after a fixed interval", func() {
		rl := newRateLimiter()
		req := reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "local", Name: "p1"}}
		for i := 0; i < 5; i++ {
			Expect(rl.When(req)).To(Equal(constants.ReconcileInterval))
		}
		Expect(rl.NumRequeues(req)).To(Equal(5))
	})
})
