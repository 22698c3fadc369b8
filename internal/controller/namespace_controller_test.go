package controller

import (
	"context"

	"github.com/cybozu-go/project-propagator/internal/cluster"
	"github.com/cybozu-go/project-propagator/internal/config"
	"github.com/cybozu-go/project-propagator/internal/constants"
	"github.com/cybozu-go/project-propagator/internal/metrics"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

func namespaceRequest(name string) ctrl.Request {
	return ctrl.Request{NamespacedName: client.ObjectKey{Name: name}}
}

var _ = Describe("Namespace controller", func() {
	ctx := context.Background()
	cfg := config.NewConfig()

	Context("in single-cluster mode", func() {
		var rec *applyRecorder
		var c client.Client
		var r *NamespaceReconciler

		BeforeEach(func() {
			terminating := newNamespace("ns-terminating", "local:p1", nil)
			terminating.Finalizers = []string{"example.com/hold"}
			now := metav1.Now()
			terminating.DeletionTimestamp = &now

			rec = newApplyRecorder()
			c = newFakeClient(rec,
				newProject("local", "p1", map[string]string{"propagate.tier": "gold", "other": "x"}),
				newNamespace("ns-new", "local:p1", map[string]string{"keep": "me"}),
				newNamespace("ns-done", "local:p1", map[string]string{"tier": "gold"}),
				newNamespace("ns-silver", "local:p1", map[string]string{"tier": "silver", "keep": "me"}),
				newNamespace("ns-unowned", "", nil),
				newNamespace("ns-broken", "local", nil),
				newNamespace("ns-orphan", "local:missing", nil),
				newNamespace("ns-foreign", "c-m-other:p1", nil),
				terminating,
			)
			r = NewNamespaceReconciler(cluster.NewSingleCluster(c, nil), cfg)
		})

		It("should apply the labels of the owning project", func() {
			before := testutil.ToFloat64(metrics.NamespacePatchesVec.WithLabelValues(namespaceControllerName))

			res, err := r.Reconcile(ctx, namespaceRequest("ns-new"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequeueAfter).To(Equal(constants.ReconcileInterval))

			ns := getNamespace(c, "ns-new")
			Expect(ns.Labels).To(HaveKeyWithValue("tier", "gold"))
			Expect(ns.Labels).To(HaveKeyWithValue("keep", "me"))
			Expect(ns.Labels).NotTo(HaveKey("other"))
			Expect(testutil.ToFloat64(metrics.NamespacePatchesVec.WithLabelValues(namespaceControllerName)) - before).To(Equal(1.0))
		})

		It("should overwrite a label whose value differs from the project", func() {
			res, err := r.Reconcile(ctx, namespaceRequest("ns-silver"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequeueAfter).To(Equal(constants.ReconcileInterval))
			Expect(rec.count("ns-silver")).To(Equal(1))

			ns := getNamespace(c, "ns-silver")
			Expect(ns.Labels).To(HaveKeyWithValue("tier", "gold"))
			Expect(ns.Labels).To(HaveKeyWithValue("keep", "me"))

			_, err = r.Reconcile(ctx, namespaceRequest("ns-silver"))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.count("ns-silver")).To(Equal(1))
		})

		It("should not patch a namespace that is up to date", func() {
			_, err := r.Reconcile(ctx, namespaceRequest("ns-done"))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.count("ns-done")).To(Equal(0))
		})

		DescribeTable("should only schedule the next check",
			func(name string) {
				res, err := r.Reconcile(ctx, namespaceRequest(name))
				Expect(err).NotTo(HaveOccurred())
				Expect(res.RequeueAfter).To(Equal(constants.ReconcileInterval))
				Expect(rec.total()).To(Equal(0))
			},
			Entry("without ownership annotation", "ns-unowned"),
			Entry("with a malformed ownership annotation", "ns-broken"),
			Entry("owned by a project of another cluster", "ns-foreign"),
			Entry("being deleted", "ns-terminating"),
		)

		It("should ignore a missing namespace", func() {
			res, err := r.Reconcile(ctx, namespaceRequest("ns-missing"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(ctrl.Result{}))
		})

		It("should fail when the owning project does not exist", func() {
			_, err := r.Reconcile(ctx, namespaceRequest("ns-orphan"))
			Expect(err).To(HaveOccurred())
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("in dual-cluster mode", func() {
		var rec *applyRecorder
		var local, upstream client.Client

		BeforeEach(func() {
			rec = newApplyRecorder()
			local = newFakeClient(rec,
				newNamespace("ns-a", testClusterID+":p1", nil),
			)
			upstream = newFakeClient(rec,
				newProject(testClusterID, "p1", map[string]string{"propagate.tier": "platinum"}),
			)
		})

		It("should read the project from the upstream cluster while it is reachable", func() {
			store := openStore()
			Expect(store.Upsert(ctx, "p1", map[string]string{"tier": "gold"})).To(Succeed())
			r := NewNamespaceReconciler(newDualContext(local, upstream, store, true), cfg)

			_, err := r.Reconcile(ctx, namespaceRequest("ns-a"))
			Expect(err).NotTo(HaveOccurred())
			Expect(getNamespace(local, "ns-a").Labels).To(HaveKeyWithValue("tier", "platinum"))
		})

		It("should use the cached labels while the upstream cluster is unreachable", func() {
			store := openStore()
			Expect(store.Upsert(ctx, "p1", map[string]string{"tier": "gold"})).To(Succeed())
			r := NewNamespaceReconciler(newDualContext(local, upstream, store, false), cfg)
			before := testutil.ToFloat64(metrics.DegradedReconciles)

			res, err := r.Reconcile(ctx, namespaceRequest("ns-a"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequeueAfter).To(Equal(constants.ReconcileInterval))
			Expect(getNamespace(local, "ns-a").Labels).To(HaveKeyWithValue("tier", "gold"))
			Expect(testutil.ToFloat64(metrics.DegradedReconciles) - before).To(Equal(1.0))
		})

		It("should leave the namespace alone when nothing is cached", func() {
			r := NewNamespaceReconciler(newDualContext(local, upstream, openStore(), false), cfg)

			res, err := r.Reconcile(ctx, namespaceRequest("ns-a"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequeueAfter).To(Equal(constants.ReconcileInterval))
			Expect(rec.total()).To(Equal(0))
		})

		It("should fail when the cache cannot be read", func() {
			r := NewNamespaceReconciler(newDualContext(local, upstream, failingStore{}, false), cfg)

			_, err := r.Reconcile(ctx, namespaceRequest("ns-a"))
			Expect(err).To(HaveOccurred())
		})
	})
})
