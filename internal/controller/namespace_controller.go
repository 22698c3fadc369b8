package controller

import (
	"context"
	"fmt"

	projectv3 "github.com/cybozu-go/project-propagator/api/v3"
	"github.com/cybozu-go/project-propagator/internal/cluster"
	"github.com/cybozu-go/project-propagator/internal/config"
	"github.com/cybozu-go/project-propagator/internal/constants"
	"github.com/cybozu-go/project-propagator/internal/labels"
	"github.com/cybozu-go/project-propagator/internal/metrics"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/source"
)

const namespaceControllerName = "namespace"

func NewNamespaceReconciler(c cluster.Context, config *config.Config) *NamespaceReconciler {
	return &NamespaceReconciler{
		cluster: c,
		config:  config,
	}
}

// NamespaceReconciler applies the labels of the owning Project to a Namespace.
// In dual-cluster mode it falls back to the label cache while the upstream
// cluster is unreachable.
type NamespaceReconciler struct {
	cluster cluster.Context
	config  *config.Config
}

//+kubebuilder:rbac:groups=management.cattle.io,resources=projects,verbs=get;list;watch
//+kubebuilder:rbac:groups=core,resources=namespaces,verbs=get;list;watch;patch

func (r *NamespaceReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	ns := &corev1.Namespace{}
	if err := r.cluster.Namespaces().Get(ctx, req.NamespacedName, ns); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	if ns.DeletionTimestamp != nil {
		return ctrl.Result{RequeueAfter: constants.ReconcileInterval}, nil
	}

	owner, ok := ownerOf(ns, r.cluster.ProjectNamespace())
	if !ok {
		logger.V(1).Info("namespace is not owned by a project of this cluster")
		return ctrl.Result{RequeueAfter: constants.ReconcileInterval}, nil
	}

	relevant, err := r.relevantLabels(ctx, owner.Name)
	if err != nil {
		return ctrl.Result{}, err
	}

	if err := propagateLabels(ctx, r.cluster.Namespaces(), ns, relevant, namespaceControllerName); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{RequeueAfter: constants.ReconcileInterval}, nil
}

func (r *NamespaceReconciler) relevantLabels(ctx context.Context, projectName string) (map[string]string, error) {
	if !r.cluster.IsDownstream() || r.cluster.IsUpstreamReachable(ctx) {
		project := &projectv3.Project{}
		key := types.NamespacedName{Namespace: r.cluster.ProjectNamespace(), Name: projectName}
		if err := r.cluster.Projects().Get(ctx, key, project); err != nil {
			return nil, fmt.Errorf("failed to get project %s: %w", key, err)
		}
		return labels.Relevant(project.Labels), nil
	}

	metrics.DegradedReconciles.Inc()
	cached, found, err := r.cluster.CacheLookup(ctx, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up label cache: %w", err)
	}
	if !found {
		cached = map[string]string{}
	}
	log.FromContext(ctx).Info("upstream cluster is unreachable, using cached labels", "project", projectName, "found", found)
	return cached, nil
}

// SetupWithManager sets up the controller with the Manager.
// Project events are only watched in single-cluster mode, so that this
// controller keeps working while the upstream cluster is unreachable.
func (r *NamespaceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	bldr := ctrl.NewControllerManagedBy(mgr).
		Named(namespaceControllerName).
		WithOptions(newOptions(mgr.GetLogger(), namespaceControllerName, "namespace", r.config.MaxConcurrentReconciles, r.cluster.IsDownstream())).
		For(&corev1.Namespace{})

	if !r.cluster.IsDownstream() {
		bldr = bldr.WatchesRawSource(source.Kind(
			r.cluster.ProjectInformers(),
			&projectv3.Project{},
			handler.TypedEnqueueRequestsFromMapFunc(namespaceRequestsForProject(r.cluster.Namespaces())),
		))
	}

	return bldr.Complete(r)
}
