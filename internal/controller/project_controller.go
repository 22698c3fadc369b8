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
	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/source"
)

const projectControllerName = "project"

func NewProjectReconciler(c cluster.Context, config *config.Config) *ProjectReconciler {
	return &ProjectReconciler{
		cluster: c,
		config:  config,
	}
}

// ProjectReconciler propagates the labels of a Project to all the Namespaces it owns.
type ProjectReconciler struct {
	cluster cluster.Context
	config  *config.Config
}

//+kubebuilder:rbac:groups=management.cattle.io,resources=projects,verbs=get;list;watch
//+kubebuilder:rbac:groups=core,resources=namespaces,verbs=get;list;watch;patch

// Reconcile records the relevant labels of the Project in the label cache and
// applies them to every owned Namespace. A Namespace that cannot be patched
// does not prevent the others from being patched.
func (r *ProjectReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	project := &projectv3.Project{}
	if err := r.cluster.Projects().Get(ctx, req.NamespacedName, project); err != nil {
		if apierrors.IsNotFound(err) {
			r.forget(ctx, req.Name)
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, fmt.Errorf("failed to get project: %w", err)
	}

	if project.DeletionTimestamp != nil {
		logger.Info("project is being deleted")
		r.forget(ctx, project.Name)
		return ctrl.Result{RequeueAfter: constants.ReconcileInterval}, nil
	}

	relevant := labels.Relevant(project.Labels)
	if err := r.cluster.CacheUpdate(ctx, project.Name, relevant); err != nil {
		logger.Error(err, "failed to update label cache")
		metrics.CacheErrorsVec.WithLabelValues("update").Inc()
	}

	namespaces, err := ownedNamespaces(ctx, r.cluster.Namespaces(), client.ObjectKeyFromObject(project))
	if err != nil {
		return ctrl.Result{}, fmt.Errorf("failed to list namespaces: %w", err)
	}

	for i := range namespaces {
		ns := &namespaces[i]
		if err := propagateLabels(ctx, r.cluster.Namespaces(), ns, relevant, projectControllerName); err != nil {
			logger.Error(err, "failed to propagate labels", "namespace", ns.Name)
		}
	}

	logger.V(1).Info("project reconciled", "namespaces", len(namespaces))
	return ctrl.Result{RequeueAfter: constants.ReconcileInterval}, nil
}

func (r *ProjectReconciler) forget(ctx context.Context, name string) {
	if err := r.cluster.CacheDelete(ctx, name); err != nil {
		log.FromContext(ctx).Error(err, "failed to delete project from label cache")
		metrics.CacheErrorsVec.WithLabelValues("delete").Inc()
	}
}

// SetupWithManager sets up the controller with the Manager.
// Project events come from the informers of the Context, which belong to the
// upstream cluster in dual-cluster mode.
func (r *ProjectReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		Named(projectControllerName).
		WithOptions(r.options(mgr.GetLogger())).
		WatchesRawSource(source.Kind(
			r.cluster.ProjectInformers(),
			&projectv3.Project{},
			&handler.TypedEnqueueRequestForObject[*projectv3.Project]{},
		)).
		Watches(&corev1.Namespace{}, handler.EnqueueRequestsFromMapFunc(projectRequestsForNamespace(r.cluster.ProjectNamespace()))).
		Complete(r)
}

func (r *ProjectReconciler) options(logger logr.Logger) controller.Options {
	opts := newOptions(logger, projectControllerName, "project", r.config.MaxConcurrentReconciles, r.cluster.IsDownstream())
	if r.cluster.IsDownstream() {
		opts.CacheSyncTimeout = upstreamCacheSyncTimeout
	}
	return opts
}
