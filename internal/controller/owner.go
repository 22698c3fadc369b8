package controller

import (
	"context"
	"fmt"

	projectv3 "github.com/cybozu-go/project-propagator/api/v3"
	"github.com/cybozu-go/project-propagator/internal/constants"
	"github.com/cybozu-go/project-propagator/internal/labels"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// ownerOf returns the Project owning obj.
// Owners outside projectNamespace belong to other clusters and are ignored.
func ownerOf(obj client.Object, projectNamespace string) (types.NamespacedName, bool) {
	value, ok := obj.GetAnnotations()[constants.ProjectIDKey]
	if !ok {
		return types.NamespacedName{}, false
	}
	owner, ok := labels.ParseOwner(value)
	if !ok || owner.Namespace != projectNamespace {
		return types.NamespacedName{}, false
	}
	return owner, true
}

// ownedNamespaces lists the Namespaces owned by project.
// The ownership label only holds the project name, so the result is filtered
// by the full annotation value.
func ownedNamespaces(ctx context.Context, c client.Reader, project types.NamespacedName) ([]corev1.Namespace, error) {
	if project.Namespace == "" || project.Name == "" {
		panic(fmt.Sprintf("project without namespace or name: %q", project.String()))
	}

	nsList := &corev1.NamespaceList{}
	if err := c.List(ctx, nsList, client.MatchingLabels{constants.ProjectIDKey: project.Name}); err != nil {
		return nil, err
	}

	owner := labels.OwnerValue(project.Namespace, project.Name)
	var owned []corev1.Namespace
	for _, ns := range nsList.Items {
		if ns.Annotations[constants.ProjectIDKey] != owner {
			continue
		}
		owned = append(owned, ns)
	}
	return owned, nil
}

// projectRequestsForNamespace maps a Namespace to its owning Project.
func projectRequestsForNamespace(projectNamespace string) handler.MapFunc {
	return func(_ context.Context, obj client.Object) []reconcile.Request {
		owner, ok := ownerOf(obj, projectNamespace)
		if !ok {
			return nil
		}
		return []reconcile.Request{{NamespacedName: owner}}
	}
}

// namespaceRequestsForProject maps a Project to the Namespaces it owns.
func namespaceRequestsForProject(c client.Reader) handler.TypedMapFunc[*projectv3.Project, reconcile.Request] {
	return func(ctx context.Context, project *projectv3.Project) []reconcile.Request {
		namespaces, err := ownedNamespaces(ctx, c, client.ObjectKeyFromObject(project))
		if err != nil {
			log.FromContext(ctx).Error(err, "failed to list namespaces", "project", client.ObjectKeyFromObject(project))
			return nil
		}

		requests := make([]reconcile.Request, 0, len(namespaces))
		for _, ns := range namespaces {
			requests = append(requests, reconcile.Request{NamespacedName: types.NamespacedName{Name: ns.Name}})
		}
		return requests
	}
}
