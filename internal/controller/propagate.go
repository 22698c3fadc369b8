package controller

import (
	"context"
	"fmt"

	"github.com/cybozu-go/project-propagator/internal/constants"
	"github.com/cybozu-go/project-propagator/internal/labels"
	"github.com/cybozu-go/project-propagator/internal/metrics"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	accorev1 "k8s.io/client-go/applyconfigurations/core/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// propagateLabels applies relevant on top of the labels of ns.
// Nothing is sent to the API server when ns already has them.
func propagateLabels(ctx context.Context, c client.Client, ns *corev1.Namespace, relevant map[string]string, controllerName string) error {
	logger := log.FromContext(ctx)

	merged, changed := labels.Merge(relevant, ns.Labels)
	if !changed {
		logger.V(1).Info("namespace labels are up to date", "namespace", ns.Name)
		return nil
	}

	if err := patchNamespace(ctx, c, accorev1.Namespace(ns.Name).WithLabels(merged)); err != nil {
		metrics.NamespacePatchErrorsVec.WithLabelValues(controllerName).Inc()
		return fmt.Errorf("failed to patch namespace %s: %w", ns.Name, err)
	}
	metrics.NamespacePatchesVec.WithLabelValues(controllerName).Inc()
	logger.Info("propagated labels", "namespace", ns.Name, "labels", relevant)
	return nil
}

func patchNamespace(ctx context.Context, c client.Client, ns *accorev1.NamespaceApplyConfiguration) error {
	obj, err := runtime.DefaultUnstructuredConverter.ToUnstructured(ns)
	if err != nil {
		return err
	}
	patch := &unstructured.Unstructured{
		Object: obj,
	}

	return c.Patch(ctx, patch, client.Apply, &client.PatchOptions{
		FieldManager: constants.FieldManager,
		Force:        ptr.To(true),
	})
}
