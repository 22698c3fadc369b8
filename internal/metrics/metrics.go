package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	k8smetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	metricsNameSpace = "project_propagator"
)

var (
	NamespacePatchesVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNameSpace,
		Name:      "namespace_patches_total",
		Help:      "The number of label patches applied to namespaces",
	}, []string{"controller"})

	NamespacePatchErrorsVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNameSpace,
		Name:      "namespace_patch_errors_total",
		Help:      "The number of label patches to namespaces that failed",
	}, []string{"controller"})

	CacheErrorsVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNameSpace,
		Name:      "cache_errors_total",
		Help:      "The number of label cache operations that failed and were ignored",
	}, []string{"operation"})

	DegradedReconciles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNameSpace,
		Name:      "degraded_reconciles_total",
		Help:      "The number of namespace reconciliations served from the label cache",
	})

	UpstreamReachable = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNameSpace,
		Name:      "upstream_reachable",
		Help:      "Whether the last probe of the upstream cluster succeeded",
	})
)

func init() {
	k8smetrics.Registry.MustRegister(
		NamespacePatchesVec,
		NamespacePatchErrorsVec,
		CacheErrorsVec,
		DegradedReconciles,
		UpstreamReachable,
	)
}
