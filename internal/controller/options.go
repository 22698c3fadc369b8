package controller

import (
	"math"
	"time"

	"github.com/cybozu-go/project-propagator/internal/constants"
	"github.com/go-logr/logr"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// upstreamCacheSyncTimeout is how long the Project controller waits for the
// first listing of upstream Projects. The upstream cluster may be unreachable
// when the controller starts, possibly for a long time, and a timeout would
// stop the manager together with the Namespace controller.
// The wait ends when the first listing succeeds or the manager stops.
const upstreamCacheSyncTimeout = time.Duration(math.MaxInt64)

// newRateLimiter retries failed requests after constants.ReconcileInterval,
// however many times they failed before.
func newRateLimiter() workqueue.TypedRateLimiter[reconcile.Request] {
	return workqueue.NewTypedItemExponentialFailureRateLimiter[reconcile.Request](constants.ReconcileInterval, constants.ReconcileInterval)
}

func newOptions(logger logr.Logger, name, kind string, maxConcurrentReconciles int, isDownstream bool) controller.Options {
	logger = logger.WithValues("controller", name, "isDownstreamCluster", isDownstream)
	return controller.Options{
		MaxConcurrentReconciles: maxConcurrentReconciles,
		RateLimiter:             newRateLimiter(),
		LogConstructor: func(req *reconcile.Request) logr.Logger {
			if req == nil {
				return logger
			}
			return logger.WithValues(kind, klog.KRef(req.Namespace, req.Name))
		},
	}
}
