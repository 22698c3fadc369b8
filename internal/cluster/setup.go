package cluster

import (
	"fmt"

	"github.com/cybozu-go/project-propagator/internal/config"
	"github.com/cybozu-go/project-propagator/internal/labelcache"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	crcluster "sigs.k8s.io/controller-runtime/pkg/cluster"
	"sigs.k8s.io/controller-runtime/pkg/manager"
)

func noopClose() error { return nil }

// Setup builds the Context described by cfg.
//
// In dual-cluster mode the upstream cluster is added to mgr as a plain
// runnable, so that mgr starts even when the upstream cluster is unreachable.
// The returned function closes the label cache. Call it once mgr.Start has
// returned, when no reconciliation can use the cache anymore.
func Setup(mgr manager.Manager, cfg *config.Config) (Context, func() error, error) {
	if !cfg.IsDownstream() {
		return NewSingleCluster(mgr.GetClient(), mgr.GetCache()), noopClose, nil
	}

	restCfg, err := LoadKubeconfig(cfg.KubeconfigUpstream)
	if err != nil {
		return nil, nil, err
	}

	upstream, err := crcluster.New(restCfg, func(o *crcluster.Options) {
		o.Scheme = mgr.GetScheme()
		o.Logger = mgr.GetLogger().WithName("upstream")
		o.Cache.DefaultNamespaces = map[string]cache.Config{
			cfg.ClusterID: {},
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create upstream cluster: %w", err)
	}
	if err := mgr.Add(manager.RunnableFunc(upstream.Start)); err != nil {
		return nil, nil, fmt.Errorf("failed to add upstream cluster: %w", err)
	}

	prober, err := NewVersionProber(restCfg, DefaultProbeTimeout)
	if err != nil {
		return nil, nil, err
	}

	store, err := labelcache.Open(cfg.DataPath)
	if err != nil {
		return nil, nil, err
	}

	return NewDualCluster(DualClusterOptions{
		Local:     mgr.GetClient(),
		Upstream:  upstream.GetAPIReader(),
		Informers: upstream.GetCache(),
		ClusterID: cfg.ClusterID,
		Prober:    prober,
		Store:     store,
	}), store.Close, nil
}
