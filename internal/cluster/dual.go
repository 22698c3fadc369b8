package cluster

import (
	"context"
	"sync"

	"github.com/cybozu-go/project-propagator/internal/metrics"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// DualClusterOptions are the parts of a DualCluster.
type DualClusterOptions struct {
	// Local is the client of the downstream cluster.
	Local client.Client
	// Upstream reads Projects directly from the upstream API server.
	Upstream client.Reader
	// Informers is the upstream informer cache, restricted to ClusterID.
	Informers cache.Cache
	// ClusterID is the Rancher identifier of the downstream cluster.
	ClusterID string
	Prober    Prober
	Store     LabelStore
}

// DualCluster is the Context of a controller running in a downstream cluster.
type DualCluster struct {
	local     client.Client
	upstream  client.Reader
	informers cache.Cache
	clusterID string
	prober    Prober

	// mu guards store: updates and deletes are exclusive, lookups are shared.
	mu    sync.RWMutex
	store LabelStore
}

var _ Context = &DualCluster{}

func NewDualCluster(opts DualClusterOptions) *DualCluster {
	return &DualCluster{
		local:     opts.Local,
		upstream:  opts.Upstream,
		informers: opts.Informers,
		clusterID: opts.ClusterID,
		prober:    opts.Prober,
		store:     opts.Store,
	}
}

func (d *DualCluster) Namespaces() client.Client {
	return d.local
}

func (d *DualCluster) Projects() client.Reader {
	return d.upstream
}

func (d *DualCluster) ProjectNamespace() string {
	return d.clusterID
}

func (d *DualCluster) ProjectInformers() cache.Cache {
	return d.informers
}

func (d *DualCluster) IsDownstream() bool {
	return true
}

func (d *DualCluster) IsUpstreamReachable(ctx context.Context) bool {
	if err := d.prober.Probe(ctx); err != nil {
		log.FromContext(ctx).V(1).Info("upstream cluster is unreachable", "error", err.Error())
		metrics.UpstreamReachable.Set(0)
		return false
	}
	metrics.UpstreamReachable.Set(1)
	return true
}

func (d *DualCluster) CacheUpdate(ctx context.Context, project string, labels map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Upsert(ctx, project, labels)
}

func (d *DualCluster) CacheDelete(ctx context.Context, project string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Delete(ctx, project)
}

func (d *DualCluster) CacheLookup(ctx context.Context, project string) (map[string]string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.Get(ctx, project)
}
