package cluster

import (
	"context"
	"errors"

	"github.com/cybozu-go/project-propagator/internal/constants"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var errNoUpstream = errors.New("upstream cluster does not exist in single-cluster mode")

// SingleCluster is the Context of a controller running in the cluster that
// holds both the Projects and the Namespaces.
type SingleCluster struct {
	client    client.Client
	informers cache.Cache
}

var _ Context = &SingleCluster{}

func NewSingleCluster(c client.Client, informers cache.Cache) *SingleCluster {
	return &SingleCluster{
		client:    c,
		informers: informers,
	}
}

func (s *SingleCluster) Namespaces() client.Client {
	return s.client
}

func (s *SingleCluster) Projects() client.Reader {
	return s.client
}

func (s *SingleCluster) ProjectNamespace() string {
	return constants.LocalProjectNamespace
}

func (s *SingleCluster) ProjectInformers() cache.Cache {
	return s.informers
}

func (s *SingleCluster) IsDownstream() bool {
	return false
}

// IsUpstreamReachable always returns false. Callers are expected to check
// IsDownstream first, so a call is reported as an error.
func (s *SingleCluster) IsUpstreamReachable(ctx context.Context) bool {
	log.FromContext(ctx).Error(errNoUpstream, "upstream reachability was checked")
	return false
}

func (s *SingleCluster) CacheUpdate(context.Context, string, map[string]string) error {
	return nil
}

func (s *SingleCluster) CacheDelete(context.Context, string) error {
	return nil
}

func (s *SingleCluster) CacheLookup(context.Context, string) (map[string]string, bool, error) {
	return nil, false, nil
}
