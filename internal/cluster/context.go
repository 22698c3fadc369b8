// Package cluster abstracts where Projects are read from.
//
// In single-cluster mode Projects and Namespaces live in the same cluster.
// In dual-cluster mode Namespaces live in the local (downstream) cluster while
// Projects are read from the upstream Rancher cluster, and the last known
// labels of every Project are kept in a local cache for the times the
// upstream cluster cannot be reached.
package cluster

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Context gives the reconcilers access to the clusters they work on.
// It is created once at startup and shared by all workers.
type Context interface {
	// Namespaces returns the client of the cluster owning the Namespaces.
	Namespaces() client.Client

	// Projects returns the reader for Projects. Objects must be looked up in ProjectNamespace().
	Projects() client.Reader

	// ProjectNamespace returns the namespace holding the Projects of this cluster.
	ProjectNamespace() string

	// ProjectInformers returns the informer cache producing Project events.
	ProjectInformers() cache.Cache

	// IsDownstream returns true in dual-cluster mode.
	IsDownstream() bool

	// IsUpstreamReachable probes the upstream cluster.
	IsUpstreamReachable(ctx context.Context) bool

	// CacheUpdate records the relevant labels of a Project.
	CacheUpdate(ctx context.Context, project string, labels map[string]string) error

	// CacheDelete forgets a Project.
	CacheDelete(ctx context.Context, project string) error

	// CacheLookup returns the last recorded labels of a Project.
	// The boolean is false when nothing was recorded.
	CacheLookup(ctx context.Context, project string) (map[string]string, bool, error)
}

// LabelStore persists Project labels. It is implemented by *labelcache.Cache.
type LabelStore interface {
	Upsert(ctx context.Context, project string, labels map[string]string) error
	Get(ctx context.Context, project string) (map[string]string, bool, error)
	Delete(ctx context.Context, project string) error
}
