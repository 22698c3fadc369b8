package cluster

import (
	"context"
	"fmt"
	"time"

	"k8s.io/client-go/discovery"
	"k8s.io/client-go/rest"
)

// DefaultProbeTimeout bounds a single upstream probe.
const DefaultProbeTimeout = 5 * time.Second

// Prober checks whether a cluster answers.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// NewVersionProber returns a Prober requesting /version of the API server
// described by cfg. The request fails after timeout.
func NewVersionProber(cfg *rest.Config, timeout time.Duration) (Prober, error) {
	cfg = rest.CopyConfig(cfg)
	cfg.Timeout = timeout
	dc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	return ProberFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return dc.RESTClient().Get().AbsPath("/version").Do(ctx).Error()
	}), nil
}
