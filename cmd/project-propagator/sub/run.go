package sub

import (
	"fmt"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	projectv3 "github.com/cybozu-go/project-propagator/api/v3"
	"github.com/cybozu-go/project-propagator/internal/cluster"
	"github.com/cybozu-go/project-propagator/internal/constants"
	"github.com/cybozu-go/project-propagator/internal/controller"
	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
)

func subMain(fs *pflag.FlagSet) error {
	if fs.Changed("log-level") {
		level, err := parseLogLevel(options.logLevel)
		if err != nil {
			return err
		}
		options.zapOpts.Level = level
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&options.zapOpts)))
	klog.SetLogger(ctrl.Log.WithName("klog"))
	logger := ctrl.Log.WithName("setup")

	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return fmt.Errorf("unable to add client-go objects: %w", err)
	}
	if err := projectv3.AddToScheme(scheme); err != nil {
		return fmt.Errorf("unable to add rancher objects: %w", err)
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configurations: %w", err)
	}

	cacheOpts := cache.Options{}
	if !cfg.IsDownstream() {
		cacheOpts.ByObject = map[client.Object]cache.ByObject{
			&projectv3.Project{}: {
				Namespaces: map[string]cache.Config{constants.LocalProjectNamespace: {}},
			},
		}
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme: scheme,
		Cache:  cacheOpts,
		Metrics: metricsserver.Options{
			BindAddress: options.metricsAddr,
		},
		HealthProbeBindAddress:  options.probeAddr,
		LeaderElection:          options.leaderElection,
		LeaderElectionID:        options.leaderElectionID,
		LeaderElectionNamespace: options.leaderElectionNamespace,
	})
	if err != nil {
		return fmt.Errorf("unable to start manager: %w", err)
	}

	clusterCtx, closeCluster, err := cluster.Setup(mgr, cfg)
	if err != nil {
		return fmt.Errorf("unable to set up clusters: %w", err)
	}
	defer func() {
		if err := closeCluster(); err != nil {
			logger.Error(err, "failed to close label cache")
		}
	}()

	if err := controller.NewProjectReconciler(clusterCtx, cfg).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("unable to create Project controller: %w", err)
	}
	if err := controller.NewNamespaceReconciler(clusterCtx, cfg).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("unable to create Namespace controller: %w", err)
	}
	//+kubebuilder:scaffold:builder

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up health check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up ready check: %w", err)
	}

	logger.Info("starting manager", "isDownstreamCluster", cfg.IsDownstream(), "clusterID", cfg.ClusterID)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		return fmt.Errorf("problem running manager: %s", err)
	}
	return nil
}
