package sub

import (
	"flag"
	"fmt"
	"os"

	"github.com/cybozu-go/project-propagator/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

const defaultLeaderElectionID = "project-propagator"

var options struct {
	configFile              string
	clusterID               string
	kubeconfigUpstream      string
	dataPath                string
	maxConcurrentReconciles int
	metricsAddr             string
	probeAddr               string
	leaderElection          bool
	leaderElectionID        string
	leaderElectionNamespace string
	logLevel                string
	zapOpts                 zap.Options
}

var rootCmd = &cobra.Command{
	Use:   "project-propagator",
	Short: "Rancher project label propagator",
	Long: `project-propagator copies the labels of Rancher Projects prefixed with
"propagate." to the Namespaces belonging to the Projects.

Without --cluster-id, Projects are read from the cluster the controller runs in.
With --cluster-id and --kubeconfig-upstream, Projects are read from the upstream
Rancher cluster and their labels are cached under --data-path, so that Namespaces
keep being labeled while the upstream cluster is unreachable.`,

	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return subMain(cmd.Flags())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addFlags(rootCmd.Flags())
}

func addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&options.configFile, "config-file", "", "Configuration file path")
	fs.StringVar(&options.clusterID, "cluster-id", "", "Rancher ID of this cluster. Enables the dual-cluster mode")
	fs.StringVar(&options.kubeconfigUpstream, "kubeconfig-upstream", "", "Kubeconfig file of the upstream Rancher cluster")
	fs.StringVar(&options.dataPath, "data-path", config.DefaultDataPath, "Directory of the label cache")
	fs.IntVar(&options.maxConcurrentReconciles, "max-concurrent-reconciles", config.DefaultMaxConcurrentReconciles, "Number of workers of each controller")
	fs.StringVar(&options.metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to")
	fs.StringVar(&options.probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to")
	fs.BoolVar(&options.leaderElection, "leader-elect", false, "Enable leader election for the controller manager")
	fs.StringVar(&options.leaderElectionID, "leader-election-id", defaultLeaderElectionID, "ID for leader election by controller-runtime")
	fs.StringVar(&options.leaderElectionNamespace, "leader-election-namespace", "", "Namespace of the leader election lease")
	fs.StringVar(&options.logLevel, "log-level", "info", "Log level: trace, debug, info, warn or error")

	goflags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(goflags)
	options.zapOpts.BindFlags(goflags)

	fs.AddGoFlagSet(goflags)
}

func parseLogLevel(s string) (zapcore.Level, error) {
	switch s {
	case "trace":
		// logr V(2)
		return zapcore.Level(-2), nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// loadConfig reads the configuration file, if any, and applies the flags
// given on the command line on top of it.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.NewConfig()
	if options.configFile != "" {
		data, err := os.ReadFile(options.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", options.configFile, err)
		}
		if err := cfg.Load(data); err != nil {
			return nil, fmt.Errorf("unable to load the configuration file: %w", err)
		}
	}

	if options.configFile == "" || fs.Changed("cluster-id") {
		cfg.ClusterID = options.clusterID
	}
	if options.configFile == "" || fs.Changed("kubeconfig-upstream") {
		cfg.KubeconfigUpstream = options.kubeconfigUpstream
	}
	if options.configFile == "" || fs.Changed("data-path") {
		cfg.DataPath = options.dataPath
	}
	if options.configFile == "" || fs.Changed("max-concurrent-reconciles") {
		cfg.MaxConcurrentReconciles = options.maxConcurrentReconciles
	}
	return cfg, nil
}
