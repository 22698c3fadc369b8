package config

import (
	"errors"

	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/yaml"
)

const (
	DefaultDataPath                = "/data"
	DefaultMaxConcurrentReconciles = 4
)

// Config represents the configuration file of project-propagator.
// When ClusterID is empty the controller runs in single-cluster mode, where
// Projects and Namespaces live in the same cluster.
type Config struct {
	// ClusterID is the Rancher identifier of this cluster.
	// Upstream, the Projects of this cluster live in the namespace of this name.
	ClusterID string `json:"clusterID,omitempty"`

	// KubeconfigUpstream is the path of the kubeconfig for the upstream cluster.
	KubeconfigUpstream string `json:"kubeconfigUpstream,omitempty"`

	// DataPath is the directory holding the label cache.
	DataPath string `json:"dataPath,omitempty"`

	// MaxConcurrentReconciles is the number of workers of each controller.
	MaxConcurrentReconciles int `json:"maxConcurrentReconciles,omitempty"`
}

// NewConfig returns a Config filled with default values.
func NewConfig() *Config {
	return &Config{
		DataPath:                DefaultDataPath,
		MaxConcurrentReconciles: DefaultMaxConcurrentReconciles,
	}
}

// IsDownstream returns true when Projects are read from an upstream cluster.
func (c *Config) IsDownstream() bool {
	return c.ClusterID != ""
}

// Validate validates the configurations.
func (c *Config) Validate() error {
	var allErrs field.ErrorList

	switch {
	case c.ClusterID != "" && c.KubeconfigUpstream == "":
		allErrs = append(allErrs, field.Required(field.NewPath("kubeconfigUpstream"), "should be set together with clusterID"))
	case c.ClusterID == "" && c.KubeconfigUpstream != "":
		allErrs = append(allErrs, field.Required(field.NewPath("clusterID"), "should be set together with kubeconfigUpstream"))
	}

	if c.ClusterID != "" {
		for _, msg := range validation.IsDNS1123Label(c.ClusterID) {
			allErrs = append(allErrs, field.Invalid(field.NewPath("clusterID"), c.ClusterID, msg))
		}
		if len(c.DataPath) == 0 {
			allErrs = append(allErrs, field.Invalid(field.NewPath("dataPath"), c.DataPath, "should not be empty"))
		}
	}

	if c.MaxConcurrentReconciles < 1 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("maxConcurrentReconciles"), c.MaxConcurrentReconciles, "should be at least 1"))
	}

	if len(allErrs) != 0 {
		return errors.New(allErrs.ToAggregate().Error())
	}

	return nil
}

// Load loads configurations. Fields absent from data keep their current values.
func (c *Config) Load(data []byte) error {
	return yaml.Unmarshal(data, c, yaml.DisallowUnknownFields)
}
