package e2e

import (
	_ "embed"
	"encoding/json"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
)

//go:embed testdata/project.yaml
var projectYAML []byte

//go:embed testdata/namespaces.yaml
var namespacesYAML []byte

func namespaceLabels(name string) (map[string]string, error) {
	out, err := kubectl(nil, "get", "namespace", name, "-o", "json")
	if err != nil {
		return nil, err
	}
	ns := &corev1.Namespace{}
	if err := json.Unmarshal(out, ns); err != nil {
		return nil, err
	}
	return ns.Labels, nil
}

func hasLabel(name, key, value string) func() error {
	return func() error {
		labels, err := namespaceLabels(name)
		if err != nil {
			return err
		}
		if labels[key] != value {
			return fmt.Errorf("label %s of namespace %s is %q, not %q", key, name, labels[key], value)
		}
		return nil
	}
}

var _ = Describe("project-propagator", func() {
	It("should prepare", func() {
		kubectlSafe(projectYAML, "apply", "-f", "-")
		kubectlSafe(namespacesYAML, "apply", "-f", "-")
	})

	It("should propagate project labels to owned namespaces", func() {
		Eventually(hasLabel("e2e-owned", "tier", "gold")).Should(Succeed())
		Eventually(hasLabel("e2e-owned", "team", "e2e")).Should(Succeed())

		labels, err := namespaceLabels("e2e-owned")
		Expect(err).NotTo(HaveOccurred())
		Expect(labels).NotTo(HaveKey("cost-center"))
	})

	It("should not touch namespaces of other projects", func() {
		Consistently(func() error {
			labels, err := namespaceLabels("e2e-foreign")
			if err != nil {
				return err
			}
			if _, ok := labels["tier"]; ok {
				return fmt.Errorf("namespace e2e-foreign got labels of another project: %v", labels)
			}
			return nil
		}, "10s").Should(Succeed())
	})

	It("should follow label changes of the project", func() {
		kubectlSafe(nil, "label", "-n", "local", "projects.management.cattle.io", "p-e2e", "propagate.tier=platinum", "--overwrite")
		Eventually(hasLabel("e2e-owned", "tier", "platinum")).Should(Succeed())
	})

	It("should label namespaces joining the project", func() {
		kubectlSafe(nil, "create", "namespace", "e2e-late")
		kubectlSafe(nil, "annotate", "namespace", "e2e-late", "field.cattle.io/projectId=local:p-e2e")
		kubectlSafe(nil, "label", "namespace", "e2e-late", "field.cattle.io/projectId=p-e2e")
		Eventually(hasLabel("e2e-late", "tier", "platinum")).Should(Succeed())
	})
})
