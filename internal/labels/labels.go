// Package labels implements the label computations shared by the Project and
// Namespace reconcilers. All functions are pure.
package labels

import (
	"strings"

	"github.com/cybozu-go/project-propagator/internal/constants"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/validation"
)

// Relevant returns the labels of a Project that must be propagated, with
// constants.PropagationPrefix stripped from their keys.
// Keys that are not valid label keys once stripped are ignored.
func Relevant(projectLabels map[string]string) map[string]string {
	relevant := make(map[string]string)
	for k, v := range projectLabels {
		key, ok := strings.CutPrefix(k, constants.PropagationPrefix)
		if !ok {
			continue
		}
		if len(validation.IsQualifiedName(key)) != 0 {
			continue
		}
		relevant[key] = v
	}
	return relevant
}

// Merge applies source on top of target.
// It returns false, and a nil map, when target already holds every key of
// source with the same value. Otherwise it returns a copy of target updated
// with source. Neither argument is modified.
func Merge(source, target map[string]string) (map[string]string, bool) {
	changed := false
	for k, v := range source {
		if cur, ok := target[k]; !ok || cur != v {
			changed = true
			break
		}
	}
	if !changed {
		return nil, false
	}

	merged := make(map[string]string, len(target)+len(source))
	for k, v := range target {
		merged[k] = v
	}
	for k, v := range source {
		merged[k] = v
	}
	return merged, true
}

// OwnerValue formats the value of the ownership annotation.
func OwnerValue(projectNamespace, projectName string) string {
	return projectNamespace + ":" + projectName
}

// ParseOwner parses the value of the ownership annotation.
func ParseOwner(value string) (types.NamespacedName, bool) {
	ns, name, ok := strings.Cut(value, ":")
	if !ok || ns == "" || name == "" {
		return types.NamespacedName{}, false
	}
	return types.NamespacedName{Namespace: ns, Name: name}, true
}
