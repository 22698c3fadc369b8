package constants

import "time"

// ProjectIDKey is the Rancher key recording which Project owns a Namespace.
// As an annotation its value is "<project-namespace>:<project-name>".
// As a label its value is only "<project-name>"; the label is indexed by the
// API server and is used to narrow list queries.
const ProjectIDKey = "field.cattle.io/projectId"

// PropagationPrefix marks the Project labels that are copied to the Namespaces
// of the Project. The prefix is stripped from the key on the Namespace.
const PropagationPrefix = "propagate."

// FieldManager is the server-side apply identity of the controller.
// Do not change it: other writers resolve conflicts against it.
const FieldManager = "racher-project-info-propagator"

// ReconcileInterval is both the periodic re-check interval and the retry
// interval after a failed reconciliation.
const ReconcileInterval = 5 * time.Minute

// LocalProjectNamespace is the namespace holding the Projects of Rancher's local cluster.
const LocalProjectNamespace = "local"

// CacheFileName is the name of the sqlite file inside the data directory.
const CacheFileName = "cache.sqlite"
