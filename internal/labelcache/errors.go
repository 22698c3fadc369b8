package labelcache

import "fmt"

// Error is returned by every Cache operation that fails in the storage layer.
type Error struct {
	// Op is the failed operation.
	Op string
	// Project is the project the operation was about, if any.
	Project string
	Err     error
}

func (e *Error) Error() string {
	if e.Project == "" {
		return fmt.Sprintf("label cache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("label cache: %s %q: %v", e.Op, e.Project, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
