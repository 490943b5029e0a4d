package crawl

import (
	"fmt"
	"sync"
)

// BranchError records the failure of one group or package branch.
// Branch failures never abort sibling branches; they are collected
// here and reported after the whole fan-out has completed.
type BranchError struct {
	// Scope is "group" or "package".
	Scope string

	// ID is the entity id of the failing branch.
	ID string

	// Err is the underlying cause.
	Err error
}

func (e BranchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Scope, e.ID, e.Err)
}

// Report collects branch errors from concurrent crawl tasks.
type Report struct {
	mu   sync.Mutex
	errs []BranchError
}

// Add records a branch failure.
func (r *Report) Add(scope, id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, BranchError{Scope: scope, ID: id, Err: err})
}

// Errors returns the collected branch errors in arrival order.
func (r *Report) Errors() []BranchError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BranchError, len(r.errs))
	copy(out, r.errs)
	return out
}

// OK reports whether the run completed without any branch failure.
func (r *Report) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs) == 0
}
