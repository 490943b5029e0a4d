package ckan

import "fmt"

// Error types reported by CKAN in the envelope's __type field.
const (
	TypeNotFound      = "Not Found Error"
	TypeNotAuthorized = "Authorization Error"
	TypeValidation    = "Validation Error"
	TypeSearchQuery   = "Search Query Error"
)

// APIError is an application-level failure reported by the catalog:
// the HTTP exchange worked, but the action itself failed. It carries
// the remote's own error taxonomy so callers can tell a missing
// package from an authorization problem.
type APIError struct {
	// Action is the failing action name, e.g. "package_show".
	Action string

	// URL is the full action URL that was called.
	URL string

	// Type is the remote error class (see the Type constants).
	Type string

	// Message is the remote's human-readable description.
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("ckan: %s: %s: %s", e.Action, e.Type, e.Message)
	}
	return fmt.Sprintf("ckan: %s: %s", e.Action, e.Message)
}

// IsNotFound reports whether the error class indicates a missing entity.
func (e *APIError) IsNotFound() bool { return e.Type == TypeNotFound }
