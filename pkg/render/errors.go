package render

// renderError is a simple error type for the render package
type renderError string

func (e renderError) Error() string { return string(e) }

// Errors for render operations
const (
	ErrSessionClosed = renderError("session is closed")
	ErrNoPhoto       = renderError("job has no photo")
)
