package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication and session errors
	ErrAuthFailed   = fmt.Errorf("authentication failed")
	ErrNoSession    = fmt.Errorf("no active session")
	ErrTokenExpired = fmt.Errorf("access token expired")
	ErrTimeout      = fmt.Errorf("operation timed out")

	// Remote service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNetwork            = fmt.Errorf("network request failed")
	ErrConflict           = fmt.Errorf("resource already exists")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrDecoding           = fmt.Errorf("response decoding failed")

	// Feed errors
	ErrFeedUnreachable = fmt.Errorf("feed unreachable")
	ErrFeedParse       = fmt.Errorf("feed parse failed")

	// Local store errors
	ErrLocalStore = fmt.Errorf("local store failure")

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
