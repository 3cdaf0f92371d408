package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Provider and network errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUnavailable        = fmt.Errorf("content unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Transfer errors
	ErrStalled       = fmt.Errorf("download stalled")
	ErrShortRead     = fmt.Errorf("download ended early")
	ErrEngineMissing = fmt.Errorf("transcoding engine not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrUnknownProvider = fmt.Errorf("unknown song provider")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
