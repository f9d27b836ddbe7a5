package domain

import "errors"

// Errors returned through the public API. Check with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("framecast: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("framecast: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("framecast: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("framecast: invalid configuration")

	// ErrNotReady means no frame has been published yet.
	ErrNotReady = errors.New("framecast: frame not ready")

	// ErrCapture wraps a failed device-to-host copy. The previously
	// published frame stays in place.
	ErrCapture = errors.New("framecast: capture failed")

	// ErrDeviceLost is unrecoverable; the render engine stops on it.
	ErrDeviceLost = errors.New("framecast: device lost")

	// ErrEncode wraps an image compression failure.
	ErrEncode = errors.New("framecast: encode failed")

	// ErrMalformedInput marks an input event with non-finite or
	// out-of-range values.
	ErrMalformedInput = errors.New("framecast: malformed input")
)
