package ports

import "github.com/bft-labs/framecast/pkg/log"

// Logger is the structured logger every component accepts.
type Logger = log.Logger

// NoopLogger discards everything.
type NoopLogger = log.NoopLogger

// Field is a structured log field.
type Field = log.Field

// Field constructors, re-exported so internal packages import one place.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Uint64   = log.Uint64
	Float64  = log.Float64
	Bool     = log.Bool
	Duration = log.Duration
	Millis   = log.Millis
	Err      = log.Err
	Any      = log.Any

	// Component tags every entry from the returned logger with a component name.
	Component = log.Component
)
