package log

import "time"

// Logger provides leveled structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a key-value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Millis records a duration as fractional milliseconds, which is how frame
// timings are reported everywhere else in framecast.
func Millis(key string, value time.Duration) Field {
	return Field{Key: key, Value: float64(value) / float64(time.Millisecond)}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Component returns a logger that tags every line with component=name.
// Loggers that are not zerolog adapters are wrapped.
func Component(l Logger, name string) Logger {
	if z, ok := l.(*ZerologAdapter); ok {
		return z.With(String("component", name))
	}
	return &tagged{next: l, fields: []Field{String("component", name)}}
}

type tagged struct {
	next   Logger
	fields []Field
}

func (t *tagged) merge(fields []Field) []Field {
	out := make([]Field, 0, len(t.fields)+len(fields))
	out = append(out, t.fields...)
	return append(out, fields...)
}

func (t *tagged) Debug(msg string, fields ...Field) { t.next.Debug(msg, t.merge(fields)...) }
func (t *tagged) Info(msg string, fields ...Field)  { t.next.Info(msg, t.merge(fields)...) }
func (t *tagged) Warn(msg string, fields ...Field)  { t.next.Warn(msg, t.merge(fields)...) }
func (t *tagged) Error(msg string, fields ...Field) { t.next.Error(msg, t.merge(fields)...) }
