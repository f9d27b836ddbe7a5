// Package log is the structured logging surface shared by framecast
// components.
//
// Components accept a [Logger] and never import a concrete logging library.
// The zerolog adapter is what the framecast binary wires in; embedders may
// bring their own implementation:
//
//	logger := log.NewZerologAdapter(log.WithLevel("debug"))
//	logger.Info("frame published", log.Uint64("seq", 42))
//
// [NoopLogger] is the library default and the usual choice in tests.
package log
