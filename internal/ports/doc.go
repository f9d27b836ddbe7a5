// Package ports declares the boundaries between the frame bridge's core and
// the things it drives: the graphics device, the scene, loggers and HTTP
// clients. Adapters live in their own packages and are injected at
// construction time.
package ports
