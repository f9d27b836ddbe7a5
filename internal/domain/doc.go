// Package domain holds the value types that flow through the frame bridge
// and the sentinel errors every layer shares.
//
// Nothing here touches I/O, devices or logging. The types are:
//
//   - [Frame]: one completed, normalized RGBA8 image with its sequence number
//   - [CameraState]: orbit angles, distance and target of the render camera
//   - [InputEvent] and [PendingInput]: pointer input on the wire and as accumulated
//   - [PerformanceSample] and [PerformanceSnapshot]: timing telemetry
package domain
