// Package camera applies pointer input to an orbit camera and derives the
// matrices the scene renders with.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/bft-labs/framecast/internal/domain"
)

// Settings tune how input maps onto the orbit.
type Settings struct {
	RotationSpeed float64 // radians per pointer unit
	ZoomSpeed     float64 // distance per scroll unit
	MinPitch      float64
	MaxPitch      float64
	MinDistance   float64
	MaxDistance   float64
	FovY          float64 // radians
	Near, Far     float64
}

// DefaultSettings matches the interaction feel of the reference viewer.
func DefaultSettings() Settings {
	return Settings{
		RotationSpeed: 0.005,
		ZoomSpeed:     0.5,
		MinPitch:      -1.5,
		MaxPitch:      1.5,
		MinDistance:   2.0,
		MaxDistance:   20.0,
		FovY:          mgl64.DegToRad(45),
		Near:          0.1,
		Far:           100,
	}
}

// Orbit is a camera circling State().Target. It is not safe for concurrent
// use; the render engine owns it.
type Orbit struct {
	state    domain.CameraState
	settings Settings
}

// NewOrbit starts from the default camera state.
func NewOrbit(s Settings) *Orbit {
	return &Orbit{state: domain.DefaultCameraState(), settings: s}
}

// State returns a copy of the current camera state.
func (o *Orbit) State() domain.CameraState {
	return o.state
}

// Apply folds one tick's worth of input into the camera. Pointer motion
// rotates only while the left button is held; scroll always zooms.
func (o *Orbit) Apply(in domain.PendingInput) {
	s := o.settings
	if in.LeftButton && (in.DeltaX != 0 || in.DeltaY != 0) {
		o.state.Yaw -= in.DeltaX * s.RotationSpeed
		o.state.Pitch -= in.DeltaY * s.RotationSpeed
		o.state.Pitch = mgl64.Clamp(o.state.Pitch, s.MinPitch, s.MaxPitch)
	}
	if in.Scroll != 0 {
		o.state.Distance -= in.Scroll * s.ZoomSpeed
		o.state.Distance = mgl64.Clamp(o.state.Distance, s.MinDistance, s.MaxDistance)
	}
}

// Eye returns the camera position in world space.
func Eye(c domain.CameraState) mgl64.Vec3 {
	cp := math.Cos(c.Pitch)
	offset := mgl64.Vec3{
		c.Distance * cp * math.Sin(c.Yaw),
		c.Distance * math.Sin(c.Pitch),
		c.Distance * cp * math.Cos(c.Yaw),
	}
	return c.Target.Add(offset)
}

// View returns the world-to-camera matrix for c.
func View(c domain.CameraState) mgl64.Mat4 {
	return mgl64.LookAtV(Eye(c), c.Target, mgl64.Vec3{0, 1, 0})
}

// Projection returns a perspective projection for the given aspect ratio.
func (s Settings) Projection(aspect float64) mgl64.Mat4 {
	return mgl64.Perspective(s.FovY, aspect, s.Near, s.Far)
}
