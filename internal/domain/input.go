package domain

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxInputDelta bounds a single event's pointer and scroll deltas.
const MaxInputDelta = 10000.0

// InputEvent is one pointer or wheel report from a display client. Button
// flags are level-triggered: they describe the state at send time.
type InputEvent struct {
	DeltaX      float64 `json:"deltaX" msgpack:"deltaX"`
	DeltaY      float64 `json:"deltaY" msgpack:"deltaY"`
	ScrollDelta float64 `json:"scrollDelta" msgpack:"scrollDelta"`
	LeftButton  bool    `json:"leftButton" msgpack:"leftButton"`
	RightButton bool    `json:"rightButton" msgpack:"rightButton"`
}

// Validate rejects non-finite and out-of-range deltas.
func (e InputEvent) Validate() error {
	for _, v := range [...]struct {
		name string
		val  float64
	}{
		{"deltaX", e.DeltaX},
		{"deltaY", e.DeltaY},
		{"scrollDelta", e.ScrollDelta},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrMalformedInput, v.name)
		}
		if math.Abs(v.val) > MaxInputDelta {
			return fmt.Errorf("%w: %s=%g exceeds %g", ErrMalformedInput, v.name, v.val, MaxInputDelta)
		}
	}
	return nil
}

// PendingInput is input accumulated since the last render tick consumed it.
type PendingInput struct {
	DeltaX      float64
	DeltaY      float64
	Scroll      float64
	LeftButton  bool
	RightButton bool
}

// IsZero reports whether there is no accumulated motion.
func (p PendingInput) IsZero() bool {
	return p.DeltaX == 0 && p.DeltaY == 0 && p.Scroll == 0
}

// CameraState describes an orbit camera around Target.
type CameraState struct {
	Yaw      float64
	Pitch    float64
	Distance float64
	Target   mgl64.Vec3
}

// DefaultCameraState is the camera framecast starts with.
func DefaultCameraState() CameraState {
	return CameraState{
		Yaw:      0,
		Pitch:    0.4,
		Distance: 6.5,
	}
}
