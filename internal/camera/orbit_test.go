package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/input"
)

func TestApply_RotatesOnlyWithLeftButton(t *testing.T) {
	o := NewOrbit(DefaultSettings())
	start := o.State()

	o.Apply(domain.PendingInput{DeltaX: 100, DeltaY: 20})
	assert.Equal(t, start, o.State())

	o.Apply(domain.PendingInput{DeltaX: 100, DeltaY: 20, LeftButton: true})
	got := o.State()
	assert.InDelta(t, start.Yaw-0.5, got.Yaw, 1e-12)
	assert.InDelta(t, start.Pitch-0.1, got.Pitch, 1e-12)
}

func TestApply_ClampsPitchAndDistance(t *testing.T) {
	s := DefaultSettings()
	o := NewOrbit(s)

	o.Apply(domain.PendingInput{DeltaY: -5000, LeftButton: true})
	assert.Equal(t, s.MaxPitch, o.State().Pitch)

	o.Apply(domain.PendingInput{DeltaY: 5000, LeftButton: true})
	assert.Equal(t, s.MinPitch, o.State().Pitch)

	o.Apply(domain.PendingInput{Scroll: 1000})
	assert.Equal(t, s.MinDistance, o.State().Distance)

	o.Apply(domain.PendingInput{Scroll: -1000})
	assert.Equal(t, s.MaxDistance, o.State().Distance)
}

// K events relayed before one consumption move the camera exactly as one
// event carrying the summed delta.
func TestCoalescingLaw(t *testing.T) {
	deltas := []domain.InputEvent{
		{DeltaX: 3, DeltaY: 1, ScrollDelta: 0.25, LeftButton: true},
		{DeltaX: -7, DeltaY: 2, ScrollDelta: 0.5, LeftButton: true},
		{DeltaX: 12, DeltaY: -4, ScrollDelta: -0.25, LeftButton: true},
	}

	relay := input.NewRelay()
	var sum domain.InputEvent
	for _, d := range deltas {
		assert.NoError(t, relay.Submit(d))
		sum.DeltaX += d.DeltaX
		sum.DeltaY += d.DeltaY
		sum.ScrollDelta += d.ScrollDelta
	}
	sum.LeftButton = true

	coalesced := NewOrbit(DefaultSettings())
	coalesced.Apply(relay.Consume())

	single := input.NewRelay()
	assert.NoError(t, single.Submit(sum))
	reference := NewOrbit(DefaultSettings())
	reference.Apply(single.Consume())

	assert.InDelta(t, reference.State().Yaw, coalesced.State().Yaw, 1e-12)
	assert.InDelta(t, reference.State().Pitch, coalesced.State().Pitch, 1e-12)
	assert.InDelta(t, reference.State().Distance, coalesced.State().Distance, 1e-12)
}

func TestOppositeDeltasCancelWithinOneTick(t *testing.T) {
	relay := input.NewRelay()
	o := NewOrbit(DefaultSettings())
	before := o.State().Yaw

	assert.NoError(t, relay.Submit(domain.InputEvent{DeltaX: 10, LeftButton: true}))
	assert.NoError(t, relay.Submit(domain.InputEvent{DeltaX: -10, LeftButton: true}))
	o.Apply(relay.Consume())

	assert.Equal(t, before, o.State().Yaw)
}

func TestEye_DefaultPosition(t *testing.T) {
	c := domain.DefaultCameraState()
	eye := Eye(c)

	assert.InDelta(t, c.Distance, eye.Len(), 1e-9)
	assert.InDelta(t, 0, eye.X(), 1e-9)
	assert.Greater(t, eye.Y(), 0.0)
	assert.Greater(t, eye.Z(), 0.0)
}

func TestView_LooksAtTarget(t *testing.T) {
	c := domain.DefaultCameraState()
	c.Target = mgl64.Vec3{1, 2, 3}

	v := View(c)
	p := v.Mul4x1(c.Target.Vec4(1))

	// Target sits on the camera's forward axis, Distance units ahead.
	assert.InDelta(t, 0, p.X(), 1e-9)
	assert.InDelta(t, 0, p.Y(), 1e-9)
	assert.InDelta(t, -c.Distance, p.Z(), 1e-9)
}
