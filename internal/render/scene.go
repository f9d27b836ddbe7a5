// Package render contains the built-in demo scene: a few flat-shaded cubes
// orbiting over a floor, rasterized in software with gg.
package render

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/bft-labs/framecast/internal/camera"
	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/ports"
)

// Background is the clear color.
var Background = gg.RGB(0.06, 0.07, 0.10)

var lightDir = mgl64.Vec3{0.4, 0.9, 0.3}.Normalize()

type cube struct {
	orbit  float64 // orbit radius
	phase  float64
	height float64
	size   float64
	spin   float64 // radians per second around Y
	color  gg.RGBA
}

// Scene draws the demo content. It is driven by one goroutine.
type Scene struct {
	settings camera.Settings
	cubes    []cube
	elapsed  float64
	face     text.Face
	hud      bool
}

// Option configures a Scene.
type Option func(*Scene)

// WithoutHUD disables the overlay text.
func WithoutHUD() Option {
	return func(s *Scene) { s.hud = false }
}

// NewScene builds the demo scene viewed through cameras using settings.
func NewScene(settings camera.Settings, opts ...Option) (*Scene, error) {
	s := &Scene{
		settings: settings,
		hud:      true,
		cubes: []cube{
			{orbit: 0, phase: 0, height: 0.5, size: 1.0, spin: 0.6, color: gg.Hex("#4f8cff")},
			{orbit: 2.2, phase: 0, height: 0.35, size: 0.7, spin: -1.1, color: gg.Hex("#ff7a45")},
			{orbit: 2.2, phase: 2 * math.Pi / 3, height: 0.3, size: 0.6, spin: 1.4, color: gg.Hex("#36cfc9")},
			{orbit: 2.2, phase: 4 * math.Pi / 3, height: 0.25, size: 0.5, spin: 0.9, color: gg.Hex("#ffd666")},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hud {
		src, err := text.NewFontSource(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("render: load hud font: %w", err)
		}
		s.face = src.Face(14)
	}
	return s, nil
}

// Advance moves the animation forward.
func (s *Scene) Advance(dt time.Duration) {
	if dt > 0 {
		s.elapsed += dt.Seconds()
	}
}

type face struct {
	pts   [4]mgl64.Vec2
	depth float64
	color gg.RGBA
}

// Draw renders the scene into target from cam.
func (s *Scene) Draw(target ports.RenderTarget, cam domain.CameraState, seq uint64) error {
	dc := target.Context()
	w, h := float64(target.Width()), float64(target.Height())

	view := camera.View(cam)
	viewProj := s.settings.Projection(w / h).Mul4(view)
	eye := camera.Eye(cam)

	dc.ClearWithColor(Background)

	faces := make([]face, 0, 6*(len(s.cubes)+1))
	faces = s.appendFloor(faces, viewProj, view, w, h)
	for _, c := range s.cubes {
		angle := c.phase + s.elapsed*0.5
		model := mgl64.Translate3D(c.orbit*math.Cos(angle), c.height, c.orbit*math.Sin(angle)).
			Mul4(mgl64.HomogRotate3DY(s.elapsed * c.spin)).
			Mul4(mgl64.Scale3D(c.size, c.size, c.size))
		faces = appendCube(faces, model, viewProj, view, eye, c.color, w, h)
	}

	// Painter's algorithm: far to near.
	sort.Slice(faces, func(i, j int) bool { return faces[i].depth > faces[j].depth })
	for _, f := range faces {
		dc.SetRGB(f.color.R, f.color.G, f.color.B)
		dc.MoveTo(f.pts[0].X(), f.pts[0].Y())
		for _, p := range f.pts[1:] {
			dc.LineTo(p.X(), p.Y())
		}
		dc.ClosePath()
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("render: fill: %w", err)
		}
	}

	if s.hud && s.face != nil {
		dc.SetFont(s.face)
		dc.SetRGB(0.85, 0.87, 0.9)
		dc.DrawString(fmt.Sprintf("framecast  #%d", seq), 10, 22)
	}
	return nil
}

func (s *Scene) appendFloor(out []face, viewProj, view mgl64.Mat4, w, h float64) []face {
	const half = 4.0
	corners := [4]mgl64.Vec3{{-half, 0, -half}, {half, 0, -half}, {half, 0, half}, {-half, 0, half}}
	f, ok := project(corners, viewProj, view, w, h)
	if !ok {
		return out
	}
	f.color = gg.RGB(0.16, 0.18, 0.22)
	// Always behind everything standing on it.
	f.depth = math.Inf(1)
	return append(out, f)
}

var (
	unitCorners = [8]mgl64.Vec3{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
	}
	cubeFaces = [6][4]int{
		{4, 5, 6, 7}, // +z
		{1, 0, 3, 2}, // -z
		{5, 1, 2, 6}, // +x
		{0, 4, 7, 3}, // -x
		{3, 7, 6, 2}, // +y
		{0, 1, 5, 4}, // -y
	}
)

func appendCube(out []face, model, viewProj, view mgl64.Mat4, eye mgl64.Vec3, base gg.RGBA, w, h float64) []face {
	var world [8]mgl64.Vec3
	for i, c := range unitCorners {
		world[i] = model.Mul4x1(c.Vec4(1)).Vec3()
	}
	for _, idx := range cubeFaces {
		quad := [4]mgl64.Vec3{world[idx[0]], world[idx[1]], world[idx[2]], world[idx[3]]}
		normal := quad[1].Sub(quad[0]).Cross(quad[2].Sub(quad[0])).Normalize()
		center := quad[0].Add(quad[1]).Add(quad[2]).Add(quad[3]).Mul(0.25)
		if normal.Dot(eye.Sub(center)) <= 0 {
			continue // back face
		}
		f, ok := project(quad, viewProj, view, w, h)
		if !ok {
			continue
		}
		shade := 0.35 + 0.65*math.Max(0, normal.Dot(lightDir))
		f.color = gg.RGB(base.R*shade, base.G*shade, base.B*shade)
		out = append(out, f)
	}
	return out
}

// project maps a world-space quad to screen space. Quads with a corner
// behind the near plane are dropped.
func project(quad [4]mgl64.Vec3, viewProj, view mgl64.Mat4, w, h float64) (face, bool) {
	var f face
	for i, p := range quad {
		clip := viewProj.Mul4x1(p.Vec4(1))
		if clip.W() <= 1e-6 {
			return f, false
		}
		ndc := clip.Vec3().Mul(1 / clip.W())
		f.pts[i] = mgl64.Vec2{
			(ndc.X()*0.5 + 0.5) * w,
			(1 - (ndc.Y()*0.5 + 0.5)) * h,
		}
		f.depth += -view.Mul4x1(p.Vec4(1)).Z() / 4
	}
	return f, true
}
