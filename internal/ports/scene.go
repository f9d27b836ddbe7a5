package ports

import (
	"time"

	"github.com/bft-labs/framecast/internal/domain"
)

// Scene is the content being rendered. It is driven from the render engine
// goroutine only.
type Scene interface {
	// Advance steps animation by dt.
	Advance(dt time.Duration)

	// Draw renders the current state as seen by cam into target.
	Draw(target RenderTarget, cam domain.CameraState, seq uint64) error
}
