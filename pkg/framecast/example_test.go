package framecast_test

import (
	"context"
	"fmt"
	"net"

	"github.com/bft-labs/framecast/pkg/framecast"
)

// ExampleNew shows how to embed a bridge in an application.
func ExampleNew() {
	cfg := framecast.Config{
		Width:     320,
		Height:    240,
		TargetFPS: 30,
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Printf("listen: %v\n", err)
		return
	}

	bridge, err := framecast.New(cfg, framecast.WithListener(ln))
	if err != nil {
		fmt.Printf("failed to create bridge: %v\n", err)
		return
	}

	if err := bridge.Start(context.Background()); err != nil {
		fmt.Printf("failed to start: %v\n", err)
		return
	}

	status := bridge.Status()
	fmt.Printf("Status is valid: %v\n", status == framecast.StateStarting || status == framecast.StateRunning)

	_ = bridge.Stop()
	fmt.Println(bridge.Status())

	// Output:
	// Status is valid: true
	// Stopped
}

// Example_withEventHandler shows how to observe published frames.
func Example_withEventHandler() {
	handler := &frameCounter{}

	bridge, err := framecast.New(framecast.Config{Width: 64, Height: 48},
		framecast.WithEventHandler(handler))
	if err != nil {
		fmt.Printf("failed to create bridge: %v\n", err)
		return
	}

	_ = bridge
}

type frameCounter struct {
	framecast.BaseEventHandler
	frames int
}

func (h *frameCounter) OnFramePublished(ev framecast.FramePublishedEvent) {
	h.frames++
}

func (h *frameCounter) OnStateChange(ev framecast.StateChangeEvent) {
	fmt.Printf("State changed: %s -> %s (reason: %s)\n", ev.Previous, ev.Current, ev.Reason)
}

// ExampleBridge_SetTargetFPS shows a live rate change.
func ExampleBridge_SetTargetFPS() {
	bridge, err := framecast.New(framecast.DefaultConfig())
	if err != nil {
		fmt.Printf("failed to create bridge: %v\n", err)
		return
	}

	fmt.Println(bridge.SetTargetFPS(30) == nil)
	fmt.Println(bridge.SetTargetFPS(-1) != nil)

	// Output:
	// true
	// true
}
