// Package framecast provides an embeddable headless frame bridge.
//
// A Bridge renders a scene offscreen at a capped rate, reads every frame
// back into host memory asynchronously and serves the most recent one to
// display clients over HTTP. Clients steer the camera by posting pointer
// input, which is folded into the next render tick.
//
// # Basic Usage
//
//	cfg := framecast.Config{
//	    Width:      800,
//	    Height:     600,
//	    TargetFPS:  60,
//	    ListenAddr: "127.0.0.1:7878",
//	}
//
//	bridge, err := framecast.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := bridge.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	// ... run until shutdown signal ...
//	if err := bridge.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Endpoints
//
//   - GET /frame, /frame.jpg, /frame.png, /frame.raw: the latest frame as
//     image bytes; 503 until the first frame is published.
//   - GET|POST /api/frame: the latest frame as a base64 record, JSON or
//     msgpack depending on Accept.
//   - GET /api/stats: rolling performance averages.
//   - GET /api/render-size: the render resolution.
//   - POST /api/input and GET /ws/input: camera input.
//   - GET /debug/metrics, GET /healthz.
//
// # Lifecycle States
//
// A Bridge is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Losing the render device crashes the
// bridge; [Bridge.Done] is closed and [Bridge.Err] reports why.
//
// # Plugins
//
// Plugins receive a [PluginConfig] with the stats accessor and a [Tuner]
// for live changes:
//
//	bridge, err := framecast.New(cfg,
//	    framecast.WithPlugin(configwatcher.New(configwatcher.DefaultConfig())),
//	    framecast.WithPlugin(mqttstats.New(mqttCfg)),
//	)
package framecast
