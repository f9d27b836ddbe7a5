package framecast_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/framecast/internal/device"
	"github.com/bft-labs/framecast/pkg/framecast"
)

// =============================================================================
// Test Utilities
// =============================================================================

// testLogger captures log output in tests.
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, fields ...framecast.LogField) { l.log("DEBUG", msg) }
func (l *testLogger) Info(msg string, fields ...framecast.LogField)  { l.log("INFO", msg) }
func (l *testLogger) Warn(msg string, fields ...framecast.LogField)  { l.log("WARN", msg) }
func (l *testLogger) Error(msg string, fields ...framecast.LogField) { l.log("ERROR", msg) }

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("[%s] %s", level, msg))
}

func (l *testLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	framecast.BasePlugin
	mu            *sync.Mutex
	initOrder     *[]string
	shutdownOrder *[]string
	initError     error
	panicOnInit   bool
	cfg           framecast.PluginConfig
}

func newTrackingPlugin(name string, mu *sync.Mutex, initOrder, shutdownOrder *[]string) *trackingPlugin {
	return &trackingPlugin{
		BasePlugin:    framecast.NewBasePlugin(name),
		mu:            mu,
		initOrder:     initOrder,
		shutdownOrder: shutdownOrder,
	}
}

func (p *trackingPlugin) Initialize(ctx context.Context, cfg framecast.PluginConfig) error {
	if p.panicOnInit {
		panic("intentional panic during initialization")
	}
	if p.initError != nil {
		return p.initError
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.initOrder = append(*p.initOrder, p.Name())
	p.cfg = cfg
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.shutdownOrder = append(*p.shutdownOrder, p.Name())
	return nil
}

// eventTracker records bridge events.
type eventTracker struct {
	framecast.BaseEventHandler
	mu        sync.Mutex
	states    []framecast.StateChangeEvent
	published int
	errors    []framecast.CaptureErrorEvent
}

func (e *eventTracker) OnStateChange(ev framecast.StateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, ev)
}

func (e *eventTracker) OnFramePublished(framecast.FramePublishedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.published++
}

func (e *eventTracker) OnCaptureError(ev framecast.CaptureErrorEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, ev)
}

func (e *eventTracker) Published() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published
}

func (e *eventTracker) States() []framecast.StateChangeEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]framecast.StateChangeEvent(nil), e.states...)
}

func testConfig(w, h int) framecast.Config {
	return framecast.Config{
		Width:           w,
		Height:          h,
		TargetFPS:       120,
		ListenAddr:      "127.0.0.1:0",
		DisableHUD:      true,
		ShutdownTimeout: 5 * time.Second,
	}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func startBridge(t *testing.T, cfg framecast.Config, opts ...framecast.Option) *framecast.Bridge {
	t.Helper()
	opts = append(opts, framecast.WithListener(listen(t)))
	b, err := framecast.New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func fetch(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

// =============================================================================
// Bridge Tests
// =============================================================================

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  framecast.Config
	}{
		{"negative width", framecast.Config{Width: -1}},
		{"huge height", framecast.Config{Height: 100000}},
		{"negative fps", framecast.Config{TargetFPS: -5}},
		{"quality", framecast.Config{Quality: 101}},
		{"format", framecast.Config{Format: "gif"}},
		{"depth", framecast.Config{ReadbackDepth: 99}},
		{"preroll", framecast.Config{PreRollFrames: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := framecast.New(tc.cfg)
			assert.ErrorIs(t, err, framecast.ErrInvalidConfig)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := framecast.DefaultConfig()
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.Equal(t, 60.0, cfg.TargetFPS)
	assert.Equal(t, "jpeg", cfg.Format)
	assert.Equal(t, 85, cfg.Quality)
	assert.Equal(t, 30, cfg.SampleWindow)
	assert.NoError(t, cfg.Validate())
}

// The end-to-end scenario: NotReady first, then a decodable 800x600 frame,
// then stats that reflect at least 30 published frames.
func TestBridge_EndToEnd(t *testing.T) {
	cfg := testConfig(800, 600)
	cfg.DisableHUD = false
	b, err := framecast.New(cfg, framecast.WithListener(listen(t)))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frame", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	_, err = b.LatestFrame()
	assert.ErrorIs(t, err, framecast.ErrNotReady)

	require.NoError(t, b.Start(context.Background()))
	defer func() { assert.NoError(t, b.Stop()) }()

	require.Eventually(t, func() bool {
		_, err := b.LatestFrame()
		return err == nil
	}, 10*time.Second, 10*time.Millisecond)

	base := "http://" + b.Addr()
	resp, body := fetch(t, base+"/frame")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := jpeg.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())

	require.Eventually(t, func() bool {
		return b.Stats().FrameCount >= 30
	}, 30*time.Second, 20*time.Millisecond)
	snap := b.Stats()
	assert.Greater(t, snap.FPS, 0.0)
	assert.GreaterOrEqual(t, snap.TicksExecuted, snap.FrameCount)
	assert.Equal(t, framecast.StateRunning, b.Status())
}

func TestBridge_InputMovesCamera(t *testing.T) {
	b := startBridge(t, testConfig(64, 48))

	require.NoError(t, b.SubmitInput(framecast.InputEvent{DeltaX: 10, LeftButton: true}))
	require.NoError(t, b.SubmitInput(framecast.InputEvent{DeltaX: -10, LeftButton: true}))
	assert.ErrorIs(t, b.SubmitInput(framecast.InputEvent{DeltaX: 1e12}), framecast.ErrMalformedInput)

	snap := b.Stats()
	assert.Equal(t, uint64(2), snap.InputEvents)
	assert.Equal(t, uint64(1), snap.InputRejected)
}

func TestBridge_SetEncoding(t *testing.T) {
	b := startBridge(t, testConfig(64, 48))
	require.Eventually(t, func() bool {
		_, err := b.LatestFrame()
		return err == nil
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, b.SetEncoding("png", 0))
	resp, body := fetch(t, "http://"+b.Addr()+"/frame")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)

	assert.ErrorIs(t, b.SetEncoding("bmp", 50), framecast.ErrInvalidConfig)
	assert.ErrorIs(t, b.SetTargetFPS(0), framecast.ErrInvalidConfig)
}

func TestBridge_StartAlreadyRunning(t *testing.T) {
	b := startBridge(t, testConfig(32, 32))
	assert.ErrorIs(t, b.Start(context.Background()), framecast.ErrAlreadyRunning)
}

func TestBridge_StopAlreadyStopped(t *testing.T) {
	b, err := framecast.New(testConfig(32, 32))
	require.NoError(t, err)
	assert.ErrorIs(t, b.Stop(), framecast.ErrNotRunning)
}

func TestBridge_Restart(t *testing.T) {
	b, err := framecast.New(testConfig(32, 32))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Start(context.Background()))
		require.Eventually(t, func() bool { return b.Status() == framecast.StateRunning }, time.Second, time.Millisecond)
		assert.NotEqual(t, "127.0.0.1:0", b.Addr())
		require.NoError(t, b.Stop())
		assert.Equal(t, framecast.StateStopped, b.Status())
	}
}

func TestBridge_RestartPublishesNewFrames(t *testing.T) {
	b, err := framecast.New(testConfig(32, 32))
	require.NoError(t, err)

	require.NoError(t, b.Start(context.Background()))
	require.Eventually(t, func() bool {
		f, err := b.LatestFrame()
		return err == nil && f.Seq >= 60
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, b.Stop())

	before, err := b.LatestFrame()
	require.NoError(t, err)

	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop() })

	require.Eventually(t, func() bool {
		f, err := b.LatestFrame()
		return err == nil && f.Seq > before.Seq
	}, 2*time.Second, time.Millisecond, "no frame published after restart")
}

func TestBridge_DeviceLossCrashes(t *testing.T) {
	dev, err := device.NewSoftware(32, 32, device.WithFaultFunc(func(seq uint64) error {
		if seq >= 5 {
			return fmt.Errorf("adapter removed: %w", framecast.ErrDeviceLost)
		}
		return nil
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	events := &eventTracker{}
	b, err := framecast.New(testConfig(32, 32),
		framecast.WithDevice(dev),
		framecast.WithEventHandler(events),
		framecast.WithListener(listen(t)))
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not crash")
	}

	assert.Equal(t, framecast.StateCrashed, b.Status())
	assert.True(t, framecast.IsFatal(b.Err()))
	assert.ErrorIs(t, b.Stop(), framecast.ErrNotRunning)

	states := events.States()
	require.NotEmpty(t, states)
	assert.Equal(t, framecast.StateCrashed, states[len(states)-1].Current)
	assert.GreaterOrEqual(t, events.Published(), 1)

	// The last good frame is still available.
	f, err := b.LatestFrame()
	require.NoError(t, err)
	assert.Less(t, f.Seq, uint64(5))
}

// =============================================================================
// Plugin Lifecycle Tests
// =============================================================================

func TestPlugin_InitializationOrder(t *testing.T) {
	var (
		mu                       sync.Mutex
		initOrder, shutdownOrder []string
	)
	p1 := newTrackingPlugin("first", &mu, &initOrder, &shutdownOrder)
	p2 := newTrackingPlugin("second", &mu, &initOrder, &shutdownOrder)
	p3 := newTrackingPlugin("third", &mu, &initOrder, &shutdownOrder)

	b, err := framecast.New(testConfig(32, 32),
		framecast.WithPlugin(p1), framecast.WithPlugin(p2), framecast.WithPlugin(p3),
		framecast.WithListener(listen(t)))
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Stop())

	assert.Equal(t, []string{"first", "second", "third"}, initOrder)
	assert.Equal(t, []string{"third", "second", "first"}, shutdownOrder)

	assert.Equal(t, b.InstanceID(), p1.cfg.InstanceID)
	assert.NotNil(t, p1.cfg.Stats)
	assert.NotNil(t, p1.cfg.Tuner)
}

func TestPlugin_InitializationFailure_PreventsStart(t *testing.T) {
	var (
		mu                       sync.Mutex
		initOrder, shutdownOrder []string
	)
	ok := newTrackingPlugin("ok", &mu, &initOrder, &shutdownOrder)
	bad := newTrackingPlugin("bad", &mu, &initOrder, &shutdownOrder)
	bad.initError = errors.New("init failed")

	b, err := framecast.New(testConfig(32, 32),
		framecast.WithPlugin(ok), framecast.WithPlugin(bad),
		framecast.WithListener(listen(t)))
	require.NoError(t, err)

	err = b.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, framecast.StateCrashed, b.Status())
	assert.Equal(t, []string{"ok"}, initOrder)
	assert.Equal(t, []string{"ok"}, shutdownOrder, "plugins that did initialize are shut down")
}

func TestPlugin_PanicDuringInit(t *testing.T) {
	var (
		mu                       sync.Mutex
		initOrder, shutdownOrder []string
	)
	p := newTrackingPlugin("panicky", &mu, &initOrder, &shutdownOrder)
	p.panicOnInit = true

	logger := &testLogger{}
	b, err := framecast.New(testConfig(32, 32),
		framecast.WithPlugin(p), framecast.WithLogger(logger),
		framecast.WithListener(listen(t)))
	require.NoError(t, err)

	err = b.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Contains(t, logger.Messages(), "[ERROR] plugin initialization failed")
}

func TestPlugin_TunerAppliesLive(t *testing.T) {
	var (
		mu                       sync.Mutex
		initOrder, shutdownOrder []string
	)
	p := newTrackingPlugin("tuner", &mu, &initOrder, &shutdownOrder)
	startBridge(t, testConfig(32, 32), framecast.WithPlugin(p))

	assert.NoError(t, p.cfg.Tuner.SetTargetFPS(15))
	assert.NoError(t, p.cfg.Tuner.SetEncoding("jpeg", 40))
	assert.Error(t, p.cfg.Tuner.SetEncoding("jpeg", 400))
}

// =============================================================================
// BasePlugin / State Tests
// =============================================================================

func TestBasePlugin_DefaultBehavior(t *testing.T) {
	bp := framecast.NewBasePlugin("test-base")
	assert.Equal(t, "test-base", bp.Name())
	assert.NoError(t, bp.Initialize(context.Background(), framecast.PluginConfig{}))
	assert.NoError(t, bp.Shutdown(context.Background()))
}

func TestBaseEventHandler_DefaultBehavior(t *testing.T) {
	var h framecast.BaseEventHandler
	h.OnStateChange(framecast.StateChangeEvent{})
	h.OnFramePublished(framecast.FramePublishedEvent{})
	h.OnCaptureError(framecast.CaptureErrorEvent{})
}

func TestState_StringRepresentation(t *testing.T) {
	tests := []struct {
		state    framecast.State
		expected string
	}{
		{framecast.StateStopped, "Stopped"},
		{framecast.StateStarting, "Starting"},
		{framecast.StateRunning, "Running"},
		{framecast.StateStopping, "Stopping"},
		{framecast.StateCrashed, "Crashed"},
		{framecast.State(99), "Unknown"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.state.String())
	}
}

func TestState_Predicates(t *testing.T) {
	assert.True(t, framecast.StateStopped.CanStart())
	assert.True(t, framecast.StateCrashed.CanStart())
	assert.False(t, framecast.StateRunning.CanStart())

	assert.True(t, framecast.StateRunning.CanStop())
	assert.True(t, framecast.StateStarting.CanStop())
	assert.False(t, framecast.StateCrashed.CanStop())

	assert.True(t, framecast.StateRunning.IsRunning())
	assert.False(t, framecast.StateStarting.IsRunning())
}
