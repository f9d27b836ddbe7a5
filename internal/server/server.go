// Package server exposes the latest frame, stats and the input relay over
// HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zserge/metric"

	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/encode"
	"github.com/bft-labs/framecast/internal/ports"
)

// Server defaults.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	maxInputBody             = 4 << 10
)

// FrameEncoder compresses frames for the frame endpoints.
type FrameEncoder interface {
	Encode(f *domain.Frame, o encode.Options) ([]byte, encode.Options, error)
}

// InputSink accepts input events from clients.
type InputSink interface {
	Submit(ev domain.InputEvent) error
}

// Deps are the collaborators the server reads from and writes to.
type Deps struct {
	Frames   ports.FrameSource
	Encoder  FrameEncoder
	Input    InputSink
	Recorder ports.SampleRecorder

	// Stats returns the current performance snapshot.
	Stats func() domain.PerformanceSnapshot
	// Metrics feeds /debug/metrics. May be nil.
	Metrics func() map[string]metric.Metric
	// Status names the bridge lifecycle state for /healthz. May be nil.
	Status func() string

	// Width and Height are the configured render size.
	Width, Height int

	Logger ports.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithReadHeaderTimeout overrides DefaultReadHeaderTimeout.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readHeaderTimeout = d
		}
	}
}

// WithClock overrides the clock used for serve timings.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the HTTP surface of the bridge.
type Server struct {
	Deps

	readHeaderTimeout time.Duration
	now               func() time.Time
	handler           http.Handler
	upgrader          websocket.Upgrader

	mu      sync.Mutex
	httpSrv *http.Server
	sockets map[*websocket.Conn]struct{}
}

// New builds a server and its routes.
func New(deps Deps, opts ...Option) *Server {
	if deps.Logger == nil {
		deps.Logger = ports.NoopLogger{}
	}
	s := &Server{
		Deps:              deps,
		readHeaderTimeout: DefaultReadHeaderTimeout,
		now:               time.Now,
		sockets:           make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.withLogging(s.withCORS(s.routes()))
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /frame", s.handleImage(encode.Options{}))
	mux.HandleFunc("GET /frame.jpg", s.handleImage(encode.Options{Format: encode.FormatJPEG}))
	mux.HandleFunc("GET /frame.png", s.handleImage(encode.Options{Format: encode.FormatPNG}))
	mux.HandleFunc("GET /frame.raw", s.handleRaw)

	mux.HandleFunc("GET /api/frame", s.handleStructuredFrame)
	mux.HandleFunc("POST /api/frame", s.handleStructuredFrame)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/render-size", s.handleRenderSize)
	mux.HandleFunc("POST /api/input", s.handleInput)
	mux.HandleFunc("GET /ws/input", s.handleInputSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.Metrics != nil {
		mux.Handle("GET /debug/metrics", metric.Handler(s.Metrics))
	}
	return mux
}

// Handler returns the root handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is cancelled or Shutdown is
// called. A clean stop returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		_ = s.Shutdown(sctx)
	})
	defer stop()

	s.Logger.Info("http server listening", ports.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes input sockets and waits for
// in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	sockets := make([]*websocket.Conn, 0, len(s.sockets))
	for c := range s.sockets {
		sockets = append(sockets, c)
	}
	s.mu.Unlock()

	for _, c := range sockets {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
