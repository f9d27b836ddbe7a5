package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/encode"
	"github.com/bft-labs/framecast/internal/ports"
)

const notReadyBody = "Frame not ready"

// FrameResponse is the structured frame record.
type FrameResponse struct {
	Data   string `json:"data" msgpack:"data"`
	Width  int    `json:"width" msgpack:"width"`
	Height int    `json:"height" msgpack:"height"`
	Format string `json:"format" msgpack:"format"`
	Seq    uint64 `json:"seq" msgpack:"seq"`
}

// handleImage serves the latest frame as an encoded image. base fixes the
// format for extension routes; quality and scale come from the query.
func (s *Server) handleImage(base encode.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := parseEncodeQuery(r, base)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		start := s.now()
		f, err := s.Frames.Latest()
		got := s.now()
		if err != nil {
			s.writeNotReady(w, err, false)
			return
		}

		data, used, err := s.Encoder.Encode(f, opts)
		encoded := s.now()
		if err != nil {
			s.Logger.Warn("frame encoding failed", ports.Uint64("seq", f.Seq), ports.Err(err))
			http.Error(w, "Frame encoding failed", http.StatusInternalServerError)
			return
		}

		h := w.Header()
		h.Set("Content-Type", used.Format.ContentType())
		h.Set("Content-Length", strconv.Itoa(len(data)))
		width, height := encode.ScaledSize(f.Width, f.Height, used.Scale)
		setFrameHeaders(h, f, width, height)
		_, _ = w.Write(data)

		s.record(domain.PerformanceSample{
			FrameIndex: f.Seq,
			At:         encoded,
			GetFrame:   got.Sub(start),
			Encode:     encoded.Sub(got),
			Bytes:      len(data),
		})
	}
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	f, err := s.Frames.Latest()
	got := s.now()
	if err != nil {
		s.writeNotReady(w, err, false)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.Itoa(len(f.Pix)))
	setFrameHeaders(h, f, f.Width, f.Height)
	_, _ = w.Write(f.Pix)

	s.record(domain.PerformanceSample{
		FrameIndex: f.Seq,
		At:         got,
		GetFrame:   got.Sub(start),
		Bytes:      len(f.Pix),
	})
}

// handleStructuredFrame serves the frame as a base64 record, JSON by
// default or msgpack when the client asks for it.
func (s *Server) handleStructuredFrame(w http.ResponseWriter, r *http.Request) {
	opts, err := parseEncodeQuery(r, encode.Options{})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	start := s.now()
	f, err := s.Frames.Latest()
	got := s.now()
	if err != nil {
		s.writeNotReady(w, err, true)
		return
	}

	data, used, err := s.Encoder.Encode(f, opts)
	encoded := s.now()
	if err != nil {
		s.Logger.Warn("frame encoding failed", ports.Uint64("seq", f.Seq), ports.Err(err))
		writeError(w, r, http.StatusInternalServerError, "frame encoding failed")
		return
	}

	width, height := encode.ScaledSize(f.Width, f.Height, used.Scale)
	body, contentType, err := marshal(r, FrameResponse{
		Data:   base64.StdEncoding.EncodeToString(data),
		Width:  width,
		Height: height,
		Format: string(used.Format),
		Seq:    f.Seq,
	})
	serialized := s.now()
	if err != nil {
		s.Logger.Error("frame record serialization failed", ports.Err(err))
		writeError(w, r, http.StatusInternalServerError, "serialization failed")
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-store")
	_, _ = w.Write(body)

	s.record(domain.PerformanceSample{
		FrameIndex: f.Seq,
		At:         serialized,
		GetFrame:   got.Sub(start),
		Encode:     encoded.Sub(got),
		Serialize:  serialized.Sub(encoded),
		Bytes:      len(body),
	})
}

func (s *Server) writeNotReady(w http.ResponseWriter, err error, structured bool) {
	if !errors.Is(err, domain.ErrNotReady) {
		s.Logger.Error("frame lookup failed", ports.Err(err))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "1")
	if structured {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "frame not ready"})
		return
	}
	http.Error(w, notReadyBody, http.StatusServiceUnavailable)
}

func (s *Server) record(sample domain.PerformanceSample) {
	if s.Recorder != nil {
		s.Recorder.RecordServe(sample)
	}
}

// setFrameHeaders describes the payload; width and height are its encoded
// size, which differs from f when scaled.
func setFrameHeaders(h http.Header, f *domain.Frame, width, height int) {
	h.Set("X-Frame-Width", strconv.Itoa(width))
	h.Set("X-Frame-Height", strconv.Itoa(height))
	h.Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	h.Set("X-Frame-Captured-At", f.CapturedAt.UTC().Format(time.RFC3339Nano))
	h.Set("Cache-Control", "no-store")
}

func parseEncodeQuery(r *http.Request, base encode.Options) (encode.Options, error) {
	q := r.URL.Query()
	opts := base
	if v := q.Get("format"); v != "" && base.Format == "" {
		f, err := encode.ParseFormat(v)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	if v := q.Get("quality"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return opts, errors.New("quality must be an integer in 1..100")
		}
		opts.Quality = n
	}
	if v := q.Get("scale"); v != "" {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil || x <= 0 || x > 1 {
			return opts, errors.New("scale must be in (0, 1]")
		}
		opts.Scale = x
	}
	return opts, nil
}
