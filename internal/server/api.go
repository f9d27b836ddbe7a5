package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/ports"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

type errorBody struct {
	Error string `json:"error" msgpack:"error"`
}

// RenderSize is the render resolution record.
type RenderSize struct {
	Width  int `json:"width" msgpack:"width"`
	Height int `json:"height" msgpack:"height"`
}

type healthBody struct {
	Status string `json:"status"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var snap domain.PerformanceSnapshot
	if s.Stats != nil {
		snap = s.Stats()
	}
	writeNegotiated(w, r, http.StatusOK, snap)
}

func (s *Server) handleRenderSize(w http.ResponseWriter, r *http.Request) {
	writeNegotiated(w, r, http.StatusOK, RenderSize{Width: s.Width, Height: s.Height})
}

// handleInput accepts one InputEvent. Bodies that do not decode are a
// client error; events that decode but fail validation are dropped by the
// relay and still answered with 204.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInputBody+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read body"})
		return
	}
	if len(body) > maxInputBody {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "input event too large"})
		return
	}

	ev, err := decodeInput(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid input event"})
		return
	}
	s.submit(ev)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) submit(ev domain.InputEvent) {
	if s.Input == nil {
		return
	}
	if err := s.Input.Submit(ev); err != nil {
		if errors.Is(err, domain.ErrMalformedInput) {
			s.Logger.Debug("ignoring malformed input", ports.Err(err))
			return
		}
		s.Logger.Warn("input submit failed", ports.Err(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "running"
	if s.Status != nil {
		status = s.Status()
	}
	writeJSON(w, http.StatusOK, healthBody{Status: status})
}

func decodeInput(contentType string, body []byte) (domain.InputEvent, error) {
	var ev domain.InputEvent
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == contentTypeMsgpack || mt == "application/x-msgpack" {
		return ev, msgpack.Unmarshal(body, &ev)
	}
	return ev, json.Unmarshal(body, &ev)
}

func wantsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mt == contentTypeMsgpack || mt == "application/x-msgpack" {
			return true
		}
	}
	return false
}

func marshal(r *http.Request, v any) ([]byte, string, error) {
	if wantsMsgpack(r) {
		b, err := msgpack.Marshal(v)
		return b, contentTypeMsgpack, err
	}
	b, err := json.Marshal(v)
	return b, contentTypeJSON, err
}

func writeNegotiated(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, ct, err := marshal(r, v)
	if err != nil {
		http.Error(w, "serialization failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeNegotiated(w, r, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
