package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/framecast/internal/domain"
	"github.com/bft-labs/framecast/internal/ports"
)

const (
	socketPongWait   = 60 * time.Second
	socketPingPeriod = socketPongWait * 9 / 10
)

// handleInputSocket streams input events from one client. Text messages
// are JSON events and binary messages are msgpack events. Messages that do
// not decode are dropped.
func (s *Server) handleInputSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.Logger.Debug("websocket upgrade failed", ports.Err(err))
		return
	}
	s.track(conn, true)
	defer s.track(conn, false)
	defer conn.Close()

	conn.SetReadLimit(maxInputBody)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	log := ports.Component(s.Logger, "ws-input")
	log.Debug("input socket connected", ports.String("remote", r.RemoteAddr))

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("input socket closed", ports.Err(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))

		var ev domain.InputEvent
		switch kind {
		case websocket.TextMessage:
			err = json.Unmarshal(msg, &ev)
		case websocket.BinaryMessage:
			err = msgpack.Unmarshal(msg, &ev)
		default:
			continue
		}
		if err != nil {
			log.Debug("dropping undecodable input message", ports.Err(err))
			continue
		}
		s.submit(ev)
	}
}

func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(socketPingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

func (s *Server) track(conn *websocket.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.sockets[conn] = struct{}{}
	} else {
		delete(s.sockets, conn)
	}
}
