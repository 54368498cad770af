package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// livePushInterval is how often a connected websocket client receives a
// fresh printer-state snapshot.
const livePushInterval = 500 * time.Millisecond

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleLive upgrades to a websocket and pushes PrinterDocument snapshots
// on a fixed interval until the peer disconnects, adapted from the
// teacher's pkg/moonraker/server.go WSClient write pump — simplified to a
// one-way broadcast since Marlinfeed's HTTP surface has no JSON-RPC
// command channel for clients to push back through.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(livePushInterval)
	defer ticker.Stop()

	// A reader goroutine is required even though we ignore incoming
	// messages: gorilla/websocket needs someone draining reads to notice
	// the peer closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			doc := s.cfg.Printer.PrinterDocument()
			payload, err := json.Marshal(doc)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
