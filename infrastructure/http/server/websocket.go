package server

import (
	"encoding/json"
	"log/slog"
	"match-chat/auth"
	"match-chat/domain/event"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	credential, source := auth.ExtractCredential(r)
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.log.Debug("Websocket opened", "remote", r.RemoteAddr, "credential", source)
	conn := newWSConn(ws, s.log)
	go conn.keepAlive()
	s.realtime.Serve(r.Context(), conn, credential)
}

// wsConn adapts a gorilla connection to the gateway. Writes are serialized,
// and a ping/pong keepalive closes peers that stop answering.
type wsConn struct {
	ws        *websocket.Conn
	log       *slog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(ws *websocket.Conn, log *slog.Logger) *wsConn {
	c := &wsConn{ws: ws, log: log, done: make(chan struct{})}
	ws.SetReadLimit(maxBodyBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return c
}

// ReadFrame skips malformed frames after telling the peer about them.
func (c *wsConn) ReadFrame() (event.Frame, error) {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return event.Frame{}, err
		}
		var frame event.Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			c.log.Debug("Malformed frame", "error", err)
			if err := c.WriteFrame(event.NewErrorFrame("malformed frame")); err != nil {
				return event.Frame{}, err
			}
			continue
		}
		return frame, nil
	}
}

func (c *wsConn) WriteFrame(frame event.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(frame)
}

// SetReadDeadline with a zero time goes back to the keepalive deadline.
func (c *wsConn) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		t = time.Now().Add(pongWait)
	}
	return c.ws.SetReadDeadline(t)
}

func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if code != websocket.CloseAbnormalClosure {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		}
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug("Ping failed, closing", "error", err)
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}
