package http

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// upgrader accepts same-host origins and the configured CORS origins.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if slices.Contains(s.opts.CORSAllowedOrigins, origin) || slices.Contains(s.opts.CORSAllowedOrigins, "*") {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// serveWS upgrades the request and calls reply for every text frame. A
// nil reply sends nothing.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, greeting []byte, reply func([]byte) ([]byte, error)) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(64 << 10)

	write := func(msg []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, msg)
	}
	if greeting != nil {
		if err := write(greeting); err != nil {
			return
		}
	}
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.DebugContext(r.Context(), "Websocket closed", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		out, err := reply(data)
		if err != nil {
			s.logger.WarnContext(r.Context(), "Websocket reply failed", "error", err)
			return
		}
		if out == nil {
			continue
		}
		if err := write(out); err != nil {
			return
		}
	}
}

// handleEcho sends every text frame back unchanged.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	s.serveWS(w, r, nil, func(data []byte) ([]byte, error) { return data, nil })
}

type notifyReply struct {
	Notification string `json:"notification"`
	Data         string `json:"data"`
}

// handleNotify greets the client and acknowledges every frame.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	greeting, _ := json.Marshal(map[string]string{"message": "Welcome to NotifyConsumer!"})
	s.serveWS(w, r, greeting, func(data []byte) ([]byte, error) {
		return json.Marshal(notifyReply{Notification: "Message received!", Data: string(data)})
	})
}
