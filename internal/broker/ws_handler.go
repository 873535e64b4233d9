package broker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brainmap/realtime/internal/auth"
	"github.com/brainmap/realtime/internal/middleware"
	"github.com/brainmap/realtime/internal/realtime"
	"github.com/brainmap/realtime/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	subscribeWait  = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict in production deployments
	},
}

// WSHandler upgrades websocket connects, authenticates the bearer token,
// and completes the subscribe handshake before handing the session to the
// hub.
type WSHandler struct {
	hub        *Hub
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

func NewWSHandler(hub *Hub, jwtManager *auth.JWTManager, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, jwtManager: jwtManager, logger: logger}
}

func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		response.Unauthorized(w, "missing token")
		return
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		response.Unauthorized(w, "invalid token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	// the client must subscribe to its own channel before anything is
	// delivered
	conn.SetReadDeadline(time.Now().Add(subscribeWait))
	var sub realtime.Frame
	if err := conn.ReadJSON(&sub); err != nil {
		conn.Close()
		return
	}

	wantChannel := realtime.UserChannel(claims.UserID.String())
	if sub.Type != realtime.FrameSubscribe || sub.Channel != wantChannel {
		h.writeFrame(conn, realtime.Frame{
			Type:    realtime.FrameError,
			Message: "subscription not allowed",
		})
		conn.Close()
		h.logger.Warn("rejected subscribe",
			zap.String("user_id", claims.UserID.String()),
			zap.String("channel", sub.Channel))
		return
	}

	if err := h.writeFrame(conn, realtime.Frame{
		Type:    realtime.FrameSubscribed,
		Channel: wantChannel,
	}); err != nil {
		conn.Close()
		return
	}

	s := &session{
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: claims.UserID,
	}
	h.hub.register <- s

	go s.writePump()
	go s.readPump(h.hub)
}

func (h *WSHandler) writeFrame(conn *websocket.Conn, frame realtime.Frame) error {
	msg, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// readPump drains inbound frames. Delivery is server-to-client only; the
// read side exists to notice closes and answer pings.
func (s *session) readPump(hub *Hub) {
	defer func() {
		hub.unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	s.conn.SetPingHandler(func(appData string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return s.conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
