package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// session is one subscribed websocket connection.
type session struct {
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
}

// Hub tracks subscribed sessions per user and fans broker frames out to
// them. A user may hold several sessions (multiple tabs/devices).
type Hub struct {
	sessions     map[*session]bool
	userSessions map[uuid.UUID]map[*session]bool
	register     chan *session
	unregister   chan *session
	mu           sync.RWMutex
	logger       *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions:     make(map[*session]bool),
		userSessions: make(map[uuid.UUID]map[*session]bool),
		register:     make(chan *session),
		unregister:   make(chan *session),
		logger:       logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = true
			if _, ok := h.userSessions[s.userID]; !ok {
				h.userSessions[s.userID] = make(map[*session]bool)
			}
			h.userSessions[s.userID][s] = true
			h.mu.Unlock()
			h.logger.Debug("session registered", zap.String("user_id", s.userID.String()))

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				if userMap, ok := h.userSessions[s.userID]; ok {
					delete(userMap, s)
					if len(userMap) == 0 {
						delete(h.userSessions, s.userID)
					}
				}
				close(s.send)
				h.logger.Debug("session unregistered", zap.String("user_id", s.userID.String()))
			}
			h.mu.Unlock()
		}
	}
}

// SendToUser fans a frame out to every session of the given user. Slow
// sessions are skipped rather than blocked on.
func (h *Hub) SendToUser(userID uuid.UUID, frame interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions, ok := h.userSessions[userID]
	if !ok {
		return
	}

	msg, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to marshal frame", zap.Error(err))
		return
	}

	for s := range sessions {
		select {
		case s.send <- msg:
		default:
			h.logger.Warn("dropping frame for slow session",
				zap.String("user_id", userID.String()))
		}
	}
}
