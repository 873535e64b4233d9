package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brainmap/realtime/internal/domain"
)

// ErrHandshakeRejected is reported when the broker refuses the bearer
// token during connect. The connector keeps retrying, but the failure is
// surfaced on Errors so callers can force a re-login.
var ErrHandshakeRejected = errors.New("broker rejected credentials")

type ConnectorSettings struct {
	HandshakeTimeout time.Duration
	SubscribeTimeout time.Duration
	WriteTimeout     time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	EventBuffer      int
	// FailureLogEvery controls how often consecutive connect failures are
	// logged at Warn instead of Debug.
	FailureLogEvery int
}

func DefaultConnectorSettings() *ConnectorSettings {
	pongWait := 60 * time.Second
	return &ConnectorSettings{
		HandshakeTimeout: 5 * time.Second,
		SubscribeTimeout: 5 * time.Second,
		WriteTimeout:     10 * time.Second,
		PongWait:         pongWait,
		PingPeriod:       (pongWait * 9) / 10,
		EventBuffer:      16,
		FailureLogEvery:  5,
	}
}

// SessionAuth identifies the session the connector belongs to.
type SessionAuth struct {
	Token  string
	UserID string
}

// State is a connection status edge delivered on States.
type State struct {
	Connected         bool
	ReconnectAttempts int
}

// Connector maintains exactly one live websocket connection to the broker,
// subscribed to the session's per-user notification channel. It recovers
// from drops with capped exponential backoff and re-subscribes after every
// reconnect. A Connector is session-scoped: create one per signed-in user
// and Close it on sign-out.
type Connector struct {
	url      string
	auth     SessionAuth
	settings *ConnectorSettings
	logger   *zap.Logger

	events chan domain.Notification
	states chan State
	errs   chan error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	stateMu   sync.Mutex
	connected bool
	attempts  int
}

func NewConnector(url string, auth SessionAuth, settings *ConnectorSettings, logger *zap.Logger) *Connector {
	if settings == nil {
		settings = DefaultConnectorSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		url:      url,
		auth:     auth,
		settings: settings,
		logger:   logger,
		events:   make(chan domain.Notification, settings.EventBuffer),
		states:   make(chan State, 1),
		errs:     make(chan error, 1),
	}
}

// Events delivers parsed push notifications in receive order.
func (c *Connector) Events() <-chan domain.Notification { return c.events }

// States delivers connected/disconnected edges, best effort.
func (c *Connector) States() <-chan State { return c.states }

// Errors surfaces handshake and subscribe rejections, best effort.
func (c *Connector) Errors() <-chan error { return c.errs }

func (c *Connector) Connected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.connected
}

func (c *Connector) ReconnectAttempts() int {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.attempts
}

// Connect starts the connection loop. Calling it while a loop is running
// tears the old one down first, so it doubles as a restart. An empty token
// or user id fails fast with ErrNoSession and no dial is attempted.
func (c *Connector) Connect(ctx context.Context) error {
	if c.auth.Token == "" || c.auth.UserID == "" {
		return domain.ErrNoSession
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	go c.run(runCtx, done)
	return nil
}

// Close tears down the connection and cancels any pending reconnect.
// It is idempotent.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Connector) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
}

func (c *Connector) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.setConnected(false)

	channel := UserChannel(c.auth.UserID)
	attempt := 0
	for {
		ws, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			c.setAttempts(attempt)
			if attempt%c.settings.FailureLogEvery == 0 {
				c.logger.Warn("broker unreachable, still retrying",
					zap.Int("attempts", attempt), zap.Error(err))
			} else {
				c.logger.Debug("connect failed", zap.Int("attempt", attempt), zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay(attempt)):
				continue
			}
		}

		attempt = 0
		c.setAttempts(0)
		c.setConnected(true)
		c.logger.Info("subscribed", zap.String("channel", channel))

		c.pump(ctx, ws)
		c.setConnected(false)

		if ctx.Err() != nil {
			return
		}

		// the subscription does not survive the drop; redial from scratch
		attempt++
		c.setAttempts(attempt)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay(attempt)):
		}
	}
}

// dial opens the websocket, authenticates with the bearer token, and
// subscribes to the per-user channel. The connection is only returned once
// the broker acks the subscription.
func (c *Connector) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.settings.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.auth.Token)

	ws, resp, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			c.reportError(fmt.Errorf("%w: status %d", ErrHandshakeRejected, resp.StatusCode))
		}
		return nil, err
	}

	ok := false
	defer func() {
		if !ok {
			ws.Close()
		}
	}()

	sub := Frame{Type: FrameSubscribe, Channel: UserChannel(c.auth.UserID)}
	ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	if err := ws.WriteJSON(sub); err != nil {
		return nil, err
	}

	var ack Frame
	ws.SetReadDeadline(time.Now().Add(c.settings.SubscribeTimeout))
	if err := ws.ReadJSON(&ack); err != nil {
		return nil, err
	}
	switch ack.Type {
	case FrameSubscribed:
	case FrameError:
		err := fmt.Errorf("%w: %s", ErrHandshakeRejected, ack.Message)
		c.reportError(err)
		return nil, err
	default:
		return nil, fmt.Errorf("unexpected ack frame %q", ack.Type)
	}

	ok = true
	return ws, nil
}

// pump reads frames until the connection drops or ctx is cancelled. It owns
// closing the socket. A malformed frame is dropped with a warning and must
// never stop the loop.
func (c *Connector) pump(ctx context.Context, ws *websocket.Conn) {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-pumpCtx.Done()
		ws.Close()
	}()

	go func() {
		ticker := time.NewTicker(c.settings.PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pumpCtx.Done():
				return
			case <-ticker.C:
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	ws.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(c.settings.PongWait))
		return nil
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Info("connection dropped", zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}

		switch frame.Type {
		case FrameNotification:
			var n domain.Notification
			if err := json.Unmarshal(frame.Payload, &n); err != nil {
				c.logger.Warn("dropping malformed notification payload", zap.Error(err))
				continue
			}
			select {
			case c.events <- n:
			case <-pumpCtx.Done():
				return
			}
		case FrameError:
			c.reportError(errors.New(frame.Message))
		default:
			c.logger.Debug("ignoring frame", zap.String("type", frame.Type))
		}
	}
}

func (c *Connector) setConnected(v bool) {
	c.stateMu.Lock()
	changed := c.connected != v
	c.connected = v
	st := State{Connected: v, ReconnectAttempts: c.attempts}
	c.stateMu.Unlock()

	if changed {
		select {
		case c.states <- st:
		default:
		}
	}
}

func (c *Connector) setAttempts(n int) {
	c.stateMu.Lock()
	c.attempts = n
	c.stateMu.Unlock()
}

func (c *Connector) reportError(err error) {
	c.logger.Error("broker error", zap.Error(err))
	select {
	case c.errs <- err:
	default:
	}
}
