package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/brainmap/realtime/internal/domain"
	"github.com/brainmap/realtime/internal/rest"
)

// Config wires a Client to one signed-in session.
type Config struct {
	BrokerURL  string
	APIBaseURL string
	Token      string
	UserID     string
	Settings   *ConnectorSettings
	Logger     *zap.Logger
}

// Client is the handle exposed to UI consumers: the notification
// collection, the unread counter, connection status, refresh, and the
// optimistic actions. One Client per session; Close on sign-out.
type Client struct {
	connector *Connector
	store     *Store
	api       *rest.Client
	logger    *zap.Logger

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	runMu     sync.Mutex
	runCancel context.CancelFunc
	runDone   chan struct{}
}

func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	auth := SessionAuth{Token: cfg.Token, UserID: cfg.UserID}
	return &Client{
		connector: NewConnector(cfg.BrokerURL, auth, cfg.Settings, logger),
		store:     NewStore(),
		api:       rest.NewClient(cfg.APIBaseURL, cfg.Token, logger),
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Open connects to the broker and starts merging push events into the
// store. Idempotent restart semantics follow the connector's.
func (c *Client) Open(ctx context.Context) error {
	if err := c.connector.Connect(ctx); err != nil {
		return err
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.runCancel != nil {
		return nil
	}

	drainCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.runCancel = cancel
	c.runDone = done
	go func() {
		defer close(done)
		for {
			select {
			case <-drainCtx.Done():
				return
			case n := <-c.connector.Events():
				c.store.Upsert(n)
			}
		}
	}()
	return nil
}

// Close tears down the connection and stops the merge loop. In-flight
// action responses arriving after Close are abandoned by their cancelled
// contexts. Idempotent.
func (c *Client) Close() {
	c.connector.Close()

	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.runCancel == nil {
		return
	}
	c.runCancel()
	<-c.runDone
	c.runCancel = nil
	c.runDone = nil
}

// Notifications returns the ordered collection, newest first.
func (c *Client) Notifications() []domain.Notification { return c.store.Snapshot() }

func (c *Client) UnreadCount() int { return c.store.UnreadCount() }

func (c *Client) Connected() bool { return c.connector.Connected() }

// Errors surfaces broker handshake failures.
func (c *Client) Errors() <-chan error { return c.connector.Errors() }

// States surfaces connection status edges.
func (c *Client) States() <-chan State { return c.connector.States() }

// Refresh fetches the full collection and replaces local state with it.
// On failure local state is left untouched; the error is returned for
// callers that care and logged for those that do not.
func (c *Client) Refresh(ctx context.Context) error {
	list, err := c.api.ListNotifications(ctx)
	if err != nil {
		c.logger.Error("refresh failed, keeping local state", zap.Error(err))
		return err
	}
	c.store.Replace(list)
	return nil
}

// MarkAsRead marks the entry read locally, then confirms with the server.
// An unknown id is a logged no-op. On remote failure the entry and the
// unread counter are restored to their exact pre-action values.
func (c *Client) MarkAsRead(ctx context.Context, id string) error {
	return c.optimistic(ctx, id,
		func(n *domain.Notification) {
			n.IsRead = true
		},
		func(ctx context.Context) (*domain.Notification, error) {
			return c.api.MarkRead(ctx, id)
		},
	)
}

// RespondToProjectRequest records the user's decision on an actionable
// notification. The action endpoint comes from the notification's payload
// when present, otherwise from the conventional project-requests route; if
// neither is resolvable the call fails before touching the network.
func (c *Client) RespondToProjectRequest(ctx context.Context, n domain.Notification, decision string) error {
	switch decision {
	case domain.StatusAccepted, domain.StatusRejected, domain.StatusCancelled:
	default:
		c.logger.Warn("rejecting unknown decision", zap.String("decision", decision))
		return domain.ErrInvalidStatus
	}

	method, target, err := resolveActionTarget(n)
	if err != nil {
		c.logger.Warn("cannot respond to request",
			zap.String("id", n.ID), zap.Error(err))
		return err
	}

	return c.optimistic(ctx, n.ID,
		func(e *domain.Notification) {
			e.IsRead = true
			if e.Data == nil {
				e.Data = domain.Map{}
			}
			e.Data[domain.DataKeyStatus] = decision
		},
		func(ctx context.Context) (*domain.Notification, error) {
			return c.api.Do(ctx, method, target, map[string]string{"status": decision})
		},
	)
}

// optimistic runs the snapshot / apply / await / confirm-or-revert cycle
// shared by every user action. Actions on the same id are serialized so a
// second action can never snapshot the first one's unconfirmed state;
// actions on different ids proceed independently.
func (c *Client) optimistic(
	ctx context.Context,
	id string,
	apply func(*domain.Notification),
	call func(context.Context) (*domain.Notification, error),
) error {
	lock := c.entryLock(id)
	lock.Lock()
	defer lock.Unlock()

	prev, ok := c.store.Get(id)
	if !ok {
		c.logger.Warn("action on unknown notification", zap.String("id", id))
		return nil
	}

	c.store.mutate(id, apply)

	updated, err := call(ctx)
	if err != nil {
		c.store.mutate(id, func(e *domain.Notification) { *e = prev })
		c.logger.Error("action failed, rolled back", zap.String("id", id), zap.Error(err))
		return err
	}

	if updated != nil {
		c.store.Upsert(*updated)
	}
	return nil
}

func (c *Client) entryLock(id string) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	lock, ok := c.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[id] = lock
	}
	return lock
}

// resolveActionTarget derives the decision endpoint. An explicit target in
// the opaque payload wins; the fallback is the conventional route.
func resolveActionTarget(n domain.Notification) (method, target string, err error) {
	method = "PUT"
	if raw, ok := n.Data[domain.DataKeyActionMethod]; ok {
		if s, ok := raw.(string); ok && s != "" {
			method = strings.ToUpper(s)
		}
	}

	if raw, ok := n.Data[domain.DataKeyActionURL]; ok {
		if s, ok := raw.(string); ok && s != "" {
			return method, s, nil
		}
	}

	if n.ID == "" {
		return "", "", domain.ErrNoActionTarget
	}
	return method, fmt.Sprintf("/project-requests/%s", n.ID), nil
}
