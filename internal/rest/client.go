package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/brainmap/realtime/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client is the authenticated HTTP client for the notification API. All
// requests carry the session bearer token and are capped at 30s so a hung
// call cannot leave optimistic state stuck indefinitely.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")
	return &Client{http: hc, logger: logger}
}

// envelope is the standard API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
}

// APIError carries the server-side error code and message.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s (status %d): %s", e.Code, e.Status, e.Message)
}

// ListNotifications fetches the full notification collection.
func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/notifications")
	if err != nil {
		return nil, err
	}
	data, err := decode(resp)
	if err != nil {
		return nil, err
	}

	var list []domain.Notification
	if len(data) > 0 {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode notifications: %w", err)
		}
	}
	return list, nil
}

// MarkRead marks a notification read. A nil result with nil error means the
// server confirmed with an empty body.
func (c *Client) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	resp, err := c.http.R().SetContext(ctx).Put("/notifications/" + id + "/read")
	if err != nil {
		return nil, err
	}
	return decodeNotification(resp)
}

// Do issues a request against a derived action endpoint, e.g. a project
// request decision. The path may be absolute or relative to the base URL.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*domain.Notification, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req = req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	return decodeNotification(resp)
}

func decodeNotification(resp *resty.Response) (*domain.Notification, error) {
	data, err := decode(resp)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &n, nil
}

// decode unwraps the response envelope. Non-2xx statuses and envelopes
// with success=false both map to *APIError.
func decode(resp *resty.Response) (json.RawMessage, error) {
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		if resp.IsError() {
			return nil, &APIError{
				Status:  resp.StatusCode(),
				Code:    "UNEXPECTED",
				Message: http.StatusText(resp.StatusCode()),
			}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.IsError() || !env.Success {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Code: "UNEXPECTED", Message: http.StatusText(resp.StatusCode())}
		}
		apiErr.Status = resp.StatusCode()
		return nil, apiErr
	}

	return env.Data, nil
}
