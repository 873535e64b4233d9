package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainmap/realtime/internal/domain"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok", nil)
}

func TestListNotifications(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/notifications", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": []domain.Notification{
				{ID: "a", Title: "hello", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
			},
		})
	})

	list, err := c.ListNotifications(context.Background())

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "hello", list[0].Title)
}

func TestListNotificationsEmptyData(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})

	list, err := c.ListNotifications(context.Background())

	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMarkReadReturnsUpdatedEntity(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/notifications/a/read", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    domain.Notification{ID: "a", IsRead: true},
		})
	})

	n, err := c.MarkRead(context.Background(), "a")

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.True(t, n.IsRead)
}

func TestMarkReadEmptyBodyMeansConfirmed(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	n, err := c.MarkRead(context.Background(), "a")

	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": "NOT_FOUND", "message": "gone"},
		})
	})

	_, err := c.MarkRead(context.Background(), "a")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestNonJSONErrorBodyStillFails(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.MarkRead(context.Background(), "a")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestDoUsesGivenMethodAndPath(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/collaborations/9/decision", r.URL.Path)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "ACCEPTED", body["status"])
		w.WriteHeader(http.StatusNoContent)
	})

	n, err := c.Do(context.Background(), http.MethodPost, "/collaborations/9/decision",
		map[string]string{"status": "ACCEPTED"})

	require.NoError(t, err)
	assert.Nil(t, n)
}
