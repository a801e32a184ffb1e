package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestREST_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "storage unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": []map[string]any{{"_id": "bob", "fullName": "Bob", "unreadCount": 2}}})
	}))
	defer srv.Close()

	c := NewREST(Config{BaseURL: srv.URL, Token: "tkn", RetryMaxElapsed: 5 * time.Second})
	list, err := c.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bob", list[0].FullName)
	assert.Equal(t, 2, list[0].UnreadCount)
	assert.Equal(t, int32(3), calls.Load())
}

func TestREST_ClientErrorsAreFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "error", "message": "invalid token"})
	}))
	defer srv.Close()

	c := NewREST(Config{BaseURL: srv.URL})
	_, err := c.History(context.Background(), "bob")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid token", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestREST_SendIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "storage unavailable"})
	}))
	defer srv.Close()

	c := NewREST(Config{BaseURL: srv.URL})
	_, err := c.Send(context.Background(), "bob", domain.Content{Text: "hi"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestREST_SendAndMarkRead(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages/send/bob", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body domain.Content
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "data": map[string]any{
			"_id": "m1", "senderId": "me", "receiverId": "bob", "text": body.Text, "isRead": false,
		}})
	})
	mux.HandleFunc("/api/v1/messages/mark-as-read/bob", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": map[string]bool{"success": true}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewREST(Config{BaseURL: srv.URL})
	m, err := c.Send(context.Background(), "bob", domain.Content{Text: "hey"})
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "hey", m.Text)

	require.NoError(t, c.MarkRead(context.Background(), "bob"))
}

type fakeAPI struct {
	history  []*domain.Message
	markErr  error
	marked   []string
	sendResp *domain.Message
}

func (f *fakeAPI) Conversations(context.Context) ([]*domain.Summary, error) {
	return []*domain.Summary{{User: domain.User{ID: "bob"}, UnreadCount: 4}}, nil
}

func (f *fakeAPI) History(context.Context, string) ([]*domain.Message, error) {
	return f.history, nil
}

func (f *fakeAPI) Send(context.Context, string, domain.Content) (*domain.Message, error) {
	return f.sendResp, nil
}

func (f *fakeAPI) MarkRead(_ context.Context, id string) error {
	f.marked = append(f.marked, id)
	return f.markErr
}

func TestSession_OpenKeepsOptimisticZeroOnMarkReadFailure(t *testing.T) {
	api := &fakeAPI{
		history: []*domain.Message{{ID: "m1", SenderID: "bob", ReceiverID: "me"}},
		markErr: errors.New("503"),
	}
	s := NewSession(api, NewState("me"), nil)
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 4, s.State().Summaries()[0].UnreadCount)

	require.NoError(t, s.Open(context.Background(), "bob"))
	assert.Equal(t, []string{"bob"}, api.marked)
	assert.Zero(t, s.State().Summaries()[0].UnreadCount)
	assert.Len(t, s.State().History(), 1)
}

func TestSession_SendPatchesSidebar(t *testing.T) {
	at := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{sendResp: &domain.Message{ID: "m9", SenderID: "me", ReceiverID: "bob", Text: "sup", CreatedAt: at}}
	s := NewSession(api, NewState("me"), nil)
	require.NoError(t, s.Refresh(context.Background()))

	_, err := s.Send(context.Background(), "bob", domain.Content{Text: "sup"})
	require.NoError(t, err)
	got := s.State().Summaries()[0]
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(at))
	assert.Equal(t, "sup", got.LastMessage.Content)
}
