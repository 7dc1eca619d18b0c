package strawpoll

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
)

func newTestClient(baseURL string) *Client {
	c := NewClient("secret", baseURL)
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return c
}

func TestCreatePoll_TooFewOptions(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for _, opts := range [][]string{nil, {"only"}} {
		_, err := c.CreatePoll(context.Background(), "t", opts, 5)
		assert.ErrorIs(t, err, ErrTooFewOptions)
	}
	assert.Zero(t, calls.Load())
}

func TestCreatePoll_InvalidDuration(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	_, err := c.CreatePoll(context.Background(), "t", []string{"a", "b"}, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestCreatePoll_Created(t *testing.T) {
	var got createPollRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/polls", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"abc","url":"https://strawpoll.com/abc"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	data, err := c.CreatePoll(context.Background(), "Who?", []string{"reimu", "marisa", "cirno"}, 10)
	require.NoError(t, err)

	assert.Equal(t, "abc", data["id"])
	assert.Equal(t, "https://strawpoll.com/abc", PollURL(data))

	assert.Equal(t, "Who?", got.Title)
	assert.Equal(t, []pollOption{{"reimu"}, {"marisa"}, {"cirno"}}, got.PollOptions)
	assert.True(t, got.PollConfig.IsMultipleChoice)
	assert.Equal(t, int64(1_700_000_000+600), got.PollConfig.DeadlineAt)
}

func TestCreatePoll_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreatePoll(context.Background(), "t", []string{"a", "b"}, 1)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, `{"error":"nope"}`, apiErr.Body)
	assert.Equal(t, `API error 200: {"error":"nope"}`, err.Error())
}

func TestPollURL(t *testing.T) {
	assert.Equal(t, "https://x", PollURL(map[string]any{"url": "https://x"}))
	assert.Equal(t, NoURL, PollURL(map[string]any{}))
	assert.Equal(t, "No URL found", PollURL(nil))
}
