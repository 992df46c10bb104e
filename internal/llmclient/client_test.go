package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsMissingFields(t *testing.T) {
	_, err := New(Config{BaseURL: "http://x", Model: "m"})
	require.Error(t, err)

	_, err = New(Config{APIKey: "k", Model: "m"})
	require.Error(t, err)

	_, err = New(Config{APIKey: "k", BaseURL: "http://x"})
	require.Error(t, err)

	_, err = New(Config{APIKey: "k", BaseURL: "http://x", Model: "m", RateLimitRequestsPerSecond: 0.5})
	require.Error(t, err)
}

func TestChatReturnsFirstChoiceContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-5"})
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Content)
	require.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestChatRetriesOnFailureThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", BaseDelay: time.Millisecond})
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestChatExhaustsRetriesAndReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", MaxRetries: 2, BaseDelay: time.Millisecond})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), nil)
	require.Error(t, err)
}

func TestChatRateLimitExceededReturnsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", RateLimitRequestsPerSecond: 1})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), nil)
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), nil)
	require.ErrorIs(t, err, ErrRateLimited)
}
