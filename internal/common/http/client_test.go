package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON_DecodesAndSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"name":"ok"}`))
	}))
	defer server.Close()

	c := NewClient(Options{Name: "test", Timeout: time.Second})

	var out struct {
		Name string `json:"name"`
	}
	err := c.GetJSON(context.Background(), server.URL, map[string]string{"Authorization": "Bearer key"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
	assert.Equal(t, "disabled", c.BreakerState())
}

func TestGetJSON_ClientErrorIsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))
	defer server.Close()

	c := NewClient(Options{Name: "test", Timeout: time.Second, BreakerFailures: 1, BreakerCooldown: time.Minute})

	for i := 0; i < 3; i++ {
		err := c.GetJSON(context.Background(), server.URL, nil, nil)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, "missing", statusErr.Body)
	}
	// 4xx never trips the breaker
	assert.Equal(t, "closed", c.BreakerState())
}

func TestBreaker_OpensAfterServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(Options{Name: "test", Timeout: time.Second, BreakerFailures: 2, BreakerCooldown: time.Minute})

	for i := 0; i < 2; i++ {
		err := c.GetJSON(context.Background(), server.URL, nil, nil)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	}
	assert.Equal(t, "open", c.BreakerState())

	err := c.GetJSON(context.Background(), server.URL, nil, nil)
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLimiter_DeadlineIsThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(Options{Name: "test", Timeout: time.Second, RequestsPerSecond: 0.1, Burst: 1})

	require.NoError(t, c.GetJSON(context.Background(), server.URL, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.GetJSON(ctx, server.URL, nil, nil)
	assert.ErrorIs(t, err, ErrThrottled)
}

func TestPostJSON_SendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"text":"done"}`))
	}))
	defer server.Close()

	c := NewClient(Options{Name: "test", Timeout: time.Second})

	var out struct {
		Text string `json:"text"`
	}
	require.NoError(t, c.PostJSON(context.Background(), server.URL, nil, map[string]int{"n": 1}, &out))
	assert.Equal(t, "done", out.Text)
}
