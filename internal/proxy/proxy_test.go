package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.Downstream.BaseURL = baseURL
	cfg.Downstream.Timeout = 5 * time.Second
	return NewClient(cfg)
}

func TestCallSendsBearerAndJSONBody(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"00u1","status":"ACTIVE"}`))
	}))
	defer downstream.Close()

	client := newTestClient(downstream.URL)
	result, err := client.Call(context.Background(), http.MethodPost, "/api/v1/users",
		map[string]interface{}{"profile": map[string]interface{}{"email": "a@b.com"}}, "token-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "application/json", gotContentType)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &sent))
	assert.Equal(t, "a@b.com", sent["profile"].(map[string]interface{})["email"])

	require.True(t, result.OK())
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	data := result.Data.(map[string]interface{})
	assert.Equal(t, "00u1", data["id"])
}

func TestCallNonJSONBodyFallsBackToText(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream maintenance"))
	}))
	defer downstream.Close()

	client := newTestClient(downstream.URL)
	result, err := client.Call(context.Background(), http.MethodGet, "/api/v1/users/00u1", nil, "token-1")
	require.NoError(t, err)

	assert.False(t, result.OK())
	assert.Equal(t, "upstream maintenance", result.Data)
}

func TestCallRecordsTrace(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer downstream.Close()

	ctx, trace := WithTrace(context.Background())
	client := newTestClient(downstream.URL)
	_, err := client.Call(ctx, http.MethodGet, "/api/v1/users/00u1", nil, "token-1")
	require.NoError(t, err)

	summary := trace.Last()
	require.NotNil(t, summary)
	assert.Equal(t, downstream.URL+"/api/v1/users/00u1", summary.URL)
	assert.Equal(t, http.MethodGet, summary.Method)
	assert.Equal(t, http.StatusOK, summary.StatusCode)
	assert.Equal(t, `{"ok":true}`, summary.ResponseBody)
	assert.GreaterOrEqual(t, summary.DurationMs, int64(0))
}

func TestTraceKeepsLastCallOnly(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	defer downstream.Close()

	ctx, trace := WithTrace(context.Background())
	client := newTestClient(downstream.URL)

	_, err := client.Call(ctx, http.MethodPost, "/api/v1/users/00u1/lifecycle/deactivate", nil, "token-1")
	require.NoError(t, err)
	_, err = client.Call(ctx, http.MethodGet, "/api/v1/users/00u1", nil, "token-1")
	require.NoError(t, err)

	summary := trace.Last()
	require.NotNil(t, summary)
	assert.Equal(t, downstream.URL+"/api/v1/users/00u1", summary.URL)
	assert.Equal(t, http.MethodGet, summary.Method)
}

func TestCallTransportErrorStillRecordsTrace(t *testing.T) {
	// Point at a closed server so the transport call fails outright.
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	downstream.Close()

	ctx, trace := WithTrace(context.Background())
	client := newTestClient(downstream.URL)

	_, err := client.Call(ctx, http.MethodPost, "/api/v1/users", map[string]string{"k": "v"}, "token-1")
	require.Error(t, err)

	summary := trace.Last()
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.StatusCode)
	assert.JSONEq(t, `{"k":"v"}`, summary.RequestBody)
}

func TestCallWithoutTrace(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer downstream.Close()

	client := newTestClient(downstream.URL)
	result, err := client.Call(context.Background(), http.MethodGet, "/healthz", nil, "")
	require.NoError(t, err)
	assert.True(t, result.OK())
}
