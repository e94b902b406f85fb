package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brizzai/auth-gateway/internal/auth/models"
	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/brizzai/auth-gateway/internal/proxy"
	"github.com/brizzai/auth-gateway/internal/session"
	"github.com/brizzai/auth-gateway/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResources(t *testing.T, downstreamURL string) (*ResourceHandler, *store.Store) {
	t.Helper()

	rowStore, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rowStore.Close() })

	cfg := &config.Config{}
	cfg.Downstream.BaseURL = downstreamURL
	cfg.Downstream.Timeout = 5 * time.Second

	return NewResourceHandler(proxy.NewClient(cfg), rowStore), rowStore
}

func authenticatedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	sess := session.New()
	sess.CompleteAuth(
		&models.TokenSet{AccessToken: "at-1", ExpiresAt: time.Now().Add(time.Hour)},
		&models.UserProfile{Sub: "sub-1"},
	)
	return req.WithContext(session.NewContext(req.Context(), sess))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateUserProxiesAndProjects(t *testing.T) {
	var gotAuth string
	var gotQuery string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "00u1",
			"status": "ACTIVE",
			"created": "2024-01-01T00:00:00.000Z",
			"profile": {"email": "a@b.com", "firstName": "Ada", "lastName": "Lovelace", "login": "a@b.com"}
		}`))
	}))
	defer downstream.Close()

	h, rowStore := newTestResources(t, downstream.URL)

	req := authenticatedRequest(http.MethodPost, "/api/v1/users/create",
		`{"profile":{"email":"a@b.com","firstName":"Ada","lastName":"Lovelace","login":"a@b.com"}}`)
	rec := httptest.NewRecorder()
	h.HandleCreateUser(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer at-1", gotAuth)
	assert.Equal(t, "activate=true", gotQuery)

	body := decodeResponse(t, rec)
	assert.Equal(t, true, body["ok"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "00u1", user["id"])
	assert.Equal(t, "ACTIVE", user["status"])

	row, found, err := rowStore.GetUserByExternalID(context.Background(), "00u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a@b.com", row.Email)
	assert.Equal(t, "ACTIVE", row.Status)
}

func TestCreateUserRequiresEmail(t *testing.T) {
	h, _ := newTestResources(t, "http://downstream.invalid")

	req := authenticatedRequest(http.MethodPost, "/api/v1/users/create", `{"profile":{"firstName":"Ada"}}`)
	rec := httptest.NewRecorder()
	h.HandleCreateUser(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserPassesThroughDownstreamRejection(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"errorSummary":"login already in use"}`))
	}))
	defer downstream.Close()

	h, rowStore := newTestResources(t, downstream.URL)

	req := authenticatedRequest(http.MethodPost, "/api/v1/users/create", `{"profile":{"email":"a@b.com"}}`)
	rec := httptest.NewRecorder()
	h.HandleCreateUser(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, "Downstream API error", body["error"])
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "login already in use", details["errorSummary"])

	// The rejection must not leave a local projection behind.
	_, found, err := rowStore.GetUserByExternalID(context.Background(), "00u1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateUserDownstreamUnreachable(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	downstream.Close()

	h, _ := newTestResources(t, downstream.URL)

	req := authenticatedRequest(http.MethodPost, "/api/v1/users/create", `{"profile":{"email":"a@b.com"}}`)
	rec := httptest.NewRecorder()
	h.HandleCreateUser(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCreateUserUnusableDownstreamResponse(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer downstream.Close()

	h, _ := newTestResources(t, downstream.URL)

	req := authenticatedRequest(http.MethodPost, "/api/v1/users/create", `{"profile":{"email":"a@b.com"}}`)
	rec := httptest.NewRecorder()
	h.HandleCreateUser(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDeactivateUserMakesLifecycleAndStatusCalls(t *testing.T) {
	var calls []string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/lifecycle/deactivate") {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"00u1","status":"DEPROVISIONED","profile":{"email":"a@b.com"}}`))
	}))
	defer downstream.Close()

	h, rowStore := newTestResources(t, downstream.URL)
	require.NoError(t, rowStore.UpsertUser(context.Background(), store.UserRow{
		ExternalID: "00u1", Email: "a@b.com", Status: "ACTIVE",
	}))

	req := authenticatedRequest(http.MethodPost, "/api/v1/users/00u1/deactivate", "")
	req.SetPathValue("id", "00u1")
	ctx, trace := proxy.WithTrace(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	h.HandleDeactivateUser(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{
		"POST /api/v1/users/00u1/lifecycle/deactivate",
		"GET /api/v1/users/00u1",
	}, calls)

	body := decodeResponse(t, rec)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "DEPROVISIONED", user["status"])

	// The audit correlation keeps the last downstream call only.
	summary := trace.Last()
	require.NotNil(t, summary)
	assert.Equal(t, http.MethodGet, summary.Method)
	assert.Equal(t, downstream.URL+"/api/v1/users/00u1", summary.URL)

	row, found, err := rowStore.GetUserByExternalID(context.Background(), "00u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "DEPROVISIONED", row.Status)
}

func TestDeactivateUserPassesThroughRejection(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorSummary":"not found"}`))
	}))
	defer downstream.Close()

	h, _ := newTestResources(t, downstream.URL)

	req := authenticatedRequest(http.MethodPost, "/api/v1/users/00u9/deactivate", "")
	req.SetPathValue("id", "00u9")
	rec := httptest.NewRecorder()
	h.HandleDeactivateUser(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLogsLimitsAndFilters(t *testing.T) {
	h, rowStore := newTestResources(t, "http://downstream.invalid")

	for i := 0; i < 5; i++ {
		require.NoError(t, rowStore.InsertRequestLog(context.Background(), store.RequestLogRow{
			Method: http.MethodGet, URL: "/api/v1/auth/status", StatusCode: 200,
		}))
	}
	require.NoError(t, rowStore.InsertRequestLog(context.Background(), store.RequestLogRow{
		Method: http.MethodPost, URL: "/api/v1/users/create", StatusCode: 200,
	}))

	req := authenticatedRequest(http.MethodGet, "/api/v1/logs?limit=3", "")
	rec := httptest.NewRecorder()
	h.HandleListLogs(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.Len(t, body["logs"], 3)

	req = authenticatedRequest(http.MethodGet, "/api/v1/logs?url_contains=users", "")
	rec = httptest.NewRecorder()
	h.HandleListLogs(rec, req)
	body = decodeResponse(t, rec)
	logs := body["logs"].([]interface{})
	require.Len(t, logs, 1)
	assert.Equal(t, "/api/v1/users/create", logs[0].(map[string]interface{})["url"])
}

func TestListLogsEmptyIsArray(t *testing.T) {
	h, _ := newTestResources(t, "http://downstream.invalid")

	req := authenticatedRequest(http.MethodGet, "/api/v1/logs", "")
	rec := httptest.NewRecorder()
	h.HandleListLogs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"logs":[]}`, rec.Body.String())
}

func TestListLogsCapsLimit(t *testing.T) {
	h, _ := newTestResources(t, "http://downstream.invalid")

	req := authenticatedRequest(http.MethodGet, "/api/v1/logs?limit=100000", "")
	rec := httptest.NewRecorder()
	h.HandleListLogs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateUserForwardsBodyVerbatim(t *testing.T) {
	var gotBody map[string]interface{}
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"00u2","status":"ACTIVE","profile":{"email":"b@c.com"}}`))
	}))
	defer downstream.Close()

	h, _ := newTestResources(t, downstream.URL)

	// Fields beyond the validated profile must reach the downstream API.
	req := authenticatedRequest(http.MethodPost, "/api/v1/users/create",
		`{"profile":{"email":"b@c.com"},"groupIds":["g1","g2"]}`)
	rec := httptest.NewRecorder()
	h.HandleCreateUser(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groups, ok := gotBody["groupIds"].([]interface{})
	require.True(t, ok, "extra request fields must pass through")
	assert.Equal(t, []interface{}{"g1", "g2"}, groups)
}
