package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/brizzai/auth-gateway/internal/audit"
	"github.com/brizzai/auth-gateway/internal/logger"
	"github.com/brizzai/auth-gateway/internal/proxy"
	"github.com/brizzai/auth-gateway/internal/session"
	"github.com/brizzai/auth-gateway/internal/store"
	"github.com/brizzai/auth-gateway/internal/utils"
	"go.uber.org/zap"
)

// ResourceHandler serves the user-management routes that proxy to the
// downstream API, plus the audit log listing.
type ResourceHandler struct {
	client   *proxy.Client
	rowStore *store.Store
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(client *proxy.Client, rowStore *store.Store) *ResourceHandler {
	return &ResourceHandler{
		client:   client,
		rowStore: rowStore,
	}
}

// downstreamUser is the canonical user object the downstream API returns.
type downstreamUser struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Created string `json:"created"`
	Profile struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Login     string `json:"login"`
	} `json:"profile"`
}

type createUserRequest struct {
	Profile struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Login     string `json:"login"`
	} `json:"profile"`
}

// HandleCreateUser proxies a user creation to the downstream API and, on
// success, writes the local denormalized projection.
func (h *ResourceHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		audit.CaptureError(r.Context(), "invalid request body")
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var req createUserRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		audit.CaptureError(r.Context(), "invalid request body")
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Profile.Email == "" {
		audit.CaptureError(r.Context(), "missing user profile")
		utils.WriteError(w, http.StatusBadRequest, "Missing required user profile (email, firstName, lastName)")
		return
	}

	sess := session.FromContext(r.Context())
	accessToken := sess.Tokens().AccessToken

	// The raw body goes downstream untouched so fields beyond the
	// validated ones pass through.
	result, err := h.client.Call(r.Context(), http.MethodPost, "/api/v1/users?activate=true", json.RawMessage(raw), accessToken)
	if err != nil {
		logger.Error("Downstream create user failed", zap.Error(err))
		audit.CaptureError(r.Context(), err.Error())
		utils.WriteError(w, http.StatusBadGateway, "Downstream request failed")
		return
	}

	if !result.OK() {
		logger.Error("Downstream create user rejected",
			zap.Int("status", result.StatusCode),
		)
		audit.CaptureError(r.Context(), "downstream API error")
		utils.WriteErrorDetails(w, result.StatusCode, "Downstream API error", result.Data)
		return
	}

	var created downstreamUser
	if err := json.Unmarshal(result.Raw, &created); err != nil || created.ID == "" {
		logger.Error("Downstream returned an unusable user object", zap.Error(err))
		audit.CaptureError(r.Context(), "unusable downstream response")
		utils.WriteError(w, http.StatusBadGateway, "Downstream returned an unusable response")
		return
	}

	// Local projection only after the downstream write succeeded.
	if err := h.rowStore.UpsertUser(r.Context(), store.UserRow{
		ExternalID: created.ID,
		Email:      created.Profile.Email,
		FirstName:  created.Profile.FirstName,
		LastName:   created.Profile.LastName,
		Login:      created.Profile.Login,
		Status:     created.Status,
	}); err != nil {
		logger.Error("Failed to persist user projection", zap.Error(err))
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
		"user": map[string]interface{}{
			"id":      created.ID,
			"status":  created.Status,
			"profile": created.Profile,
			"created": created.Created,
		},
	})
}

// HandleDeactivateUser proxies a lifecycle deactivation and then re-reads
// the user so the response and the local projection reflect the downstream
// state. Two downstream calls are made; the audit record keeps the second.
func (h *ResourceHandler) HandleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing user id")
		return
	}

	sess := session.FromContext(r.Context())
	accessToken := sess.Tokens().AccessToken

	result, err := h.client.Call(r.Context(), http.MethodPost, "/api/v1/users/"+userID+"/lifecycle/deactivate", nil, accessToken)
	if err != nil {
		logger.Error("Downstream deactivation failed", zap.Error(err))
		audit.CaptureError(r.Context(), err.Error())
		utils.WriteError(w, http.StatusBadGateway, "Downstream request failed")
		return
	}
	if !result.OK() {
		audit.CaptureError(r.Context(), "downstream API error")
		utils.WriteErrorDetails(w, result.StatusCode, "Downstream API error", result.Data)
		return
	}

	status, err := h.client.Call(r.Context(), http.MethodGet, "/api/v1/users/"+userID, nil, accessToken)
	if err != nil {
		logger.Error("Downstream status read failed", zap.Error(err))
		audit.CaptureError(r.Context(), err.Error())
		utils.WriteError(w, http.StatusBadGateway, "Downstream request failed")
		return
	}
	if !status.OK() {
		audit.CaptureError(r.Context(), "downstream API error")
		utils.WriteErrorDetails(w, status.StatusCode, "Downstream API error", status.Data)
		return
	}

	var user downstreamUser
	if err := json.Unmarshal(status.Raw, &user); err == nil && user.ID != "" {
		if err := h.rowStore.SetUserStatus(r.Context(), user.ID, user.Status); err != nil {
			logger.Error("Failed to update user projection", zap.Error(err))
		}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
		"user": map[string]interface{}{
			"id":      user.ID,
			"status":  user.Status,
			"profile": user.Profile,
		},
	})
}
