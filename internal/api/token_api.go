package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-condo-notifier/internal/fanout"
	"github.com/tinywideclouds/go-condo-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// TokenAPI lets an authenticated device register or drop its push token.
type TokenAPI struct {
	Store  dispatch.UserStore
	Logger *slog.Logger
}

func NewTokenAPI(store dispatch.UserStore, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger.With("component", "TokenAPI"),
	}
}

type TokenRequest struct {
	Token string `json:"token"`
}

// RegisterToken overwrites the caller's active token.
func (api *TokenAPI) RegisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	token, ok := api.decodeToken(w, r)
	if !ok {
		return
	}

	if err := api.Store.SetPushToken(ctx, userID, token); err != nil {
		if errors.Is(err, push.ErrInvalidRequest) {
			response.WriteJSONError(w, http.StatusBadRequest, "invalid token")
			return
		}
		api.Logger.Error("Failed to register token", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("Token registered", "user", userID, "expo", fanout.IsExpoToken(token))

	w.WriteHeader(http.StatusNoContent)
}

// UnregisterToken clears the caller's token if it is still the active one.
func (api *TokenAPI) UnregisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	token, ok := api.decodeToken(w, r)
	if !ok {
		return
	}

	if err := api.Store.ClearUserPushToken(ctx, userID, token); err != nil {
		api.Logger.Warn("Failed to unregister token", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to unregister token")
		return
	}
	api.Logger.Info("Token unregistered", "user", userID)

	w.WriteHeader(http.StatusNoContent)
}

func (api *TokenAPI) decodeToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return "", false
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return "", false
	}
	return token, true
}
