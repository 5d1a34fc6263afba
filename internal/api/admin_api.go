package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// DirectSender dispatches to an explicit token list.
type DirectSender interface {
	SendDirect(ctx context.Context, title, message string, tokens []string) (push.Report, error)
}

// AdminAPI exposes the synchronous send used by the back office.
type AdminAPI struct {
	sender   DirectSender
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAdminAPI(sender DirectSender, logger *slog.Logger) *AdminAPI {
	return &AdminAPI{
		sender:   sender,
		validate: validator.New(),
		logger:   logger.With("component", "AdminAPI"),
	}
}

type SendRequest struct {
	Title   string   `json:"title" validate:"required"`
	Message string   `json:"message" validate:"required"`
	Tokens  []string `json:"tokens" validate:"required,min=1"`
}

type SendResponse struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	FCMResult  push.ProviderSummary `json:"fcmResult"`
	ExpoResult push.ProviderSummary `json:"expoResult"`
}

// Send performs the dual-provider dispatch and answers with the per-provider
// counters. Delivery failures are reported in the body, not as an HTTP error.
func (api *AdminAPI) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := api.validate.Struct(req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	report, err := api.sender.SendDirect(r.Context(), req.Title, req.Message, req.Tokens)
	if errors.Is(err, push.ErrNoTokens) {
		response.WriteJSONError(w, http.StatusBadRequest, "no valid tokens")
		return
	}
	if err != nil {
		api.logger.Error("Direct send failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "send failed")
		return
	}

	stats := report.Stats()
	resp := SendResponse{
		Success:    true,
		Message:    fmt.Sprintf("Sent to %d of %d devices", stats.Success, stats.Total),
		FCMResult:  report.Summary(push.ProviderFCM),
		ExpoResult: report.Summary(push.ProviderExpo),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		api.logger.Warn("Failed to write response", "err", err)
	}
}
