package fanout

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-condo-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// LoggingTokenHandler only reports dead tokens. Clients re-register on their
// next token refresh.
type LoggingTokenHandler struct {
	logger *slog.Logger
}

func NewLoggingTokenHandler(logger *slog.Logger) *LoggingTokenHandler {
	return &LoggingTokenHandler{logger: logger.With("component", "InvalidTokens")}
}

func (h *LoggingTokenHandler) HandleInvalidTokens(_ context.Context, failures []push.TokenFailure) {
	for _, f := range failures {
		h.logger.Info("Provider reported dead token", "token", f.Token, "code", f.Code)
	}
}

// StorePruner removes dead tokens from user records.
type StorePruner struct {
	store  dispatch.UserStore
	logger *slog.Logger
}

func NewStorePruner(store dispatch.UserStore, logger *slog.Logger) *StorePruner {
	return &StorePruner{store: store, logger: logger.With("component", "TokenPruner")}
}

func (p *StorePruner) HandleInvalidTokens(ctx context.Context, failures []push.TokenFailure) {
	p.logger.Info("Cleaning up invalid tokens", "count", len(failures))
	for _, f := range failures {
		if err := p.store.ClearPushToken(ctx, f.Token); err != nil {
			p.logger.Warn("Failed to clear token", "token", f.Token, "err", err)
		}
	}
}
