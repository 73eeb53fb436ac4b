package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/btcsniper/internal/domain"
	"github.com/alanyoungcy/btcsniper/internal/engine"
)

// EngineService is what the handlers need from the trading engine. It is
// declared locally so tests can substitute a fake.
type EngineService interface {
	LatestSignals() *domain.MarketSignals
	LatestBrief() *domain.TradeBrief
	CurrentMarket() *domain.MarketInfo
	Submit(command string) error
	FindMarkets(ctx context.Context) ([]domain.MarketInfo, error)
	MergeCurrent(ctx context.Context) (*domain.MergeResult, error)
}

// SuggestionReader exposes the tail of the suggestion log.
type SuggestionReader interface {
	Suggestions(lines int) ([]string, error)
}

// suggestionTail is how many log lines /suggestions returns.
const suggestionTail = 50

// EngineHandler serves the status and control endpoints.
type EngineHandler struct {
	engine      EngineService
	suggestions SuggestionReader
	logger      *slog.Logger
}

// NewEngineHandler creates an EngineHandler. suggestions may be nil.
func NewEngineHandler(eng EngineService, suggestions SuggestionReader, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{engine: eng, suggestions: suggestions, logger: logger}
}

// Signals returns the latest aggregated signals, or null before the first
// cycle.
// GET /signals
func (h *EngineHandler) Signals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"signals": h.engine.LatestSignals()})
}

type statusResponse struct {
	BTCPrice       float64            `json:"btc_price"`
	MarketQuestion string             `json:"market_question"`
	LatestBrief    *domain.TradeBrief `json:"latest_brief"`
}

// Status summarises price, market and pending brief.
// GET /status
func (h *EngineHandler) Status(w http.ResponseWriter, r *http.Request) {
	signals := h.engine.LatestSignals()
	if signals == nil {
		writeError(w, http.StatusNotFound, domain.ErrNoData.Error())
		return
	}
	question := "N/A"
	if m := h.engine.CurrentMarket(); m != nil {
		question = m.Question
	}
	writeJSON(w, http.StatusOK, statusResponse{
		BTCPrice:       signals.BTCPrice,
		MarketQuestion: question,
		LatestBrief:    h.engine.LatestBrief(),
	})
}

// Suggestions returns the last 50 suggestion-log lines.
// GET /suggestions
func (h *EngineHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	lines := []string{}
	if h.suggestions != nil {
		var err error
		lines, err = h.suggestions.Suggestions(suggestionTail)
		if err != nil {
			logHandler(h.logger, "suggestions").ErrorContext(r.Context(), "read suggestion log failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to read suggestions")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": lines})
}

type confirmRequest struct {
	Command string `json:"command"`
}

// Confirm queues CONTINUE or SKIP for the pending brief.
// POST /trade/confirm
func (h *EngineHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cmd := engine.NormalizeCommand(req.Command)
	if cmd != engine.CommandContinue && cmd != engine.CommandSkip {
		writeError(w, http.StatusBadRequest, "command must be CONTINUE or SKIP")
		return
	}

	switch err := h.engine.Submit(cmd); {
	case errors.Is(err, domain.ErrNoBrief):
		writeError(w, http.StatusBadRequest, "No pending trade brief to confirm.")
	case errors.Is(err, domain.ErrConfirmationPending):
		writeError(w, http.StatusConflict, "A confirmation command is already queued.")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		logHandler(h.logger, "confirm").InfoContext(r.Context(), "confirmation queued", slog.String("command", cmd))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Command '" + cmd + "' sent to engine."})
	}
}

// LatestBrief returns the pending brief, or null.
// GET /trade/latest
func (h *EngineHandler) LatestBrief(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"brief": h.engine.LatestBrief()})
}

// Markets lists the currently tradeable BTC 15-minute markets.
// GET /markets
func (h *EngineHandler) Markets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.engine.FindMarkets(r.Context())
	if err != nil {
		logHandler(h.logger, "markets").ErrorContext(r.Context(), "market discovery failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to list markets")
		return
	}
	if markets == nil {
		markets = []domain.MarketInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"active_markets": markets})
}

// Merge redeems complete YES/NO sets of the tracked market.
// POST /merge
func (h *EngineHandler) Merge(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.MergeCurrent(r.Context())
	switch {
	case errors.Is(err, domain.ErrNoMarket):
		writeError(w, http.StatusBadRequest, "No active market to merge.")
		return
	case err != nil:
		logHandler(h.logger, "merge").ErrorContext(r.Context(), "merge failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "response": res})
}
