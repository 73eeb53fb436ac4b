package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

type fakeEngine struct {
	signals   *domain.MarketSignals
	brief     *domain.TradeBrief
	market    *domain.MarketInfo
	submitErr error
	submitted []string
	markets   []domain.MarketInfo
	marketErr error
	merge     *domain.MergeResult
	mergeErr  error
}

func (f *fakeEngine) LatestSignals() *domain.MarketSignals { return f.signals }
func (f *fakeEngine) LatestBrief() *domain.TradeBrief      { return f.brief }
func (f *fakeEngine) CurrentMarket() *domain.MarketInfo    { return f.market }

func (f *fakeEngine) Submit(cmd string) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, cmd)
	return nil
}

func (f *fakeEngine) FindMarkets(context.Context) ([]domain.MarketInfo, error) {
	return f.markets, f.marketErr
}

func (f *fakeEngine) MergeCurrent(context.Context) (*domain.MergeResult, error) {
	return f.merge, f.mergeErr
}

type fakeSuggestions struct {
	lines []string
	err   error
	asked int
}

func (f *fakeSuggestions) Suggestions(n int) ([]string, error) {
	f.asked = n
	return f.lines, f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func do(t *testing.T, h http.HandlerFunc, method, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestStatus(t *testing.T) {
	eng := &fakeEngine{}
	h := NewEngineHandler(eng, nil, discard())

	code, body := do(t, h.Status, http.MethodGet, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "no data received from streams yet", body["error"])

	eng.signals = &domain.MarketSignals{BTCPrice: 64000}
	code, body = do(t, h.Status, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 64000.0, body["btc_price"])
	assert.Equal(t, "N/A", body["market_question"])
	assert.Nil(t, body["latest_brief"])

	eng.market = &domain.MarketInfo{Question: "Bitcoin Up or Down 15-minute"}
	eng.brief = &domain.TradeBrief{ID: "b1"}
	_, body = do(t, h.Status, http.MethodGet, "")
	assert.Equal(t, "Bitcoin Up or Down 15-minute", body["market_question"])
	assert.Equal(t, "b1", body["latest_brief"].(map[string]any)["id"])
}

func TestSignalsAndLatestBrief(t *testing.T) {
	eng := &fakeEngine{}
	h := NewEngineHandler(eng, nil, discard())

	_, body := do(t, h.Signals, http.MethodGet, "")
	assert.Contains(t, body, "signals")
	assert.Nil(t, body["signals"])

	_, body = do(t, h.LatestBrief, http.MethodGet, "")
	assert.Contains(t, body, "brief")
	assert.Nil(t, body["brief"])

	eng.signals = &domain.MarketSignals{BTCPrice: 1}
	_, body = do(t, h.Signals, http.MethodGet, "")
	assert.Equal(t, 1.0, body["signals"].(map[string]any)["btc_price"])
}

func TestSuggestions(t *testing.T) {
	s := &fakeSuggestions{lines: []string{"a", "b"}}
	code, body := do(t, NewEngineHandler(&fakeEngine{}, s, discard()).Suggestions, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"a", "b"}, body["logs"])
	assert.Equal(t, 50, s.asked)

	_, body = do(t, NewEngineHandler(&fakeEngine{}, nil, discard()).Suggestions, http.MethodGet, "")
	assert.Equal(t, []any{}, body["logs"])

	code, _ = do(t, NewEngineHandler(&fakeEngine{}, &fakeSuggestions{err: errors.New("io")}, discard()).Suggestions, http.MethodGet, "")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestConfirm(t *testing.T) {
	eng := &fakeEngine{}
	h := NewEngineHandler(eng, nil, discard())

	code, body := do(t, h.Confirm, http.MethodPost, `{"command":"continue"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Command 'CONTINUE' sent to engine.", body["message"])
	assert.Equal(t, []string{"CONTINUE"}, eng.submitted)

	code, _ = do(t, h.Confirm, http.MethodPost, `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h.Confirm, http.MethodPost, `{"command":"MAYBE"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	eng.submitErr = domain.ErrNoBrief
	code, body = do(t, h.Confirm, http.MethodPost, `{"command":"SKIP"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No pending trade brief to confirm.", body["error"])

	eng.submitErr = domain.ErrConfirmationPending
	code, _ = do(t, h.Confirm, http.MethodPost, `{"command":"SKIP"}`)
	assert.Equal(t, http.StatusConflict, code)
}

func TestMarkets(t *testing.T) {
	eng := &fakeEngine{}
	h := NewEngineHandler(eng, nil, discard())

	_, body := do(t, h.Markets, http.MethodGet, "")
	assert.Equal(t, []any{}, body["active_markets"])

	eng.markets = []domain.MarketInfo{{ConditionID: "0xaa", YesToken: "1", NoToken: "2"}}
	_, body = do(t, h.Markets, http.MethodGet, "")
	assert.Len(t, body["active_markets"], 1)

	eng.marketErr = errors.New("gamma down")
	code, _ := do(t, h.Markets, http.MethodGet, "")
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestMerge(t *testing.T) {
	eng := &fakeEngine{mergeErr: domain.ErrNoMarket}
	h := NewEngineHandler(eng, nil, discard())

	code, _ := do(t, h.Merge, http.MethodPost, "")
	assert.Equal(t, http.StatusBadRequest, code)

	eng.mergeErr = nil
	code, body := do(t, h.Merge, http.MethodPost, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Nil(t, body["response"])

	eng.merge = &domain.MergeResult{ConditionID: "0xaa", Amount: "5", TxHash: "0xtx"}
	_, body = do(t, h.Merge, http.MethodPost, "")
	assert.Equal(t, "0xtx", body["response"].(map[string]any)["tx_hash"])

	eng.mergeErr = errors.New("rpc down")
	code, _ = do(t, h.Merge, http.MethodPost, "")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestHealthCheck(t *testing.T) {
	code, body := do(t, HealthCheck, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}
