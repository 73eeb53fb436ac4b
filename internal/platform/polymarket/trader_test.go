package polymarket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

func marketsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets":
			fmt.Fprintf(w, `[{"question":"Bitcoin Up or Down 15-minute","conditionId":%q,"active":true,"closed":false,"clobTokenIds":["111","222"]}]`, testCondition)
		case "/book":
			if r.URL.Query().Get("token_id") == "111" {
				fmt.Fprint(w, `{"bids":[{"price":"0.62","size":"1"}]}`)
				return
			}
			if r.URL.Query().Get("token_id") == "empty" {
				fmt.Fprint(w, `{"bids":[]}`)
				return
			}
			http.Error(w, "no book", http.StatusNotFound)
		case "/order":
			fmt.Fprint(w, `{"success":true,"orderID":"0xabc","status":"matched"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTraderModes(t *testing.T) {
	srv := marketsServer(t)
	g := NewGammaClient(srv.URL, discardLogger())
	c := NewClobClient(srv.URL, nil, nil)

	assert.Equal(t, ModePublic, NewTrader(g, c, nil, nil, TraderConfig{}, discardLogger()).Mode())
	assert.Equal(t, ModeDryRun, NewTrader(g, c, nil, testSigner(t), TraderConfig{DryRun: true}, discardLogger()).Mode())
	assert.Equal(t, ModeLive, NewTrader(g, c, nil, testSigner(t), TraderConfig{}, discardLogger()).Mode())
}

func TestTraderGetOdds(t *testing.T) {
	srv := marketsServer(t)
	tr := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, nil, nil), nil, nil, TraderConfig{}, discardLogger())
	ctx := context.Background()

	odds := tr.GetOdds(ctx, "111")
	assert.InDelta(t, 0.62, odds.YesPrice, 1e-9)
	assert.InDelta(t, 0.38, odds.NoPrice, 1e-9)

	assert.Equal(t, domain.Odds{YesPrice: 0.5, NoPrice: 0.5}, tr.GetOdds(ctx, "empty"))
	assert.Equal(t, domain.NeutralOdds(), tr.GetOdds(ctx, "missing"))
}

func TestTraderPublicOnlyIsNoop(t *testing.T) {
	srv := marketsServer(t)
	tr := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, nil, nil), nil, nil, TraderConfig{}, discardLogger())

	res, err := tr.PlaceOrder(context.Background(), "111", 10, 0.5)
	assert.NoError(t, err)
	assert.Nil(t, res)

	merge, err := tr.Merge(context.Background(), testCondition)
	assert.NoError(t, err)
	assert.Nil(t, merge)
}

func TestTraderDryRunOrder(t *testing.T) {
	srv := marketsServer(t)
	tr := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, nil, nil), nil, testSigner(t), TraderConfig{DryRun: true}, discardLogger())

	res, err := tr.PlaceOrder(context.Background(), "111", 10, 0.5)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, domain.OrderStatusDryRun, res.Status)
	assert.InDelta(t, 0.01, res.DynamicFee, 1e-9)
	assert.InDelta(t, 10.1, res.TotalCost, 1e-9)
	assert.InDelta(t, 20, res.Payout, 1e-9)
}

func TestTraderLiveOrder(t *testing.T) {
	srv := marketsServer(t)
	signer := testSigner(t)
	tr := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, signer, testHMAC()), nil, signer, TraderConfig{}, discardLogger())

	res, err := tr.PlaceOrder(context.Background(), "111", 10, 0.996)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", res.OrderID)
	assert.Equal(t, domain.OrderStatusMatched, res.Status)
	assert.InDelta(t, 0.99, res.Price, 1e-9)
}

func TestBuildOrderAmounts(t *testing.T) {
	srv := marketsServer(t)
	signer := testSigner(t)
	tr := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, signer, testHMAC()), nil, signer, TraderConfig{}, discardLogger())

	order, salt, err := tr.buildOrder("111", 10, 0.504)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, order.Price, 1e-9)
	assert.Equal(t, "10000000", order.MakerAmount.String())
	assert.Equal(t, "20000000", order.TakerAmount.String())
	assert.Equal(t, fmt.Sprint(salt), order.Salt)
	assert.NotEmpty(t, order.Signature)

	_, _, err = tr.buildOrder("111", 0, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestTraderMerge(t *testing.T) {
	srv := marketsServer(t)
	signer := testSigner(t)
	ctx := context.Background()

	chain := newFakeChain(t, map[string]int64{"111": 4_000_000, "222": 2_500_000})
	ctf, err := NewCTFClient(chain, signer, testCTF, testCollateral)
	require.NoError(t, err)

	live := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, signer, testHMAC()), ctf, signer, TraderConfig{}, discardLogger())

	_, err = live.Merge(ctx, testCondition)
	assert.ErrorIs(t, err, domain.ErrNoMarket, "unknown until discovered")

	_, err = live.FindMarkets(ctx)
	require.NoError(t, err)

	res, err := live.Merge(ctx, testCondition)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "2500000", res.Amount)
	assert.NotEmpty(t, res.TxHash)
	assert.Len(t, chain.sent, 1)

	dry := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, nil, nil), ctf, signer, TraderConfig{DryRun: true}, discardLogger())
	_, err = dry.FindMarkets(ctx)
	require.NoError(t, err)
	res, err = dry.Merge(ctx, testCondition)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "dry run", res.Reason)
	assert.Len(t, chain.sent, 1)

	chain.balances = map[string]int64{"111": 1}
	res, err = dry.Merge(ctx, testCondition)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "0", res.Amount)
}

func TestTraderMergeChainFailureYieldsNilResult(t *testing.T) {
	srv := marketsServer(t)
	signer := testSigner(t)
	ctx := context.Background()

	chain := newFakeChain(t, map[string]int64{"111": 4_000_000, "222": 2_500_000})
	chain.callErr = errors.New("rpc down")
	ctf, err := NewCTFClient(chain, signer, testCTF, testCollateral)
	require.NoError(t, err)

	live := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, signer, testHMAC()), ctf, signer, TraderConfig{}, discardLogger())
	_, err = live.FindMarkets(ctx)
	require.NoError(t, err)

	res, err := live.Merge(ctx, testCondition)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, chain.sent)

	noRPC := NewTrader(NewGammaClient(srv.URL, discardLogger()), NewClobClient(srv.URL, signer, testHMAC()), nil, signer, TraderConfig{}, discardLogger())
	res, err = noRPC.Merge(ctx, testCondition)
	require.NoError(t, err)
	assert.Nil(t, res)
}
