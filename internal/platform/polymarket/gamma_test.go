package polymarket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const gammaPage = `[
 {"id":"1","question":"Bitcoin Up or Down 15-minute 10:00","conditionId":"0xaa","active":true,"closed":false,
  "clobTokenIds":"[\"111\",\"222\"]"},
 {"id":"2","question":"Ethereum Up or Down 15-minute 10:00","conditionId":"0xbb","active":true,"closed":false,
  "clobTokenIds":["333","444"]},
 {"id":"3","question":"Bitcoin Up or Down 15-minute closed","conditionId":"0xcc","active":"true","closed":"true",
  "clobTokenIds":["555","666"]},
 {"id":4,"question":["not","a","string"]},
 {"id":"5","question":"Bitcoin hourly","conditionId":"0xdd","active":true,"closed":false,"clobTokenIds":["7","8"]}
]`

func TestListActiveMarketsSkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		fmt.Fprint(w, gammaPage)
	}))
	defer srv.Close()

	g := NewGammaClient(srv.URL, discardLogger())
	markets, n, err := g.ListActiveMarkets(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, markets, 4)
	assert.Equal(t, []string{"111", "222"}, []string(markets[0].ClobTokenIDs))
}

func TestFindBTC15mMarketsFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gammaPage)
	}))
	defer srv.Close()

	g := NewGammaClient(srv.URL, discardLogger())
	markets, err := g.FindBTC15mMarkets(context.Background(), 100, 3)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "0xaa", markets[0].ConditionID)
	assert.Equal(t, "111", markets[0].YesToken)
	assert.Equal(t, "222", markets[0].NoToken)
	assert.True(t, markets[0].Active)
}

func TestFindBTC15mMarketsPaginates(t *testing.T) {
	var offsets []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		off, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		offsets = append(offsets, off)
		switch off {
		case 0:
			fmt.Fprint(w, `[{"question":"x"},{"question":"y"}]`)
		case 2:
			fmt.Fprint(w, `[{"question":"Bitcoin 15-minute","conditionId":"0x1","active":true,"clobTokenIds":["a","b"]}]`)
		default:
			t.Errorf("unexpected offset %d", off)
		}
	}))
	defer srv.Close()

	g := NewGammaClient(srv.URL, discardLogger())
	markets, err := g.FindBTC15mMarkets(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, offsets)
	require.Len(t, markets, 1)
	assert.Equal(t, "0x1", markets[0].ConditionID)
}

func TestFindBTC15mMarketsFirstPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGammaClient(srv.URL, discardLogger())
	_, err := g.FindBTC15mMarkets(context.Background(), 100, 2)
	assert.Error(t, err)
}
