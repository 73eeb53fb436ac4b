package cryptopanic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

func TestSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, postsPath, r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("auth_token"))
		assert.Equal(t, "BTC", r.URL.Query().Get("currencies"))
		fmt.Fprint(w, `{"results":[
			{"title":"ETF inflows surge","votes":{"positive":4,"negative":1}},
			{"title":"Miner selloff","votes":{"positive":0,"negative":2}},
			{"title":"Flat day","votes":{}},
			{"title":"ignored fourth","votes":{"positive":100}}
		]}`)
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL, "tok").Sentiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ETF inflows surge", "Miner selloff", "Flat day"}, s.Headlines)
	assert.Equal(t, 5.71, s.SentimentScore)
}

func TestSentimentWithoutKey(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	s, err := c.Sentiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.NeutralSentiment(), s)
}

func TestScorePostsNoVotes(t *testing.T) {
	s := scorePosts(gjson.Parse(`[{"title":"a"}]`))
	assert.Equal(t, 5.0, s.SentimentScore)
	assert.Equal(t, []string{"a"}, s.Headlines)

	s = scorePosts(gjson.Parse(`null`))
	assert.Equal(t, domain.NeutralSentiment(), s)
}

func TestSentimentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL, "tok").Sentiment(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 5.0, s.SentimentScore)
}
