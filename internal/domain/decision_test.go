package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	a, ok := ParseAction(" buy_up ")
	assert.True(t, ok)
	assert.Equal(t, ActionBuyUp, a)

	a, ok = ParseAction("BUY_DOWN")
	assert.True(t, ok)
	assert.Equal(t, ActionBuyDown, a)

	a, ok = ParseAction("HOLD")
	assert.False(t, ok)
	assert.Equal(t, ActionWait, a)
}

func TestDepthSnapshotBestBid(t *testing.T) {
	var nilSnap *DepthSnapshot
	_, ok := nilSnap.BestBid()
	assert.False(t, ok)

	snap := &DepthSnapshot{Bids: []Wall{{Price: 65000.5, Volume: 1}, {Price: 64999, Volume: 3}}}
	p, ok := snap.BestBid()
	assert.True(t, ok)
	assert.Equal(t, 65000.5, p)
}
