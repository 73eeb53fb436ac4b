package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexStrings accepts a JSON array of strings or a string holding a
// JSON-encoded array; Gamma sends clobTokenIds as the latter.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*f = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*f = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return err
	}
	*f = arr
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket is the subset of a Gamma market the sniper reads.
type APIMarket struct {
	ID           string      `json:"id"`
	Question     string      `json:"question"`
	ConditionID  string      `json:"conditionId"`
	Slug         string      `json:"slug"`
	Active       flexBool    `json:"active"`
	Closed       flexBool    `json:"closed"`
	ClobTokenIDs flexStrings `json:"clobTokenIds"`
	EndDate      string      `json:"endDate"`
}

// ToMarketInfo converts a Gamma market. The first CLOB token is the YES
// outcome and the second the NO outcome.
func (m *APIMarket) ToMarketInfo() (domain.MarketInfo, bool) {
	if m.ConditionID == "" || len(m.ClobTokenIDs) < 2 {
		return domain.MarketInfo{}, false
	}
	return domain.MarketInfo{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		YesToken:    m.ClobTokenIDs[0],
		NoToken:     m.ClobTokenIDs[1],
		Active:      bool(m.Active),
	}, true
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBookLevel is one price level of a CLOB book. Price and size arrive as
// decimal strings.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the response of GET /book.
type APIBook struct {
	Market  string         `json:"market"`
	AssetID string         `json:"asset_id"`
	Bids    []APIBookLevel `json:"bids"`
	Asks    []APIBookLevel `json:"asks"`
}

// BestBid returns the highest parseable bid price.
func (b *APIBook) BestBid() (float64, bool) {
	best, ok := 0.0, false
	for _, lvl := range b.Bids {
		p, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			continue
		}
		if !ok || p > best {
			best, ok = p, true
		}
	}
	return best, ok
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// orderStatus maps CLOB placement statuses onto domain statuses.
func orderStatus(s string) domain.OrderStatus {
	switch strings.ToLower(s) {
	case "matched":
		return domain.OrderStatusMatched
	case "live":
		return domain.OrderStatusOpen
	default: // delayed, unmatched
		return domain.OrderStatusPending
	}
}

// apiOrderBody is the POST /order payload.
type apiOrderBody struct {
	Order     apiSignedOrder `json:"order"`
	Owner     string         `json:"owner"`
	OrderType string         `json:"orderType"`
}

type apiSignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}
