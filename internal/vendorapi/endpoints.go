package vendorapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"tradecoach/internal/model"
)

// ── Wire types ──
// Subset of the vendor's REST payloads, normalized into model types below.

type aggBar struct {
	T  int64   `json:"t"` // bucket start, unix millis
	O  float64 `json:"o"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	C  float64 `json:"c"`
	V  float64 `json:"v"`
	VW float64 `json:"vw"`
}

type aggsResponse struct {
	Ticker       string   `json:"ticker"`
	ResultsCount int      `json:"resultsCount"`
	Results      []aggBar `json:"results"`
}

type snapshotResponse struct {
	Ticker struct {
		Ticker           string  `json:"ticker"`
		TodaysChange     float64 `json:"todaysChange"`
		TodaysChangePerc float64 `json:"todaysChangePerc"`
		Updated          int64   `json:"updated"` // unix nanos
		Day              aggBar  `json:"day"`
		PrevDay          aggBar  `json:"prevDay"`
		LastTrade        struct {
			P float64 `json:"p"`
			T int64   `json:"t"`
		} `json:"lastTrade"`
	} `json:"ticker"`
}

type marketStatusResponse struct {
	Market string `json:"market"` // open | closed | extended-hours
}

type optionsChainResponse struct {
	Results []struct {
		Details struct {
			Ticker           string  `json:"ticker"`
			ContractType     string  `json:"contract_type"`
			StrikePrice      float64 `json:"strike_price"`
			ExpirationDate   string  `json:"expiration_date"`
			SharesPerContract int    `json:"shares_per_contract"`
		} `json:"details"`
		Day          aggBar  `json:"day"`
		OpenInterest float64 `json:"open_interest"`
	} `json:"results"`
}

// OptionContract is one normalized chain entry.
type OptionContract struct {
	Ticker       string    `json:"ticker"`
	Type         string    `json:"type"` // call | put
	Strike       float64   `json:"strike"`
	Expiry       time.Time `json:"expiry"`
	Volume       int64     `json:"volume"`
	OpenInterest int64     `json:"openInterest"`
	Close        float64   `json:"close"`
}

// ── Typed endpoint wrappers ──

// GetQuote returns the latest quote for symbol, or nil when the vendor has
// nothing usable. Quotes that fail validation (negative fields) are
// discarded the same way.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	var resp snapshotResponse
	ok, err := c.fetchJSON(ctx, "/v2/snapshot/locale/us/markets/stocks/tickers/"+symbol, nil, &resp)
	if err != nil || !ok {
		return nil, err
	}

	tk := &resp.Ticker
	q := &model.Quote{
		Symbol:        symbol,
		Price:         tk.LastTrade.P,
		Change:        tk.TodaysChange,
		ChangePercent: tk.TodaysChangePerc,
		Open:          tk.Day.O,
		High:          tk.Day.H,
		Low:           tk.Day.L,
		Close:         tk.Day.C,
		Volume:        int64(tk.Day.V),
		VWAP:          tk.Day.VW,
		PrevOpen:      tk.PrevDay.O,
		PrevHigh:      tk.PrevDay.H,
		PrevLow:       tk.PrevDay.L,
		PrevClose:     tk.PrevDay.C,
		Timestamp:     time.Unix(0, tk.Updated),
	}
	if q.Price == 0 && q.Close == 0 {
		return nil, nil // empty snapshot
	}
	if !q.Valid() {
		c.log.Warn("vendor quote failed validation", "symbol", symbol)
		return nil, nil
	}
	return q, nil
}

// GetAggregates returns up to limit recent bars for the given timespan.
// The request window is sized generously; the vendor caps results server
// side and we trim to the trailing limit.
func (c *Client) GetAggregates(ctx context.Context, symbol, timespan string, multiplier, limit int) ([]model.Bar, error) {
	to := time.Now()
	from := to.Add(-lookback(timespan, multiplier, limit))
	bars, err := c.GetHistoricalBars(ctx, symbol, from, to, timespan, multiplier)
	if err != nil || bars == nil {
		return nil, err
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// GetHistoricalBars returns ascending bars for an explicit [from, to] range.
func (c *Client) GetHistoricalBars(ctx context.Context, symbol string, from, to time.Time, timespan string, multiplier int) ([]model.Bar, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/%d/%d",
		symbol, multiplier, timespan, from.UnixMilli(), to.UnixMilli())

	params := url.Values{}
	params.Set("adjusted", "true")
	params.Set("sort", "asc")
	params.Set("limit", strconv.Itoa(50000))

	var resp aggsResponse
	ok, err := c.fetchJSON(ctx, path, params, &resp)
	if err != nil || !ok {
		return nil, err
	}

	bars := make([]model.Bar, 0, len(resp.Results))
	for _, r := range resp.Results {
		bars = append(bars, model.Bar{
			TS:     time.UnixMilli(r.T).UTC(),
			Open:   r.O,
			High:   r.H,
			Low:    r.L,
			Close:  r.C,
			Volume: int64(r.V),
			VWAP:   r.VW,
		})
	}
	if !model.ValidBars(bars) {
		c.log.Warn("vendor bars failed validation", "symbol", symbol, "timespan", timespan)
		return nil, nil
	}
	return bars, nil
}

// GetMarketStatus returns the vendor's market state string ("open",
// "closed", "extended-hours"), or "" on a soft failure.
func (c *Client) GetMarketStatus(ctx context.Context) (string, error) {
	var resp marketStatusResponse
	ok, err := c.fetchJSON(ctx, "/v1/marketstatus/now", nil, &resp)
	if err != nil || !ok {
		return "", err
	}
	return resp.Market, nil
}

// GetOptionsChain returns the normalized option chain for an underlying.
func (c *Client) GetOptionsChain(ctx context.Context, underlying string) ([]OptionContract, error) {
	params := url.Values{}
	params.Set("limit", "250")

	var resp optionsChainResponse
	ok, err := c.fetchJSON(ctx, "/v3/snapshot/options/"+underlying, params, &resp)
	if err != nil || !ok {
		return nil, err
	}

	out := make([]OptionContract, 0, len(resp.Results))
	for _, r := range resp.Results {
		expiry, perr := time.Parse("2006-01-02", r.Details.ExpirationDate)
		if perr != nil {
			continue
		}
		out = append(out, OptionContract{
			Ticker:       r.Details.Ticker,
			Type:         r.Details.ContractType,
			Strike:       r.Details.StrikePrice,
			Expiry:       expiry,
			Volume:       int64(r.Day.V),
			OpenInterest: int64(r.OpenInterest),
			Close:        r.Day.C,
		})
	}
	return out, nil
}

// lookback sizes the aggregate request window so at least limit buckets of
// the timespan land inside it, padded for closed sessions and weekends.
func lookback(timespan string, multiplier, limit int) time.Duration {
	var unit time.Duration
	switch timespan {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	default:
		unit = time.Minute
	}
	span := unit * time.Duration(multiplier*limit)
	// Intraday buckets only accrue ~6.5h per trading day; quadruple the
	// window and add a weekend so the range always covers enough sessions.
	if unit < 24*time.Hour {
		span = span*4 + 72*time.Hour
	} else {
		span = span * 2
	}
	return span
}
