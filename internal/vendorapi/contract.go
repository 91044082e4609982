package vendorapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParsedContract is the decomposition of an OCC-style option ticker,
// e.g. "O:SPY251219C00650000".
type ParsedContract struct {
	Underlying string
	Expiry     time.Time
	Type       string // call | put
	Strike     float64
}

// ParseContractTicker decodes an option contract ticker. Unlike the data
// fetchers, a malformed ticker here is a programmer error and returns an
// explicit error instead of degrading to nil.
func ParseContractTicker(ticker string) (*ParsedContract, error) {
	raw := strings.TrimPrefix(ticker, "O:")
	// Layout: UNDERLYING + YYMMDD + C/P + 8-digit strike (price × 1000).
	if len(raw) < 16 {
		return nil, fmt.Errorf("contract ticker too short: %q", ticker)
	}

	strikeStr := raw[len(raw)-8:]
	cpChar := raw[len(raw)-9]
	dateStr := raw[len(raw)-15 : len(raw)-9]
	underlying := raw[:len(raw)-15]

	if underlying == "" {
		return nil, fmt.Errorf("contract ticker missing underlying: %q", ticker)
	}

	expiry, err := time.Parse("060102", dateStr)
	if err != nil {
		return nil, fmt.Errorf("contract ticker bad expiry %q: %w", dateStr, err)
	}

	var cp string
	switch cpChar {
	case 'C':
		cp = "call"
	case 'P':
		cp = "put"
	default:
		return nil, fmt.Errorf("contract ticker bad type %q in %q", string(cpChar), ticker)
	}

	strikeMillis, err := strconv.ParseInt(strikeStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("contract ticker bad strike %q: %w", strikeStr, err)
	}

	return &ParsedContract{
		Underlying: underlying,
		Expiry:     expiry,
		Type:       cp,
		Strike:     float64(strikeMillis) / 1000.0,
	}, nil
}
