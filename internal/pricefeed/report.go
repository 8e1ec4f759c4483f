package pricefeed

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// reportEnvelope is the outer frame pushed by the Data Streams WebSocket.
type reportEnvelope struct {
	Report reportMessage `json:"report"`
}

// reportMessage is one decoded feed report. Depending on the feed schema the
// price lives in one of several fields; all are 18-decimal fixed-point strings.
type reportMessage struct {
	FeedID               string `json:"feedID"`
	ValidFromTimestamp   int64  `json:"validFromTimestamp"`
	ObservationTimestamp int64  `json:"observationsTimestamp"`
	BenchmarkPrice       string `json:"benchmarkPrice"`
	MidPrice             string `json:"midPrice"`
	Price                string `json:"price"`
	MarketStatus         string `json:"marketStatus"`
}

// priceValue extracts the report's price as a float, trying the schema's
// candidate fields in order and scaling down from 18-decimal fixed point.
func (r *reportMessage) priceValue() (float64, error) {
	raw := ""
	for _, candidate := range []string{r.Price, r.BenchmarkPrice, r.MidPrice} {
		if candidate != "" {
			raw = candidate
			break
		}
	}
	if raw == "" {
		return 0, fmt.Errorf("report %s: no price field", r.FeedID)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("report %s: parse price %q: %w", r.FeedID, raw, err)
	}
	return d.Shift(-18).InexactFloat64(), nil
}

// observedAt returns the report's observation time, falling back to the
// valid-from time and finally to now for reports without timestamps.
func (r *reportMessage) observedAt(now time.Time) time.Time {
	switch {
	case r.ObservationTimestamp > 0:
		return time.Unix(r.ObservationTimestamp, 0)
	case r.ValidFromTimestamp > 0:
		return time.Unix(r.ValidFromTimestamp, 0)
	default:
		return now
	}
}
