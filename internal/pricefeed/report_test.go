package pricefeed

import (
	"encoding/json"
	"testing"
	"time"
)

func TestReportPriceValue(t *testing.T) {
	tests := []struct {
		name    string
		report  reportMessage
		want    float64
		wantErr bool
	}{
		{
			name:   "price field",
			report: reportMessage{Price: "2020500000000000000000"},
			want:   2020.5,
		},
		{
			name:   "benchmark fallback",
			report: reportMessage{BenchmarkPrice: "100000000000000000000"},
			want:   100,
		},
		{
			name:   "mid price fallback",
			report: reportMessage{MidPrice: "1000000000000000000"},
			want:   1,
		},
		{
			name:   "price preferred over benchmark",
			report: reportMessage{Price: "2000000000000000000", BenchmarkPrice: "3000000000000000000"},
			want:   2,
		},
		{
			name:    "no price fields",
			report:  reportMessage{FeedID: "0xfeed"},
			wantErr: true,
		},
		{
			name:    "garbage price",
			report:  reportMessage{Price: "not-a-number"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.report.priceValue()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("priceValue: %v", err)
			}
			if got != tt.want {
				t.Fatalf("priceValue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReportObservedAt(t *testing.T) {
	now := time.Unix(1700000100, 0)

	r := reportMessage{ObservationTimestamp: 1700000050, ValidFromTimestamp: 1700000040}
	if got := r.observedAt(now); !got.Equal(time.Unix(1700000050, 0)) {
		t.Fatalf("observedAt = %v, want observation timestamp", got)
	}

	r = reportMessage{ValidFromTimestamp: 1700000040}
	if got := r.observedAt(now); !got.Equal(time.Unix(1700000040, 0)) {
		t.Fatalf("observedAt = %v, want valid-from fallback", got)
	}

	r = reportMessage{}
	if got := r.observedAt(now); !got.Equal(now) {
		t.Fatalf("observedAt = %v, want now fallback", got)
	}
}

func TestReportEnvelopeDecode(t *testing.T) {
	raw := []byte(`{"report":{"feedID":"0x0003aed0369b","observationsTimestamp":1700000000,"benchmarkPrice":"2000000000000000000000"}}`)

	var env reportEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Report.FeedID != "0x0003aed0369b" {
		t.Fatalf("feed id = %s", env.Report.FeedID)
	}
	v, err := env.Report.priceValue()
	if err != nil {
		t.Fatalf("priceValue: %v", err)
	}
	if v != 2000 {
		t.Fatalf("price = %v, want 2000", v)
	}
}
