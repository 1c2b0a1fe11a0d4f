package dashboard

import (
	"fmt"
	"testing"
	"time"

	"tradedash/internal/domain"
)

func TestChartAppendEvictsPairwise(t *testing.T) {
	s := NewChartSeries(time.UTC)

	for i := 0; i < ChartAppendCap+10; i++ {
		s.Append(fmt.Sprintf("l%d", i), float64(i))
	}

	if got := s.Len(); got != ChartAppendCap {
		t.Fatalf("len = %d, want %d", got, ChartAppendCap)
	}
	labels, prices := s.Labels(), s.Prices()
	if len(labels) != len(prices) {
		t.Fatalf("labels and prices diverged: %d vs %d", len(labels), len(prices))
	}
	// Oldest points are evicted first, so the window starts at point 10.
	if labels[0] != "l10" || prices[0] != 10 {
		t.Fatalf("window start = %q/%v, want l10/10", labels[0], prices[0])
	}
	label, price, ok := s.Last()
	if !ok || label != fmt.Sprintf("l%d", ChartAppendCap+9) || price != float64(ChartAppendCap+9) {
		t.Fatalf("last = %q/%v/%v", label, price, ok)
	}
}

func TestChartReloadReplacesWholesale(t *testing.T) {
	s := NewChartSeries(time.UTC)
	s.Append("stale", 1)

	base := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	candles := make([]domain.Candle, 3)
	for i := range candles {
		candles[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Close:    fmt.Sprintf("%d.5", 100+i),
		}
	}
	s.Reload(candles)

	if got := s.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
	wantLabels := []string{"09:30:00", "09:31:00", "09:32:00"}
	for i, want := range wantLabels {
		if s.Labels()[i] != want {
			t.Fatalf("label[%d] = %q, want %q", i, s.Labels()[i], want)
		}
	}
	if s.Prices()[2] != 102.5 {
		t.Fatalf("price[2] = %v, want 102.5", s.Prices()[2])
	}
}

func TestChartReloadSkipsBadCandles(t *testing.T) {
	s := NewChartSeries(time.UTC)

	s.Reload([]domain.Candle{
		{OpenTime: 0, Close: "100"},
		{OpenTime: 60_000, Close: "not-a-number"},
		{OpenTime: 120_000, Close: "101"},
	})

	if got := s.Len(); got != 2 {
		t.Fatalf("len = %d, want 2", got)
	}
	if s.Prices()[1] != 101 {
		t.Fatalf("price[1] = %v, want 101", s.Prices()[1])
	}
}

func TestSparkline(t *testing.T) {
	s := NewChartSeries(time.UTC)
	if got := s.Sparkline(10); got != "" {
		t.Fatalf("empty series sparkline = %q, want empty", got)
	}
	for i := 0; i < 8; i++ {
		s.Append("", float64(i))
	}
	line := s.Sparkline(4)
	if got := len([]rune(line)); got != 4 {
		t.Fatalf("sparkline width = %d, want 4", got)
	}
}
