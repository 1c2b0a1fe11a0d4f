// Package dashboard holds the controller core of the trading dashboard:
// selection and connection state, the price chart series, the bounded
// trade list, and the reaction to every push event. It is deliberately
// free of any rendering so the semantics can be tested directly; the TUI
// in cmd/tradedash is a thin view over it.
package dashboard

import (
	"strconv"
	"time"

	"tradedash/internal/domain"
)

const (
	// ChartAppendCap bounds the series during incremental price appends.
	ChartAppendCap = 50
	// ChartReloadLimit is the candle count requested on a full reload.
	ChartReloadLimit = 100
)

// ChartSeries is an ordered pair of label and price sequences. The two
// sequences always have equal length: every mutation appends or evicts
// both sides together.
type ChartSeries struct {
	labels []string
	prices []float64
	loc    *time.Location
}

// NewChartSeries creates an empty series whose time labels are rendered
// in the given location (nil means local time).
func NewChartSeries(loc *time.Location) *ChartSeries {
	if loc == nil {
		loc = time.Local
	}
	return &ChartSeries{loc: loc}
}

// Append adds one point, evicting exactly one point from the front of
// both sequences when the cap is exceeded.
func (s *ChartSeries) Append(label string, price float64) {
	s.labels = append(s.labels, label)
	s.prices = append(s.prices, price)
	if len(s.prices) > ChartAppendCap {
		s.labels = s.labels[1:]
		s.prices = s.prices[1:]
	}
}

// Reload replaces the series wholesale from historical candles,
// preserving input order. Each candle contributes its open time as the
// label and its close price as the value.
func (s *ChartSeries) Reload(candles []domain.Candle) {
	labels := make([]string, 0, len(candles))
	prices := make([]float64, 0, len(candles))
	for _, c := range candles {
		price, err := strconv.ParseFloat(c.Close, 64)
		if err != nil {
			continue
		}
		labels = append(labels, TimeLabel(c.OpenTime, s.loc))
		prices = append(prices, price)
	}
	s.labels = labels
	s.prices = prices
}

// Len returns the number of points.
func (s *ChartSeries) Len() int { return len(s.prices) }

// Labels returns the label sequence.
func (s *ChartSeries) Labels() []string { return s.labels }

// Prices returns the price sequence.
func (s *ChartSeries) Prices() []float64 { return s.prices }

// Last returns the most recent point, or false when the series is empty.
func (s *ChartSeries) Last() (label string, price float64, ok bool) {
	if len(s.prices) == 0 {
		return "", 0, false
	}
	return s.labels[len(s.labels)-1], s.prices[len(s.prices)-1], true
}

// Sparkline renders the price sequence as a single row of block glyphs,
// keeping the most recent points when the series is wider than width.
func (s *ChartSeries) Sparkline(width int) string {
	if width <= 0 || len(s.prices) == 0 {
		return ""
	}
	prices := s.prices
	if len(prices) > width {
		prices = prices[len(prices)-width:]
	}

	min, max := prices[0], prices[0]
	for _, p := range prices {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}

	glyphs := []rune("▁▂▃▄▅▆▇█")
	out := make([]rune, len(prices))
	span := max - min
	for i, p := range prices {
		idx := 0
		if span > 0 {
			idx = int((p - min) / span * float64(len(glyphs)-1))
		}
		out[i] = glyphs[idx]
	}
	return string(out)
}
