package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradedash/internal/domain"
)

// Compile-time interface check.
var _ TradeRecorder = (*ParquetRecorder)(nil)

// ParquetRecorder implements TradeRecorder using daily Parquet files on
// disk, one file per symbol per UTC day.
type ParquetRecorder struct {
	DataDir string
}

// NewParquetRecorder creates a ParquetRecorder rooted at the given data
// directory.
func NewParquetRecorder(dataDir string) *ParquetRecorder {
	return &ParquetRecorder{DataDir: dataDir}
}

// tradeRecord is the Parquet schema for trade tick data. Price and
// quantity stay strings to preserve exchange precision.
type tradeRecord struct {
	Symbol       string `parquet:"symbol"`
	ID           int64  `parquet:"id"`
	Price        string `parquet:"price"`
	Qty          string `parquet:"qty"`
	Timestamp    int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	IsBuyerMaker bool   `parquet:"is_buyer_maker"`
}

// RecordTrades writes trades to Parquet files organized by symbol and UTC
// date. Re-delivered trades are deduplicated by ID on merge.
func (r *ParquetRecorder) RecordTrades(_ context.Context, symbol string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	groups := make(map[string][]tradeRecord)
	for _, t := range trades {
		date := time.UnixMilli(t.Time).UTC().Format("2006-01-02")
		groups[date] = append(groups[date], tradeRecord{
			Symbol:       symbol,
			ID:           t.ID,
			Price:        t.Price,
			Qty:          t.Qty,
			Timestamp:    t.Time,
			IsBuyerMaker: t.IsBuyerMaker,
		})
	}

	for date, records := range groups {
		path := r.tradePath(symbol, date)

		// Read existing records to merge.
		existing, _ := readParquetFile[tradeRecord](path)
		merged := mergeTradeRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing trades for %s/%s: %w", symbol, date, err)
		}
	}
	return nil
}

// ReadTrades reads all recorded trades for the symbol on the given date.
func (r *ParquetRecorder) ReadTrades(_ context.Context, symbol, date string) ([]domain.Trade, error) {
	records, err := readParquetFile[tradeRecord](r.tradePath(symbol, date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	trades := make([]domain.Trade, len(records))
	for i, rec := range records {
		trades[i] = domain.Trade{
			ID:           rec.ID,
			Price:        rec.Price,
			Qty:          rec.Qty,
			Time:         rec.Timestamp,
			IsBuyerMaker: rec.IsBuyerMaker,
		}
	}
	return trades, nil
}

// tradePath returns the filesystem path for a trade Parquet file.
// Layout: <dataDir>/trades/<SYMBOL>/<YYYY-MM-DD>.parquet
func (r *ParquetRecorder) tradePath(symbol, date string) string {
	return filepath.Join(r.DataDir, "trades", strings.ToUpper(symbol), date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeTradeRecords deduplicates records by (symbol, id), preferring new
// records over existing ones. Results are sorted by timestamp, then ID.
func mergeTradeRecords(existing, incoming []tradeRecord) []tradeRecord {
	type key struct {
		symbol string
		id     int64
	}
	seen := make(map[key]tradeRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.ID}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.ID}] = r
	}

	merged := make([]tradeRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
