// Package testutil provides shared fixtures and helpers for tests and
// benchmarks.
package testutil

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/quiverdata/quiver/pkg/dataset"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/vector"
)

// TestLogger returns a logger that writes through the test output and
// flushes when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext returns a context with a 30-second timeout. The caller
// must call cancel.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// IntegrationTest skips t in short mode.
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

var tradeSymbols = []string{"AAPL", "MSFT", "GOOG", "TSLA", "AMZN", "NVDA"}

// Trades builds a deterministic n-row trades table: sym, price (a
// missing value every 13th row), qty, active, and a ts column of
// sequential minutes. The same n always yields the same table.
func Trades(tb testing.TB, n int) *table.Table {
	tb.Helper()

	rng := rand.New(rand.NewSource(42))
	start := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

	syms := make([]string, n)
	prices := make([]interface{}, n)
	qtys := make([]int, n)
	actives := make([]bool, n)
	stamps := make([]interface{}, n)
	for i := 0; i < n; i++ {
		syms[i] = tradeSymbols[rng.Intn(len(tradeSymbols))]
		if i%13 == 12 {
			prices[i] = nil
		} else {
			prices[i] = 50 + float64(rng.Intn(20000))/100
		}
		qtys[i] = 1 + rng.Intn(500)
		actives[i] = rng.Intn(4) > 0
		stamps[i] = start.Add(time.Duration(i) * time.Minute)
	}

	tbl, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: syms},
		{Name: "price", Values: prices},
		{Name: "qty", Values: qtys},
		{Name: "active", Values: actives},
		{Name: "ts", Values: stamps},
	}, nil)
	require.NoError(tb, err)
	return tbl
}

// WriteDataset writes tbl under the test's temp directory and returns
// the path. The extension picks the format.
func WriteDataset(tb testing.TB, name string, tbl *table.Table) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	require.NoError(tb, dataset.Write(path, tbl, nil))
	return path
}

// RequireTablesEqual compares two tables cell by cell. Numeric values
// compare by float64 value, so storage width differences pass.
func RequireTablesEqual(tb testing.TB, want, got *table.Table) {
	tb.Helper()
	require.Equal(tb, want.Names(), got.Names())
	require.Equal(tb, want.RowCount(), got.RowCount())

	for _, name := range want.Names() {
		wc, _ := want.Col(name)
		gc, ok := got.Col(name)
		require.True(tb, ok, "column %s", name)
		for i := 0; i < wc.Len(); i++ {
			wv, gv := wc.Value(i), gc.Value(i)
			if vector.IsMissing(wv) {
				require.True(tb, vector.IsMissing(gv), "column %s row %d", name, i)
				continue
			}
			wf, wok := vector.ToFloat64(wv)
			gf, gok := vector.ToFloat64(gv)
			if wok && gok {
				require.InDelta(tb, wf, gf, 1e-9, "column %s row %d", name, i)
				continue
			}
			require.Equal(tb, wv, gv, "column %s row %d", name, i)
		}
	}
}
