package benchmarks

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/quiverdata/quiver/pkg/dataset"
	"github.com/quiverdata/quiver/pkg/query"
	"github.com/quiverdata/quiver/pkg/table"
	"github.com/quiverdata/quiver/pkg/testutil"
)

// benchSizes spans quick iteration up to a realistic working set.
var benchSizes = []int{1_000, 10_000, 100_000}

func reportRows(b *testing.B, rows int) {
	b.ReportMetric(float64(rows)*float64(b.N)/b.Elapsed().Seconds(), "rows/s")
}

func BenchmarkFilter(b *testing.B) {
	for _, n := range benchSizes {
		b.Run(fmt.Sprintf("rows_%d", n), func(b *testing.B) {
			t := testutil.Trades(b, n)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := query.Filter(t, "qty > 250 AND active = true"); err != nil {
					b.Fatal(err)
				}
			}
			reportRows(b, n)
		})
	}
}

func BenchmarkGroupByAgg(b *testing.B) {
	for _, n := range benchSizes {
		b.Run(fmt.Sprintf("rows_%d", n), func(b *testing.B) {
			t := testutil.Trades(b, n)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				g, err := t.GroupBy("sym")
				if err != nil {
					b.Fatal(err)
				}
				if _, err := g.Agg(map[string]interface{}{"price": "mean", "qty": "sum"}); err != nil {
					b.Fatal(err)
				}
			}
			reportRows(b, n)
		})
	}
}

func BenchmarkPivot(b *testing.B) {
	for _, n := range benchSizes {
		b.Run(fmt.Sprintf("rows_%d", n), func(b *testing.B) {
			t := testutil.Trades(b, n)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := t.Pivot([]string{"sym"}, []string{"active"}, "qty", "sum"); err != nil {
					b.Fatal(err)
				}
			}
			reportRows(b, n)
		})
	}
}

func BenchmarkJoin(b *testing.B) {
	sectors, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: []string{"AAPL", "MSFT", "GOOG", "TSLA", "AMZN", "NVDA"}},
		{Name: "sector", Values: []string{"tech", "tech", "tech", "auto", "retail", "tech"}},
	}, nil)
	if err != nil {
		b.Fatal(err)
	}

	for _, n := range benchSizes {
		b.Run(fmt.Sprintf("rows_%d", n), func(b *testing.B) {
			t := testutil.Trades(b, n)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := t.Join(sectors, []string{"sym"}, table.LeftJoin); err != nil {
					b.Fatal(err)
				}
			}
			reportRows(b, n)
		})
	}
}

func BenchmarkSort(b *testing.B) {
	for _, n := range benchSizes {
		b.Run(fmt.Sprintf("rows_%d", n), func(b *testing.B) {
			t := testutil.Trades(b, n)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := t.Sort("price", false); err != nil {
					b.Fatal(err)
				}
			}
			reportRows(b, n)
		})
	}
}

func BenchmarkResample(b *testing.B) {
	for _, n := range benchSizes {
		b.Run(fmt.Sprintf("rows_%d", n), func(b *testing.B) {
			t := testutil.Trades(b, n)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := t.Resample("ts", "1h", map[string]interface{}{"qty": "sum"}); err != nil {
					b.Fatal(err)
				}
			}
			reportRows(b, n)
		})
	}
}

func BenchmarkDatasetWrite(b *testing.B) {
	const n = 10_000
	t := testutil.Trades(b, n)
	dir := b.TempDir()

	for _, name := range []string{"trades.csv", "trades.parquet", "trades.arrow", "trades.csv.zst"} {
		b.Run(name, func(b *testing.B) {
			path := filepath.Join(dir, name)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := dataset.Write(path, t, nil); err != nil {
					b.Fatal(err)
				}
			}
			reportRows(b, n)
		})
	}
}

func BenchmarkDatasetRead(b *testing.B) {
	const n = 10_000
	t := testutil.Trades(b, n)
	dir := b.TempDir()

	for _, name := range []string{"trades.csv", "trades.parquet", "trades.arrow", "trades.csv.zst"} {
		b.Run(name, func(b *testing.B) {
			path := filepath.Join(dir, name)
			if err := dataset.Write(path, t, nil); err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := dataset.Read(path, nil); err != nil {
					b.Fatal(err)
				}
			}
			reportRows(b, n)
		})
	}
}
