// Command benchmark measures core engine throughput on synthetic
// trade data: dataset round-trips, filtering, group-by, pivot, join,
// sort, and resample.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/quiverdata/quiver/pkg/dataset"
	"github.com/quiverdata/quiver/pkg/logger"
	"github.com/quiverdata/quiver/pkg/query"
	"github.com/quiverdata/quiver/pkg/table"
)

var (
	rows       = flag.Int("rows", 500_000, "Rows of synthetic data")
	iterations = flag.Int("count", 3, "Iterations per benchmark; best time wins")
	workDir    = flag.String("dir", "", "Scratch directory (default: temp)")
	verbose    = flag.Bool("v", false, "Log engine internals")
)

var symbols = []string{"AAPL", "MSFT", "GOOG", "TSLA", "AMZN", "NVDA", "META", "NFLX"}

func main() {
	flag.Parse()

	if !*verbose {
		_ = logger.Init(logger.Config{Level: "error", Encoding: "console"})
	}

	dir := *workDir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "quiver-bench-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "scratch directory: %v\n", err)
			os.Exit(1)
		}
		defer os.RemoveAll(dir)
	}

	fmt.Printf("=== Quiver engine benchmark ===\n")
	fmt.Printf("Rows: %d, iterations: %d\n\n", *rows, *iterations)

	t := buildTrades(*rows)

	benchmarks := []struct {
		name string
		fn   func(*table.Table) error
	}{
		{"csv round-trip", func(t *table.Table) error { return roundTrip(t, filepath.Join(dir, "bench.csv")) }},
		{"parquet round-trip", func(t *table.Table) error { return roundTrip(t, filepath.Join(dir, "bench.parquet")) }},
		{"arrow round-trip", func(t *table.Table) error { return roundTrip(t, filepath.Join(dir, "bench.arrow")) }},
		{"filter", benchFilter},
		{"group-by", benchGroupBy},
		{"pivot", benchPivot},
		{"join", benchJoin},
		{"sort", benchSort},
		{"resample", benchResample},
	}

	for _, b := range benchmarks {
		var best time.Duration
		var failed error
		for i := 0; i < *iterations; i++ {
			start := time.Now()
			if err := b.fn(t); err != nil {
				failed = err
				break
			}
			if d := time.Since(start); best == 0 || d < best {
				best = d
			}
		}
		if failed != nil {
			fmt.Printf("%-20s FAILED: %v\n", b.name, failed)
			continue
		}
		perSec := float64(*rows) / best.Seconds()
		fmt.Printf("%-20s %12s   %14.0f rows/s\n", b.name, best.Round(time.Microsecond), perSec)
	}
}

func buildTrades(n int) *table.Table {
	rng := rand.New(rand.NewSource(1))
	start := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

	syms := make([]string, n)
	prices := make([]float64, n)
	qtys := make([]int, n)
	sides := make([]string, n)
	stamps := make([]interface{}, n)
	for i := 0; i < n; i++ {
		syms[i] = symbols[rng.Intn(len(symbols))]
		prices[i] = 50 + float64(rng.Intn(20000))/100
		qtys[i] = 1 + rng.Intn(500)
		if rng.Intn(2) == 0 {
			sides[i] = "buy"
		} else {
			sides[i] = "sell"
		}
		stamps[i] = start.Add(time.Duration(i) * time.Second)
	}

	t, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: syms},
		{Name: "price", Values: prices},
		{Name: "qty", Values: qtys},
		{Name: "side", Values: sides},
		{Name: "ts", Values: stamps},
	}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building trades: %v\n", err)
		os.Exit(1)
	}
	return t
}

func roundTrip(t *table.Table, path string) error {
	if err := dataset.Write(path, t, nil); err != nil {
		return err
	}
	_, err := dataset.Read(path, nil)
	return err
}

func benchFilter(t *table.Table) error {
	_, err := query.Filter(t, "price > 100 AND qty < 400")
	return err
}

func benchGroupBy(t *table.Table) error {
	g, err := t.GroupBy("sym")
	if err != nil {
		return err
	}
	_, err = g.Agg(map[string]interface{}{"price": "mean", "qty": "sum"})
	return err
}

func benchPivot(t *table.Table) error {
	_, err := t.Pivot([]string{"sym"}, []string{"side"}, "price", "mean")
	return err
}

func benchJoin(t *table.Table) error {
	sectors, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: symbols},
		{Name: "sector", Values: []string{"tech", "tech", "tech", "auto", "retail", "tech", "tech", "media"}},
	}, nil)
	if err != nil {
		return err
	}
	_, err = t.Join(sectors, []string{"sym"}, table.LeftJoin)
	return err
}

func benchSort(t *table.Table) error {
	_, err := t.Sort("price", false)
	return err
}

func benchResample(t *table.Table) error {
	_, err := t.Resample("ts", "1h", map[string]interface{}{"qty": "sum"})
	return err
}
