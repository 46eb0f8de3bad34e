// Command profile collects pprof profiles while exercising the table
// engine with a representative query workload.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/quiverdata/quiver/pkg/query"
	"github.com/quiverdata/quiver/pkg/table"
)

func main() {
	var (
		duration     = flag.Duration("duration", 30*time.Second, "Profiling duration")
		outputDir    = flag.String("output", "./profiles", "Output directory for profiles")
		profileTypes = flag.String("types", "cpu,memory", "Profile types (cpu,memory,block,mutex,goroutine,all)")
		cpuFile      = flag.String("cpuprofile", "", "Write CPU profile to file")
		memFile      = flag.String("memprofile", "", "Write memory profile to file")
		rows         = flag.Int("rows", 200_000, "Rows of synthetic data to work on")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -types cpu -duration 30s\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -cpuprofile cpu.prof -memprofile mem.prof\n", os.Args[0])
	}

	flag.Parse()

	types := parseProfileTypes(*profileTypes)

	fmt.Printf("Starting engine profiling...\n")
	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("Profile types: %s\n", *profileTypes)
	fmt.Printf("Output directory: %s\n", *outputDir)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	if *cpuFile != "" || contains(types, "cpu") {
		cpuProfileFile := *cpuFile
		if cpuProfileFile == "" {
			cpuProfileFile = fmt.Sprintf("%s/cpu.prof", *outputDir)
		}

		f, err := os.Create(cpuProfileFile)
		if err != nil {
			log.Fatalf("Failed to create CPU profile: %v", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Failed to start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()

		fmt.Printf("CPU profiling enabled, writing to: %s\n", cpuProfileFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	runWorkload(ctx, *rows)

	if *memFile != "" || contains(types, "memory") {
		memProfileFile := *memFile
		if memProfileFile == "" {
			memProfileFile = fmt.Sprintf("%s/mem.prof", *outputDir)
		}

		f, err := os.Create(memProfileFile)
		if err != nil {
			log.Fatalf("Failed to create memory profile: %v", err)
		}
		defer f.Close()

		runtime.GC() // Get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatalf("Failed to write memory profile: %v", err)
		}

		fmt.Printf("Memory profile written to: %s\n", memProfileFile)
	}

	for _, profileType := range types {
		switch profileType {
		case "block":
			writeProfile("block", fmt.Sprintf("%s/block.prof", *outputDir))
		case "mutex":
			writeProfile("mutex", fmt.Sprintf("%s/mutex.prof", *outputDir))
		case "goroutine":
			writeProfile("goroutine", fmt.Sprintf("%s/goroutine.prof", *outputDir))
		}
	}

	fmt.Printf("Profiling completed successfully\n")
}

// runWorkload loops filter, group-by, pivot, join, and sort over a
// synthetic trades table until the context expires.
func runWorkload(ctx context.Context, rows int) {
	fmt.Printf("Building %d-row workload table...\n", rows)

	trades, err := buildTrades(rows)
	if err != nil {
		log.Fatalf("Failed to build workload table: %v", err)
	}

	sectors, err := table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: []string{"AAPL", "MSFT", "GOOG", "TSLA"}},
		{Name: "sector", Values: []string{"tech", "tech", "tech", "auto"}},
	}, nil)
	if err != nil {
		log.Fatalf("Failed to build sectors table: %v", err)
	}

	passes := 0
	for ctx.Err() == nil {
		if _, err := query.Filter(trades, "price > 100 AND qty < 300"); err != nil {
			log.Fatalf("Filter failed: %v", err)
		}

		g, err := trades.GroupBy("sym")
		if err != nil {
			log.Fatalf("GroupBy failed: %v", err)
		}
		if _, err := g.Agg(map[string]interface{}{"price": "mean", "qty": "sum"}); err != nil {
			log.Fatalf("Agg failed: %v", err)
		}

		if _, err := trades.Pivot([]string{"sym"}, []string{"side"}, "price", "mean"); err != nil {
			log.Fatalf("Pivot failed: %v", err)
		}

		if _, err := trades.Join(sectors, []string{"sym"}, table.LeftJoin); err != nil {
			log.Fatalf("Join failed: %v", err)
		}

		if _, err := trades.Sort("price", false); err != nil {
			log.Fatalf("Sort failed: %v", err)
		}

		passes++
	}

	fmt.Printf("Workload completed: %d passes\n", passes)
}

func buildTrades(n int) (*table.Table, error) {
	rng := rand.New(rand.NewSource(7))
	syms := []string{"AAPL", "MSFT", "GOOG", "TSLA"}

	symCol := make([]string, n)
	prices := make([]float64, n)
	qtys := make([]int, n)
	sides := make([]string, n)
	for i := 0; i < n; i++ {
		symCol[i] = syms[rng.Intn(len(syms))]
		prices[i] = 50 + float64(rng.Intn(20000))/100
		qtys[i] = 1 + rng.Intn(500)
		if rng.Intn(2) == 0 {
			sides[i] = "buy"
		} else {
			sides[i] = "sell"
		}
	}

	return table.FromColumns([]table.ColumnData{
		{Name: "sym", Values: symCol},
		{Name: "price", Values: prices},
		{Name: "qty", Values: qtys},
		{Name: "side", Values: sides},
	}, nil)
}

// writeProfile writes a specific profile type to file
func writeProfile(profileName, filename string) {
	profile := pprof.Lookup(profileName)
	if profile == nil {
		fmt.Printf("Profile %s not found\n", profileName)
		return
	}

	f, err := os.Create(filename)
	if err != nil {
		log.Printf("Failed to create %s profile: %v", profileName, err)
		return
	}
	defer f.Close()

	if err := profile.WriteTo(f, 0); err != nil {
		log.Printf("Failed to write %s profile: %v", profileName, err)
		return
	}

	fmt.Printf("Profile %s written to: %s\n", profileName, filename)
}

// parseProfileTypes parses the profile types string
func parseProfileTypes(typesStr string) []string {
	if typesStr == "all" {
		return []string{"cpu", "memory", "block", "mutex", "goroutine"}
	}

	parts := strings.Split(typesStr, ",")
	types := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "cpu", "memory", "mem", "block", "mutex", "goroutine":
			if part == "mem" {
				part = "memory"
			}
			types = append(types, part)
		}
	}

	return types
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
