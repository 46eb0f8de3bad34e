// Package performance sizes chunked loads against available system memory
// and reports host and process resource usage.
package performance

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

const (
	throughputWindow = 10
	minSamples       = 3
)

// AdvisorConfig tunes a MemoryAdvisor.
type AdvisorConfig struct {
	// MemoryFraction is the share of available memory a single chunk may
	// claim. Values outside (0, 1] fall back to the default.
	MemoryFraction float64
	MinRows        int
	MaxRows        int
	DefaultRows    int
}

// DefaultAdvisorConfig returns the standard advisor tuning.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		MemoryFraction: 0.10,
		MinRows:        512,
		MaxRows:        1 << 20,
		DefaultRows:    10000,
	}
}

// MemoryAdvisor advises how many rows a chunked loader should buffer
// before flushing. The advised size starts at DefaultRows, drifts with
// observed throughput, and is always capped by what fits in the
// configured fraction of available memory.
type MemoryAdvisor struct {
	config AdvisorConfig

	mu      sync.Mutex
	current int
	history []float64 // rows per second, most recent last
}

// NewMemoryAdvisor creates an advisor, filling zero config fields with
// defaults.
func NewMemoryAdvisor(config AdvisorConfig) *MemoryAdvisor {
	def := DefaultAdvisorConfig()
	if config.MemoryFraction <= 0 || config.MemoryFraction > 1 {
		config.MemoryFraction = def.MemoryFraction
	}
	if config.MinRows <= 0 {
		config.MinRows = def.MinRows
	}
	if config.MaxRows < config.MinRows {
		config.MaxRows = def.MaxRows
		if config.MaxRows < config.MinRows {
			config.MaxRows = config.MinRows
		}
	}
	if config.DefaultRows <= 0 {
		config.DefaultRows = def.DefaultRows
	}
	config.DefaultRows = clampRows(config.DefaultRows, config.MinRows, config.MaxRows)

	return &MemoryAdvisor{
		config:  config,
		current: config.DefaultRows,
		history: make([]float64, 0, throughputWindow),
	}
}

// ChunkRows returns the advised chunk size for rows of roughly
// bytesPerRow bytes. The memory cap shrinks the advice when the host is
// tight on memory; it never raises it above the current advised size.
func (a *MemoryAdvisor) ChunkRows(bytesPerRow int) int {
	a.mu.Lock()
	current := a.current
	a.mu.Unlock()

	if bytesPerRow <= 0 {
		return current
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return current
	}
	budget := float64(vm.Available) * a.config.MemoryFraction
	capRows := clampRows(int(budget/float64(bytesPerRow)), a.config.MinRows, a.config.MaxRows)
	if capRows < current {
		return capRows
	}
	return current
}

// Observe records the throughput of a completed chunk. Once enough
// samples accumulate, the advised size grows 20% when the last chunk beat
// the recent average and shrinks 20% when it fell below it.
func (a *MemoryAdvisor) Observe(rows int, elapsed time.Duration) {
	if rows <= 0 || elapsed <= 0 {
		return
	}
	throughput := float64(rows) / elapsed.Seconds()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history, throughput)
	if len(a.history) > throughputWindow {
		a.history = a.history[1:]
	}
	if len(a.history) < minSamples {
		return
	}

	avg := 0.0
	for _, t := range a.history {
		avg += t
	}
	avg /= float64(len(a.history))

	last := a.history[len(a.history)-1]
	switch {
	case last > avg*1.1:
		a.current = clampRows(int(float64(a.current)*1.2), a.config.MinRows, a.config.MaxRows)
	case last < avg*0.9:
		a.current = clampRows(int(float64(a.current)*0.8), a.config.MinRows, a.config.MaxRows)
	}
}

// Advised returns the current advised chunk size without consulting
// system memory.
func (a *MemoryAdvisor) Advised() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func clampRows(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
