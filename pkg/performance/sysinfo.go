package performance

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemInfo is a point-in-time snapshot of host and process resources.
type SystemInfo struct {
	GoVersion  string `json:"go_version"`
	OS         string `json:"os"`
	NumCPU     int    `json:"num_cpu"`
	GOMAXPROCS int    `json:"gomaxprocs"`
	Goroutines int    `json:"goroutines"`

	CPUPercent        float64 `json:"cpu_percent"`
	MemoryTotal       uint64  `json:"memory_total"`
	MemoryAvailable   uint64  `json:"memory_available"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`

	HeapAlloc      uint64 `json:"heap_alloc"`
	HeapSys        uint64 `json:"heap_sys"`
	GCCount        uint32 `json:"gc_count"`
	GCPauseTotalNs uint64 `json:"gc_pause_total_ns"`

	ProcessRSS        uint64  `json:"process_rss"`
	ProcessVMS        uint64  `json:"process_vms"`
	ProcessCPUSeconds float64 `json:"process_cpu_seconds"`
	ProcessThreads    int32   `json:"process_threads"`
	OpenFDs           int32   `json:"open_fds"`
}

// Snapshot gathers a SystemInfo. Host memory must be readable; process
// fields the platform does not expose are left zero.
func Snapshot() (*SystemInfo, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	info := &SystemInfo{
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS + "/" + runtime.GOARCH,
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		Goroutines: runtime.NumGoroutine(),

		MemoryTotal:       vm.Total,
		MemoryAvailable:   vm.Available,
		MemoryUsedPercent: vm.UsedPercent,

		HeapAlloc:      ms.HeapAlloc,
		HeapSys:        ms.HeapSys,
		GCCount:        ms.NumGC,
		GCPauseTotalNs: ms.PauseTotalNs,
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUPercent = percents[0]
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info, nil
	}
	if times, err := proc.Times(); err == nil {
		info.ProcessCPUSeconds = times.User + times.System
	}
	if memInfo, err := proc.MemoryInfo(); err == nil {
		info.ProcessRSS = memInfo.RSS
		info.ProcessVMS = memInfo.VMS
	}
	if threads, err := proc.NumThreads(); err == nil {
		info.ProcessThreads = threads
	}
	if fds, err := proc.NumFDs(); err == nil {
		info.OpenFDs = fds
	}

	return info, nil
}
