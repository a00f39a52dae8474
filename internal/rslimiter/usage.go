package rslimiter

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerMB = 1024 * 1024

// Usage is a point-in-time view of process and host memory. The System
// fields stay zero when host stats are unavailable.
type Usage struct {
	HeapMB        int64
	RuntimeSysMB  int64
	Goroutines    int
	GCCycles      uint32
	SystemUsedMB  int64
	SystemTotalMB int64
	SystemUsed    float64 // fraction in [0,1]
}

// Sample reads the current Usage.
func Sample() Usage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	u := Usage{
		HeapMB:       int64(ms.Alloc / bytesPerMB),
		RuntimeSysMB: int64(ms.Sys / bytesPerMB),
		Goroutines:   runtime.NumGoroutine(),
		GCCycles:     ms.NumGC,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		u.SystemUsedMB = int64(vm.Used / bytesPerMB)
		u.SystemTotalMB = int64(vm.Total / bytesPerMB)
		u.SystemUsed = vm.UsedPercent / 100
	}
	return u
}

func heapMB() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Alloc / bytesPerMB)
}

func systemUsed() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent / 100, nil
}
