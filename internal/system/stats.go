package system

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a snapshot of resource use for the performance report.
type Usage struct {
	Elapsed      time.Duration
	Frames       int
	FPS          float64
	RSSBytes     uint64
	SystemUsedPc float64
}

// Measure reports resource use for a run that started at start and
// produced frames frames. Memory figures are zero when unavailable.
func Measure(start time.Time, frames int) Usage {
	u := Usage{Elapsed: time.Since(start), Frames: frames}
	if s := u.Elapsed.Seconds(); s > 0 {
		u.FPS = float64(frames) / s
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			u.RSSBytes = mi.RSS
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		u.SystemUsedPc = vm.UsedPercent
	}
	return u
}
