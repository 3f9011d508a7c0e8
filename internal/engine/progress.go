package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/globe2video/internal/system"
)

// Progress receives coarse frame counts during a render.
type Progress interface {
	Start(total int)
	Increment()
	Stop()
}

type logProgress struct {
	log         *zap.SugaredLogger
	done, total int
}

func (p *logProgress) Start(total int) { p.total, p.done = total, 0 }

func (p *logProgress) Increment() {
	p.done++
	p.log.Infof("[>] Ready: %d/%d", p.done, p.total)
}

func (p *logProgress) Stop() {}

// BenchmarkLog is appended to after each render when stats are enabled.
var BenchmarkLog = "benchmark.log"

func (a *Animation) report(start time.Time, frames int, output string) {
	u := system.Measure(start, frames)
	a.log.Infow("--- [PERFORMANCE REPORT] ---",
		"frames", u.Frames,
		"total", u.Elapsed.Round(time.Millisecond),
		"fps", fmt.Sprintf("%.2f", u.FPS),
		"rss_mb", u.RSSBytes>>20,
		"system_mem_used_pct", fmt.Sprintf("%.1f", u.SystemUsedPc),
	)

	entry := fmt.Sprintf("[%s] Output: %s | Frames: %d | Total: %.2fs | FPS: %.2f | RSS: %dMB\n",
		time.Now().Format("2006-01-02 15:04:05"),
		filepath.Base(output),
		u.Frames,
		u.Elapsed.Seconds(),
		u.FPS,
		u.RSSBytes>>20,
	)
	f, err := os.OpenFile(BenchmarkLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		a.log.Warnw("[!] could not write benchmark log", "path", BenchmarkLog, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		a.log.Warnw("[!] could not write benchmark log", "path", BenchmarkLog, "error", err)
	}
}
