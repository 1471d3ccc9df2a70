package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/time/rate"
)

// progressPrinter reports render progress at most once per interval.  On a
// terminal it redraws a single status line; otherwise it logs.
type progressPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	terminal bool
	limiter  *rate.Limiter
	start    time.Time
	printed  bool
}

func newProgressPrinter(out io.Writer, terminal bool, interval time.Duration) *progressPrinter {
	return &progressPrinter{
		out:      out,
		terminal: terminal,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		start:    time.Now(),
	}
}

func (p *progressPrinter) Progress(cur, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur != total && !p.limiter.Allow() {
		return
	}

	pct := 100
	if total > 0 {
		pct = 100 * cur / total
	}

	if p.terminal {
		fmt.Fprintf(p.out, "\r%d/%d %d%%", cur, total, pct)
		p.printed = true
		return
	}
	glog.Infof("Progress: %d/%d samples (%d%%) after %v", cur, total, pct, time.Since(p.start).Round(time.Second))
}

// Done ends the status line.
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminal && p.printed {
		fmt.Fprintf(p.out, "\n")
	}
}
