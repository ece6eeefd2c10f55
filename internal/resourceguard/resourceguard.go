// Package resourceguard implements admission control for the accept loop
// (C12): a static, predictable set of checks rather than an auto-tuning
// capacity manager, following the teacher's ResourceGuard — connection
// count, resident memory, goroutines, each a hard limit with no historical
// trending. CPU usage is not checked.
package resourceguard

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Config names the static limits the guard enforces.
type Config struct {
	MaxConnections    int
	MemoryLimitBytes  int64
	MaxGoroutines     int
}

// DefaultConfig is a reasonable starting point for a single-node deployment.
func DefaultConfig() Config {
	return Config{
		MaxConnections:   10000,
		MemoryLimitBytes: 2 << 30, // 2 GiB
		MaxGoroutines:    50000,
	}
}

// Guard decides whether to accept a new websocket connection.
type Guard struct {
	cfg          Config
	logger       zerolog.Logger
	currentConns int64
	proc         *process.Process
}

// New constructs a Guard. It looks up the current process once, for
// resident-memory sampling on each ShouldAccept call.
func New(cfg Config, logger zerolog.Logger) (*Guard, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("resourceguard: %w", err)
	}
	return &Guard{cfg: cfg, logger: logger.With().Str("component", "resourceguard").Logger(), proc: proc}, nil
}

// IncConnections records a newly accepted connection.
func (g *Guard) IncConnections() { atomic.AddInt64(&g.currentConns, 1) }

// DecConnections records a closed connection.
func (g *Guard) DecConnections() { atomic.AddInt64(&g.currentConns, -1) }

// ShouldAccept runs the admission checks in order: connection count, memory,
// goroutines. The first failing check names its reason.
func (g *Guard) ShouldAccept() (accept bool, reason string) {
	conns := atomic.LoadInt64(&g.currentConns)
	if conns >= int64(g.cfg.MaxConnections) {
		g.logger.Warn().Int64("current_conns", conns).Msg("connection rejected: at max connections")
		return false, fmt.Sprintf("at max connections (%d)", g.cfg.MaxConnections)
	}

	if memInfo, err := g.proc.MemoryInfo(); err == nil && int64(memInfo.RSS) > g.cfg.MemoryLimitBytes {
		g.logger.Warn().Int64("rss_bytes", int64(memInfo.RSS)).Msg("connection rejected: memory limit exceeded")
		return false, "memory limit exceeded"
	} else if err != nil {
		// Sampling failure doesn't block service; gopsutil's process-stats
		// path is best-effort on some platforms (e.g. restricted containers).
		g.logger.Debug().Err(err).Msg("resourceguard: memory sample unavailable")
	}

	if goroutines := runtime.NumGoroutine(); goroutines > g.cfg.MaxGoroutines {
		g.logger.Warn().Int("goroutines", goroutines).Msg("connection rejected: goroutine limit exceeded")
		return false, fmt.Sprintf("goroutine limit exceeded (%d > %d)", goroutines, g.cfg.MaxGoroutines)
	}

	return true, "OK"
}

// SystemMemoryAvailable reports host-wide available memory. It is not one of
// ShouldAccept's admission checks, and no route of the server calls it.
func SystemMemoryAvailable() (uint64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return v.Available, nil
}
