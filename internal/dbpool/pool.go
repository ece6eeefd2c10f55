// Package dbpool implements the relational connection pool's bounded size
// and per-connection state machine (spec.md §4.3). Unlike database/sql's
// built-in pool, each slot here is an explicit PendingConnect -> Iddle ->
// InUse -> PendingReset/PendingPing -> Iddle state machine with recovery
// edges to PendingClose, run as its own goroutine, so connect/reset/ping
// failures are retried independently per-slot instead of surfacing as an
// opaque database/sql error on the next query.
package dbpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/anarthal/servertech-chat-sub000/internal/apperr"
)

// Config names the pool's size and per-transition timeouts, all with the
// defaults spec.md §4.3 specifies.
type Config struct {
	MaxSize             int
	InitialSize         int
	GetConnTimeout      time.Duration
	ConnectTimeout      time.Duration
	ResetTimeout        time.Duration
	PingTimeout         time.Duration
	HealthCheckInterval time.Duration
	RetryBackoff        time.Duration
}

// DefaultConfig returns spec.md §4.3's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:             150,
		InitialSize:         1,
		GetConnTimeout:      30 * time.Second,
		ConnectTimeout:      20 * time.Second,
		ResetTimeout:        10 * time.Second,
		PingTimeout:         5 * time.Second,
		HealthCheckInterval: time.Hour,
		RetryBackoff:        10 * time.Second,
	}
}

// Pool hands out bounded, reused connections. Construct with New, then call
// Run in its own goroutine before the first Get.
type Pool struct {
	cfg       Config
	connector Connector
	logger    zerolog.Logger

	idle chan *node

	mu          sync.Mutex
	numNodes    int64
	allNodes    []*node
	cancelAll   context.CancelFunc
	runCtx      context.Context
}

func New(cfg Config, connector Connector, logger zerolog.Logger) *Pool {
	p := &Pool{
		cfg:       cfg,
		connector: connector,
		logger:    logger.With().Str("component", "dbpool").Logger(),
		idle:      make(chan *node, cfg.MaxSize),
	}
	return p
}

// Run starts InitialSize nodes and blocks until ctx is cancelled, at which
// point every node's FSM goroutine transitions to shutdown and in-flight
// Get calls fail with apperr.KindCancelled.
func (p *Pool) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.runCtx = runCtx
	p.cancelAll = cancel
	p.mu.Unlock()

	for i := 0; i < p.cfg.InitialSize; i++ {
		p.spawnNode(runCtx)
	}

	<-runCtx.Done()
}

func (p *Pool) spawnNode(ctx context.Context) *node {
	n := newNode(p)
	atomic.AddInt64(&p.numNodes, 1)
	p.mu.Lock()
	p.allNodes = append(p.allNodes, n)
	p.mu.Unlock()
	go n.run(ctx)
	return n
}

// announceIdle registers n as available and returns the Iddle state its FSM
// should report. The channel is sized to MaxSize so this never blocks.
//
// Get's buffered send to n.assign can land while n is mid-transition back to
// Iddle (e.g. a health-check ping that happened to fire the instant a
// caller claimed this node) — the caller already owns n at that point, so
// re-publishing it to the idle queue would let a second Get hand the same
// node out twice. Checking assign first closes that window: if a claim is
// already pending, n goes straight back to InUse instead of onto the queue.
func (p *Pool) announceIdle(n *node) state {
	select {
	case <-n.assign:
		return stateInUse
	default:
	}
	p.idle <- n
	return stateIddle
}

// Get waits for an Iddle node, eagerly spawning a new one if the pool has
// room and none is immediately available, bounded by GetConnTimeout (or
// ctx's own deadline, whichever is sooner).
func (p *Pool) Get(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	runCtx := p.runCtx
	p.mu.Unlock()
	if runCtx == nil {
		return nil, apperr.Of(apperr.KindUnknown, nil)
	}

	gctx, cancel := context.WithTimeout(ctx, p.cfg.GetConnTimeout)
	defer cancel()

	select {
	case n := <-p.idle:
		n.assign <- struct{}{}
		return &Conn{node: n, pool: p}, nil
	default:
	}

	if atomic.LoadInt64(&p.numNodes) < int64(p.cfg.MaxSize) {
		p.spawnNode(runCtx)
	}

	select {
	case n := <-p.idle:
		n.assign <- struct{}{}
		return &Conn{node: n, pool: p}, nil
	case <-gctx.Done():
		if ctx.Err() != nil {
			return nil, apperr.Of(apperr.KindCancelled, ctx.Err())
		}
		return nil, apperr.Of(apperr.KindTimeout, gctx.Err())
	case <-runCtx.Done():
		return nil, apperr.Of(apperr.KindCancelled, runCtx.Err())
	}
}

// release hands a used node back to its FSM for the InUse -> PendingReset
// or InUse -> Iddle transition.
func (p *Pool) release(n *node, shouldReset bool) {
	n.release <- releaseMsg{shouldReset: shouldReset}
}

// Stats reports point-in-time pool occupancy for metrics (spec.md's
// ambient observability stack).
type Stats struct {
	NumNodes int64
	Idle     int
}

func (p *Pool) Stats() Stats {
	return Stats{
		NumNodes: atomic.LoadInt64(&p.numNodes),
		Idle:     len(p.idle),
	}
}
