package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/logger"
)

const healthPingTimeout = 5 * time.Second

type healthResult struct {
	at  time.Time
	err error
}

// healthChecker pings a source every interval until shutdown.
type healthChecker struct {
	src      core.Source
	log      logger.Logger
	interval time.Duration

	cancel context.CancelFunc
	done   sync.WaitGroup
	last   atomic.Pointer[healthResult]
}

func newHealthChecker(src core.Source, log logger.Logger, interval time.Duration) *healthChecker {
	return &healthChecker{src: src, log: log, interval: interval}
}

func (h *healthChecker) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done.Add(1)
	go func() {
		defer h.done.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.check(ctx)
			}
		}
	}()
}

func (h *healthChecker) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	err := h.src.Ping(ctx)
	h.last.Store(&healthResult{at: time.Now(), err: err})
	if err != nil {
		h.log.Warn("health check failed", "error", err, "interval", h.interval)
		return
	}
	h.log.Debug("health check passed", "interval", h.interval)
}

// shutdown stops the loop and waits for a running ping. It may be called
// more than once.
func (h *healthChecker) shutdown() {
	if h.cancel != nil {
		h.cancel()
	}
	h.done.Wait()
}

func (h *healthChecker) isHealthy() bool {
	return h.lastError() == nil
}

func (h *healthChecker) lastError() error {
	if r := h.last.Load(); r != nil {
		return r.err
	}
	return nil
}

func (h *healthChecker) lastCheck() time.Time {
	if r := h.last.Load(); r != nil {
		return r.at
	}
	return time.Time{}
}
