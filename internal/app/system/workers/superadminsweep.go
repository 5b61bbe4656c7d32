// internal/app/system/workers/superadminsweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Sweeper demotes super_admin records that no longer match the configured
// super-admin email. identity.Resolver implements it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SuperAdminSweep is a background worker that periodically reconciles the
// single super-admin invariant, so a changed configuration takes effect even
// for users who never sign in again.
type SuperAdminSweep struct {
	sweeper  Sweeper
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSuperAdminSweep creates the worker. It runs once at Start and then
// every interval.
func NewSuperAdminSweep(sweeper Sweeper, logger *zap.Logger, interval time.Duration) *SuperAdminSweep {
	return &SuperAdminSweep{
		sweeper:  sweeper,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *SuperAdminSweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("super admin sweep worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish. It is safe to
// call more than once.
func (w *SuperAdminSweep) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("super admin sweep worker stopped")
	})
}

func (w *SuperAdminSweep) run() {
	defer w.wg.Done()

	w.sweep()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *SuperAdminSweep) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	defer cancel()

	count, err := w.sweeper.Sweep(ctx)
	if err != nil {
		w.log.Error("super admin sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		w.log.Warn("super admin sweep demoted stale records", zap.Int("count", count))
	}
}
