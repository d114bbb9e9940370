package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
)

// Reaper periodically removes expired refresh-token ledger entries. Expired
// entries are already useless because the token itself no longer verifies;
// the sweep only bounds ledger growth.
type Reaper struct {
	ledger   refreshtokens.Repository
	interval time.Duration
	log      logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewReaper(ledger refreshtokens.Repository, interval time.Duration, log logging.Logger, m *metrics.Metrics) *Reaper {
	return &Reaper{
		ledger:   ledger,
		interval: interval,
		log:      log.With("module", "reaper"),
		metrics:  m,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// disables the sweep and Run returns at once.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info(ctx, "ledger sweep disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Failures are logged and left for the next pass.
func (r *Reaper) Sweep(ctx context.Context) {
	n, err := r.ledger.DeleteExpired(ctx, r.now())
	if err != nil {
		r.log.Error(ctx, "ledger sweep failed", "error", err)
		return
	}
	r.metrics.AddSwept(n)
	if n > 0 {
		r.log.Info(ctx, "expired refresh tokens removed", "count", n)
	}
}
