package janitor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/NordCoder/Stocker/internal/config/janitor"
)

var (
	mDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "janitor_rows_deleted_total", Help: "Rows removed by cleanup sweeps",
	}, []string{"target"})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "janitor_errors_total", Help: "Failed cleanup sweeps",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "janitor_sweep_duration_seconds", Help: "Janitor sweep duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg *config.JanitorCfg
}

func New(log *zap.Logger, uc *Usecase, cfg *config.JanitorCfg) *Runner {
	return &Runner{Log: log, UC: uc, Cfg: cfg}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	res, err := r.UC.Sweep(ctx)
	if err != nil {
		mErr.Inc()
		r.Log.Warn("sweep error", zap.Error(err))
	}
	for name, n := range res {
		mDeleted.WithLabelValues(name).Add(float64(n))
	}
	r.Log.Info("sweep done", zap.Any("deleted", res), zap.Duration("took", time.Since(start)))
	mLoopDur.Observe(time.Since(start).Seconds())
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
