package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/farant/smaragda/internal/config"
	"github.com/farant/smaragda/pkg/logger"
)

// Runner drives Service.Tick on a fixed interval until Stop is called.
// This is the kernel's own heartbeat: there is no external scheduler to
// hand tick() to, since the HTTP transport is out of scope.
type Runner struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewRunner constructs a Runner over svc, ticking every cfg.Cron.Interval.
func NewRunner(svc *Service, cfg *config.Config, log *slog.Logger) *Runner {
	return &Runner{
		svc:      svc,
		interval: cfg.Cron.Interval,
		log:      log.With(logger.Scope("cron.runner")),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins ticking in a background goroutine.
func (r *Runner) Start() {
	go r.loop()
}

// Stop signals the loop to exit and waits for it, or for ctx to expire.
func (r *Runner) Stop(ctx context.Context) error {
	close(r.stop)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.svc.Tick(context.Background(), time.Now()); err != nil {
				r.log.Error("cron tick failed", logger.Error(err))
			}
		case <-r.stop:
			return
		}
	}
}
