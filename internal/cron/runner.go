// Package cron runs the periodic lot closer.
package cron

import (
	"context"
	"time"

	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/robfig/cron/v3"
)

type Runner struct {
	cron    *cron.Cron
	log     *logger.Logger
	baseCtx context.Context
}

// New builds a runner whose specs carry a seconds field. Overlapping runs of
// the same job are skipped.
func New(baseCtx context.Context, log *logger.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:     log.Component("cron"),
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// CloseJob adapts a lot closer to a cron job.
func CloseJob(closer func(context.Context) (int, error), timeout time.Duration, log *logger.Logger) func(context.Context) {
	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := closer(ctx); err != nil {
			log.Errorw("lot closer run failed", "error", err)
		}
	}
}

func (r *Runner) Start() {
	r.log.Info("cron started")
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("cron stopped")
}
