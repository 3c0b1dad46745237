package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"monitory/internal/config"
	"monitory/internal/domain"
	"monitory/internal/pipeline"
)

const dayFormat = "2006-01-02"

// Scheduler fires the retrain job once a day at the configured local hour.
// One instance assumes at most one concurrent run; multi-instance
// deployments need an external advisory lock in front of RunJob.
type Scheduler struct {
	cfg  *config.Config
	pipe *pipeline.Pipeline
	loc  *time.Location
	now  func() time.Time

	// OnResult, when set, observes every job outcome (e.g. to invalidate
	// the serving cache after a promotion).
	OnResult func(domain.RetrainResult)
}

func New(cfg *config.Config, pipe *pipeline.Pipeline, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{cfg: cfg, pipe: pipe, loc: loc, now: time.Now}
}

// Start blocks until ctx is done, running the job at each daily trigger.
// Callers run it in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := s.nextTrigger(s.now().In(s.loc))
		log.Info().Time("next_run", next).Msg("retrain scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		result := s.RunJob(ctx)
		log.Info().Str("status", result.Status).Str("reason", result.Reason).Msg("scheduled retrain finished")
		if s.OnResult != nil {
			s.OnResult(result)
		}
	}
}

func (s *Scheduler) nextTrigger(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.RetrainHour, 0, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunJob performs one attempt: pre-check the estimated row count over the
// lookback range, then run the pipeline. A failed attempt is reported and
// naturally retried at the next trigger, never immediately.
func (s *Scheduler) RunJob(ctx context.Context) domain.RetrainResult {
	today := s.now().In(s.loc)
	startDay := today.AddDate(0, 0, -s.cfg.LookbackDays).Format(dayFormat)
	endDay := today.AddDate(0, 0, -1).Format(dayFormat)

	log.Info().Str("start", startDay).Str("end", endDay).Msg("retrain job start")

	rows, err := s.pipe.EstimateRows(ctx, startDay, endDay)
	if err != nil {
		log.Error().Err(err).Msg("row estimate failed")
		return domain.RetrainResult{Status: domain.StatusError, Reason: "estimate_failed", Msg: err.Error()}
	}
	if rows < s.cfg.MinRows {
		log.Warn().Int("rows", rows).Int("min_rows", s.cfg.MinRows).Msg("not enough data, skipping retrain")
		return domain.RetrainResult{Status: domain.StatusSkip, Reason: "too_few_rows", Rows: rows}
	}

	return s.pipe.Run(ctx, startDay, endDay, 0)
}
