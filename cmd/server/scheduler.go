package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// scheduler runs periodic maintenance jobs in UTC.
type scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger zerolog.Logger
}

func newScheduler(logger *zerolog.Logger) *scheduler {
	return &scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    context.Background(),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *scheduler) add(name, spec string, job func(ctx context.Context)) {
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Info().Str("job", name).Msg("job started")
		job(s.ctx)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Str("spec", spec).Msg("failed to register job")
		return
	}
	s.logger.Info().Str("job", name).Str("spec", spec).Msg("job registered")
}

// start must be called after every add; jobs see ctx.
func (s *scheduler) start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
}

// stop waits for running jobs to finish.
func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
}
