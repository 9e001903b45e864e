package workers

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"nefrit/internal/engine/lifecycle"
)

// Scheduler drives the periodic reconciliation: each tick sweeps expired
// accounts and then restarts the engine unconditionally, whether or not
// the sweep changed anything. The unconditional restart trades a short
// engine downtime window for never serving a stale client list; a
// diff-based restart would change that observable behavior and is
// deliberately not done.
type Scheduler struct {
	cron      *cron.Cron
	svc       *lifecycle.Service
	restarter lifecycle.Restarter
	interval  time.Duration
}

func NewScheduler(svc *lifecycle.Service, restarter lifecycle.Restarter, interval time.Duration) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		svc:       svc,
		restarter: restarter,
		interval:  interval,
	}
}

func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.Tick); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("interval", s.interval.String()).Msg("scheduler started")
	return nil
}

// Tick runs one reconciliation pass. Exported so operators-facing tooling
// and tests can drive it directly.
func (s *Scheduler) Tick() {
	if _, err := s.svc.Sweep(); err != nil {
		log.Error().Err(err).Msg("scheduled expiry sweep failed")
	}
	if err := s.restarter.Restart(); err != nil {
		log.Error().Err(err).Msg("scheduled engine restart failed")
	}
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}
