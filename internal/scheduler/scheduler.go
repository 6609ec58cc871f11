package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/scholarhub/backend/internal/config"
	"github.com/scholarhub/backend/internal/harvester"
)

// Scheduler drives the periodic full and incremental harvest runs.
type Scheduler struct {
	cron      *cron.Cron
	harvester *harvester.Service
	cfg       config.HarvestConfig
	log       zerolog.Logger
}

func New(h *harvester.Service, cfg config.HarvestConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		harvester: h,
		cfg:       cfg,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the configured schedules and launches the cron loop. An
// empty expression disables that schedule. Each tick runs with a generous
// timeout so a stalled source cannot wedge the scheduler; the per-category
// locks in the harvester keep an overrunning tick from interleaving with
// the next one.
func (s *Scheduler) Start() error {
	if s.cfg.FullSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.FullSchedule, s.runFull); err != nil {
			return err
		}
	}
	if s.cfg.IncrementalSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.IncrementalSchedule, s.runIncremental); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info().Str("full", s.cfg.FullSchedule).Str("incremental", s.cfg.IncrementalSchedule).
		Msg("harvest schedules registered")
	return nil
}

func (s *Scheduler) runFull() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if _, err := s.harvester.FullHarvest(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled full harvest failed")
	}
	if _, err := s.harvester.ResearchHarvest(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled research harvest failed")
	}
}

func (s *Scheduler) runIncremental() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	if _, err := s.harvester.IncrementalHarvest(ctx, s.cfg.IncrementalCap); err != nil {
		s.log.Error().Err(err).Msg("scheduled incremental harvest failed")
	}
	if _, err := s.harvester.ResearchIncrementalHarvest(ctx, s.cfg.IncrementalCap); err != nil {
		s.log.Error().Err(err).Msg("scheduled research incremental harvest failed")
	}
}

// Stop halts the cron loop and waits for any running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
