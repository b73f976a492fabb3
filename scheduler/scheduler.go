package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"pricewatch/config"
	"pricewatch/models"
)

// Runner triggers one reconciliation pass.
type Runner interface {
	RunBatch(ctx context.Context) (*models.BatchResult, error)
}

// Scheduler invokes the reconciler on a cron expression or a fixed
// interval. The HTTP trigger endpoint remains available either way.
type Scheduler struct {
	cfg    *config.SchedulerConfig
	runner Runner
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
}

func New(cfg *config.SchedulerConfig, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.runOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runOnce(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, batch runs only via HTTP trigger")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	s.runOnce(ctx)
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.runner.RunBatch(ctx)
	if err != nil {
		log.Printf("Scheduled run error: %v", err)
		return
	}
	if result.Failed > 0 || len(result.Errors) > 0 {
		log.Printf("Scheduled run finished with %d failures (%d errors recorded)",
			result.Failed, len(result.Errors))
	}
}
