package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/semmidev/sqlkeep/internal/infrastructure/logger"
)

type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger
	ctx    context.Context
}

// New builds a scheduler with second resolution. Runs of the same job never
// overlap: a tick that arrives while the previous run is active is skipped.
func New(ctx context.Context, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: log,
		ctx:    ctx,
	}
}

func (s *Scheduler) AddJob(name, spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		log := s.logger.Job(name, uuid.NewString())
		start := time.Now()

		log.Infof("Scheduled %s started", name)
		if err := job(s.ctx); err != nil {
			log.Errorf("Scheduled %s failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
			return
		}
		log.Infof("Scheduled %s finished in %s", name, time.Since(start).Round(time.Millisecond))
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
