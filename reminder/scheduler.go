package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/go-co-op/gocron"
)

const jobTag = "return-reminder"

// Sweeper runs one sweep for the current instant.
type Sweeper interface {
	SweepNow(ctx context.Context) (Report, error)
}

// Scheduler fires the sweep once a day at a fixed wall-clock time. Missed
// fires are not caught up and a sweep still running blocks the next fire.
type Scheduler struct {
	cron    *gocron.Scheduler
	job     *gocron.Job
	sweeper Sweeper
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler registers the daily job at "HH:MM" in loc. Nothing runs until Start.
func NewScheduler(sweeper Sweeper, at string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    gocron.NewScheduler(loc),
		sweeper: sweeper,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cron.SingletonModeAll()

	job, err := s.cron.Every(1).Day().At(at).Tag(jobTag).Do(s.run)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("schedule reminder job at %q: %w", at, err)
	}
	s.job = job
	return s, nil
}

func (s *Scheduler) run() {
	report, err := s.sweeper.SweepNow(s.ctx)
	if err != nil {
		util.Logger().Error().Err(err).Str("run_id", report.RunID).Msg("scheduled reminder sweep aborted")
	}
}

// Start begins firing the job in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	util.Logger().Info().Time("next_run", s.NextRun()).Msg("reminder scheduler started")
}

// Stop cancels a sweep in progress between two sends and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}

// NextRun reports when the sweep fires next. It is zero before Start.
func (s *Scheduler) NextRun() time.Time {
	return s.job.NextRun()
}
