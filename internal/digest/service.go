package digest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"digestbot/internal/schedule"
	"digestbot/internal/storage"
	"digestbot/pkg/logx"
)

// Service evaluates group schedules once a minute and dispatches due jobs.
type Service struct {
	store   Store
	gen     Generator
	deliver Deliverer
	log     logx.Logger

	mu  sync.RWMutex
	set Settings

	cron    *cron.Cron
	baseCtx context.Context
}

func New(store Store, gen Generator, deliver Deliverer, set Settings, log logx.Logger) *Service {
	if set.DefaultWindow <= 0 {
		set.DefaultWindow = 24 * time.Hour
	}
	return &Service{
		store:   store,
		gen:     gen,
		deliver: deliver,
		log:     log,
		set:     set,
		cron:    cron.New(),
	}
}

// SetDeliverer installs the outbound transport. The bot and this service
// reference each other, so whichever is built second gets injected here
// before Start.
func (s *Service) SetDeliverer(d Deliverer) {
	s.mu.Lock()
	s.deliver = d
	s.mu.Unlock()
}

// Apply swaps the runtime settings. Used by config hot reload; jobs read a
// snapshot at start so an in-flight job is unaffected.
func (s *Service) Apply(set Settings) {
	if set.DefaultWindow <= 0 {
		set.DefaultWindow = 24 * time.Hour
	}
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}

func (s *Service) settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// Start registers the minute trigger. Group schedule evaluation happens inside
// Tick, so the trigger itself is a plain every-minute entry.
func (s *Service) Start(ctx context.Context) error {
	s.baseCtx = ctx
	_, err := s.cron.AddFunc("* * * * *", func() {
		now := time.Now()
		s.Tick(s.baseCtx, now, storage.JobSummary)
		s.Tick(s.baseCtx, now, storage.JobLeaderboard)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("digest scheduler started")
	return nil
}

// Stop halts the trigger and waits for in-flight jobs started by it.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("digest scheduler stopped")
}

// Tick evaluates every enabled group for the job kind and runs the due ones
// concurrently. One slow LLM call must not starve other due groups, so each
// job gets its own goroutine and its own deadline. Job errors are logged and
// swallowed; the tick always waits for all jobs and never fails as a whole.
func (s *Service) Tick(ctx context.Context, now time.Time, kind storage.JobKind) {
	groups, err := s.store.ListEnabledGroups(ctx, kind)
	if err != nil {
		s.log.Error("tick: list groups failed", logx.String("kind", string(kind)), logx.Err(err))
		return
	}

	set := s.settings()
	jobTimeout := s.gen.Timeout() + set.JobBuffer

	var g errgroup.Group
	dispatched := 0
	for _, grp := range groups {
		spec, err := schedule.ParseSchedule(grp.JobSchedule(kind))
		if err != nil {
			// A schedule that was valid when saved may have been corrupted
			// since. Skip the group rather than failing the tick.
			s.log.Warn("tick: unparseable schedule, skipping group",
				logx.Int64("group_id", grp.GroupID),
				logx.String("kind", string(kind)),
				logx.String("schedule", grp.JobSchedule(kind)),
			)
			continue
		}
		if !schedule.IsDue(spec, grp.LastRun(kind), now, set.TZOffsetMinutes) {
			continue
		}

		grp := grp
		dispatched++
		g.Go(func() error {
			runID := uuid.NewString()
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()

			log := s.log.With(
				logx.String("run_id", runID),
				logx.String("kind", string(kind)),
				logx.Int64("group_id", grp.GroupID),
			)
			log.Debug("job started")
			started := time.Now()

			var res Result
			switch kind {
			case storage.JobLeaderboard:
				res = s.RunLeaderboard(jobCtx, grp.GroupID, now)
			default:
				res = s.RunSummary(jobCtx, grp.GroupID)
			}

			elapsed := time.Since(started)
			switch {
			case res.Success:
				log.Info("job finished",
					logx.Int("items", res.Messages),
					logx.Bool("empty", res.Content == ""),
					logx.Duration("took", elapsed),
				)
			case jobCtx.Err() != nil:
				log.Error("job timed out",
					logx.Duration("bound", jobTimeout),
					logx.Duration("took", elapsed),
					logx.Err(res.Err),
				)
			default:
				log.Error("job failed", logx.Duration("took", elapsed), logx.Err(res.Err))
			}
			// Failures stay inside the job; the group is retried on its next
			// due tick because its watermark did not move.
			return nil
		})
	}

	_ = g.Wait()
	if dispatched > 0 {
		s.log.Debug("tick complete",
			logx.String("kind", string(kind)),
			logx.Int("due", dispatched),
			logx.Int("groups", len(groups)),
		)
	}
}
