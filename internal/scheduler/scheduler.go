package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// jobTimeout bounds one scheduled run. Polling both storefronts for every
// alert fits comfortably; a hung upstream connection does not.
const jobTimeout = 10 * time.Minute

// Jobs is the set of recurring tasks the scheduler drives.
type Jobs interface {
	CheckPriceAlerts(ctx context.Context) error
	CheckFreeGames(ctx context.Context) error
	SendDailyDigest(ctx context.Context) error
}

// Scheduler owns the cron runner. Jobs are serialized behind one mutex so
// the storefront APIs only ever see one in-flight batch from this process.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	mu   sync.Mutex
}

// New registers the three recurring jobs: price alerts every priceEvery,
// free games every freeGamesEvery, and the deals digest daily at
// digestHour:digestMinute local time.
func New(jobs Jobs, priceEvery, freeGamesEvery time.Duration, digestHour, digestMinute int) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{}))),
		jobs: jobs,
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", priceEvery), func() {
		s.run("price_alerts", s.jobs.CheckPriceAlerts)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule price alert job: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", freeGamesEvery), func() {
		s.run("free_games", s.jobs.CheckFreeGames)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule free games job: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("%d %d * * *", digestMinute, digestHour), func() {
		s.run("daily_digest", s.jobs.SendDailyDigest)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule digest job: %w", err)
	}
	return s, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) run(name string, job func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	slog.Info("scheduled job starting", "job", name)
	if err := job(ctx); err != nil {
		slog.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	slog.Info("scheduled job finished", "job", name, "duration", time.Since(start).String())
}

// cronLogger adapts the cron library's logger to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error(msg, append(keysAndValues, "error", err)...)
}
