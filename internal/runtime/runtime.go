// Package runtime drives the live side of the system: it consumes the
// source update stream, obeys the enable/disable/soft-restart controls on
// the bot state row, keeps the status row current, and schedules backfill
// reconciliation, retention sweeps and keyword snapshot refreshes.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"tg-monitor-relay-go/internal/matcher"
	"tg-monitor-relay-go/internal/pipeline"
	"tg-monitor-relay-go/internal/repository"
	"tg-monitor-relay-go/internal/source"
)

// Config carries the runtime's schedules and retention settings.
type Config struct {
	BackfillIntervalMinutes int
	CleanupIntervalHours    int
	MatcherRefreshSeconds   int
	StatePollInterval       time.Duration
	EventLogRetentionDays   int
	LedgerRetentionDays     int
}

// Runtime owns the live ingestion loop and the periodic jobs.
type Runtime struct {
	repo       *repository.Repository
	client     source.Client
	pipeline   *pipeline.Pipeline
	reconciler *pipeline.Reconciler
	matcher    *matcher.Matcher
	cfg        Config

	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
}

// New creates a runtime.
func New(repo *repository.Repository, client source.Client, p *pipeline.Pipeline, r *pipeline.Reconciler, m *matcher.Matcher, cfg Config) *Runtime {
	if cfg.StatePollInterval <= 0 {
		cfg.StatePollInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		repo:       repo,
		client:     client,
		pipeline:   p,
		reconciler: r,
		matcher:    m,
		cfg:        cfg,
		cron:       cron.New(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the live loop and the periodic jobs. The first backfill
// cycle runs immediately so downtime is reconciled before live traffic
// resumes mattering.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("runtime is already running")
	}
	if r.ctx.Err() != nil {
		r.ctx, r.cancel = context.WithCancel(context.Background())
		r.cron = cron.New()
	}

	if err := r.matcher.Refresh(); err != nil {
		return err
	}

	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %dm", r.cfg.BackfillIntervalMinutes), func() {
		r.runBackfill()
	}); err != nil {
		return fmt.Errorf("failed to schedule backfill: %w", err)
	}
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %dh", r.cfg.CleanupIntervalHours), func() {
		if _, err := r.RunCleanup(); err != nil {
			logrus.Errorf("Retention sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %ds", r.cfg.MatcherRefreshSeconds), func() {
		if err := r.matcher.Refresh(); err != nil {
			logrus.Errorf("Keyword snapshot refresh failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule matcher refresh: %w", err)
	}
	r.cron.Start()

	r.wg.Add(1)
	go r.run()

	r.isRunning = true
	logrus.Infof("Runtime started: backfill every %dm, cleanup every %dh",
		r.cfg.BackfillIntervalMinutes, r.cfg.CleanupIntervalHours)
	return nil
}

// Stop halts new claims and waits for in-flight work. An in-progress
// forward is not aborted; its lease recovers it if the process dies first.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return nil
	}

	r.cancel()
	cronCtx := r.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		logrus.Warn("Cron stop timeout, continuing shutdown")
	}

	r.isRunning = false
	return nil
}

// Wait blocks until the live loop has exited.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

// IsRunning returns whether the runtime is started.
func (r *Runtime) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRunning
}

// RunCleanup performs one retention sweep and reports the deleted counts.
// Also exposed to the control surface for on-demand cleanup.
func (r *Runtime) RunCleanup() (repository.CleanupResult, error) {
	result, err := r.repo.Cleanup(r.cfg.EventLogRetentionDays, r.cfg.LedgerRetentionDays)
	if err != nil {
		return result, err
	}
	logrus.Infof("Retention sweep removed %d event logs and %d ledger entries",
		result.EventLogs, result.ForwardedMessages)
	return result, nil
}

// TriggerBackfill runs one reconciliation cycle outside the schedule.
func (r *Runtime) TriggerBackfill() {
	r.runBackfill()
}

func (r *Runtime) runBackfill() {
	state, err := r.repo.GetBotState()
	if err != nil {
		logrus.Errorf("Failed to read bot state before backfill: %v", err)
		return
	}
	if !state.Enabled {
		return
	}
	logrus.Info("Starting backfill reconciliation cycle")
	r.reconciler.Run(r.ctx)
}

// run is the live loop. It consumes the update stream, skips messages while
// disabled (backfill catches them after re-enable), reacts to soft restart
// requests, and mirrors connectivity onto the status row.
func (r *Runtime) run() {
	defer r.wg.Done()

	if err := r.repo.AppendEvent(repository.EventLevelInfo, "runtime_started", "Runtime started"); err != nil {
		logrus.Errorf("Failed to append event: %v", err)
	}
	defer func() {
		if err := r.repo.SetConnected(false); err != nil {
			logrus.Errorf("Failed to clear connected flag: %v", err)
		}
		if err := r.repo.AppendEvent(repository.EventLevelInfo, "runtime_stopped", "Runtime stopped"); err != nil {
			logrus.Errorf("Failed to append event: %v", err)
		}
	}()

	// First reconciliation before live consumption settles in.
	r.runBackfill()

	updates, err := r.client.Updates(r.ctx)
	if err != nil {
		logrus.Errorf("Failed to open update stream: %v", err)
		if err := r.repo.SetLastError(err.Error()); err != nil {
			logrus.Errorf("Failed to record error: %v", err)
		}
		return
	}

	ticker := time.NewTicker(r.cfg.StatePollInterval)
	defer ticker.Stop()

	// Enabled is cached from the state poll so each incoming message does
	// not cost a database read. A flip takes effect within one poll tick.
	enabled := true
	if state, err := r.repo.GetBotState(); err != nil {
		logrus.Errorf("Failed to read bot state: %v", err)
	} else {
		enabled = state.Enabled
	}

	var lastRestartSeen *time.Time
	for {
		select {
		case <-r.ctx.Done():
			return

		case msg, ok := <-updates:
			if !ok {
				logrus.Warn("Update stream closed")
				return
			}
			if !enabled {
				continue
			}
			if err := r.pipeline.Process(r.ctx, msg); err != nil {
				logrus.Errorf("Failed to process message %d in chat %d: %v",
					msg.MessageID, msg.ChatID, err)
			}

		case <-ticker.C:
			state, err := r.repo.GetBotState()
			if err != nil {
				logrus.Errorf("Failed to read bot state: %v", err)
				continue
			}
			enabled = state.Enabled

			if restartRequested(state.RestartRequestedAt, lastRestartSeen) {
				lastRestartSeen = state.RestartRequestedAt
				logrus.Info("Soft restart requested, running reconciliation")
				if err := r.repo.AppendEvent(repository.EventLevelInfo, "restart", "Soft restart requested"); err != nil {
					logrus.Errorf("Failed to append event: %v", err)
				}
				r.runBackfill()
			}

			connected := state.Enabled && r.client.Connected()
			if err := r.repo.SetConnected(connected); err != nil {
				logrus.Errorf("Failed to update connected flag: %v", err)
			}
		}
	}
}

func restartRequested(current, lastSeen *time.Time) bool {
	if current == nil {
		return false
	}
	return lastSeen == nil || !current.Equal(*lastSeen)
}
