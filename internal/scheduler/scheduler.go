// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance: pruning historical content
// versions and purging old audit events.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job names.
const (
	JobPruneVersions = "prune_versions"
	JobPurgeEvents   = "purge_events"
)

// VersionPruner deletes historical versions beyond a retention count.
type VersionPruner interface {
	PruneAll(ctx context.Context, keep int) (int, error)
}

// EventPurger deletes audit events older than a given age.
type EventPurger interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Config controls what the maintenance jobs do and when.
type Config struct {
	Schedule         string        // cron spec shared by both jobs
	VersionRetention int           // versions kept per item; 0 disables pruning
	EventRetention   time.Duration // 0 disables the purge
	JobTimeout       time.Duration
}

// DefaultConfig returns the daily maintenance defaults.
func DefaultConfig() Config {
	return Config{
		Schedule:         "@daily",
		VersionRetention: 50,
		EventRetention:   90 * 24 * time.Hour,
		JobTimeout:       10 * time.Minute,
	}
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name     string
	Schedule string
	LastRun  time.Time
	NextRun  time.Time
	LastErr  error
}

type job struct {
	name    string
	entryID cron.EntryID
	run     func(context.Context) error
	lastRun time.Time
	lastErr error
}

// Scheduler owns a cron instance with the maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	versions VersionPruner
	events   EventPurger
	logger   *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a scheduler. A nil pruner or purger disables that job.
func New(cfg Config, versions VersionPruner, events EventPurger, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultConfig().Schedule
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig().JobTimeout
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	s := &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		versions: versions,
		events:   events,
		logger:   logger,
		jobs:     make(map[string]*job),
	}

	if versions != nil && cfg.VersionRetention > 0 {
		if err := s.add(JobPruneVersions, s.pruneVersions); err != nil {
			return nil, err
		}
	}
	if events != nil && cfg.EventRetention > 0 {
		if err := s.add(JobPurgeEvents, s.purgeEvents); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name string, run func(context.Context) error) error {
	j := &job{name: name, run: run}
	id, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()
		_ = s.runJob(ctx, j)
	})
	if err != nil {
		return fmt.Errorf("adding job %s: %w", name, err)
	}
	j.entryID = id
	s.jobs[name] = j
	return nil
}

// Start begins running jobs on their schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()), "schedule", s.cfg.Schedule)
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunNow runs every job once, synchronously, and joins their errors.
func (s *Scheduler) RunNow(ctx context.Context) error {
	var errs []error
	for _, name := range s.names() {
		s.mu.Lock()
		j := s.jobs[name]
		s.mu.Unlock()
		if err := s.runJob(ctx, j); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Trigger runs a single job by name.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.runJob(ctx, j)
}

// Jobs lists the registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.entryID)
		out = append(out, JobInfo{
			Name:     j.name,
			Schedule: s.cfg.Schedule,
			LastRun:  j.lastRun,
			NextRun:  entry.Next,
			LastErr:  j.lastErr,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (s *Scheduler) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) runJob(ctx context.Context, j *job) error {
	start := time.Now()
	err := j.run(ctx)

	s.mu.Lock()
	j.lastRun = start
	j.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "job", j.name, "error", err)
		return err
	}
	s.logger.Debug("scheduled job finished", "job", j.name, "took", time.Since(start))
	return nil
}

func (s *Scheduler) pruneVersions(ctx context.Context) error {
	n, err := s.versions.PruneAll(ctx, s.cfg.VersionRetention)
	if n > 0 {
		s.logger.Info("pruned historical versions", "deleted", n, "keep", s.cfg.VersionRetention)
	}
	return err
}

func (s *Scheduler) purgeEvents(ctx context.Context) error {
	n, err := s.events.DeleteOldEvents(ctx, s.cfg.EventRetention)
	if n > 0 {
		s.logger.Info("purged old events", "deleted", n, "older_than", s.cfg.EventRetention)
	}
	return err
}
