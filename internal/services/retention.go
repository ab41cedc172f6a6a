package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RetentionService periodically deletes allocation runs older than the
// retention window
type RetentionService struct {
	repo      *RunRepository
	metrics   *Metrics
	logger    *logrus.Entry
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	mu        sync.Mutex
	isRunning bool
	now       func() time.Time
}

// NewRetentionService creates a retention job. schedule is a standard
// five-field cron expression.
func NewRetentionService(repo *RunRepository, metrics *Metrics, logger *logrus.Logger, schedule string, retentionDays int) *RetentionService {
	return &RetentionService{
		repo:      repo,
		metrics:   metrics,
		logger:    logger.WithField("component", "retention"),
		cron:      cron.New(),
		schedule:  schedule,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Start schedules the purge job
func (s *RetentionService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("retention service is already running")
	}
	if s.retention <= 0 {
		s.logger.Info("Run retention disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Purge(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled run purge failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule run retention %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.isRunning = true

	s.logger.WithFields(logrus.Fields{
		"schedule":  s.schedule,
		"retention": s.retention.String(),
	}).Info("Retention service started")
	return nil
}

// Stop halts the schedule and waits for a running purge to finish
func (s *RetentionService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.logger.Info("Retention service stopped")
}

// Purge deletes runs older than the retention window once
func (s *RetentionService) Purge(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.metrics.runsPurged(deleted)
	s.logger.WithFields(logrus.Fields{
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": deleted,
	}).Info("Purged old allocation runs")
	return deleted, nil
}

// IsRunning reports whether the schedule is active
func (s *RetentionService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
