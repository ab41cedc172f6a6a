package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stitts-dev/calcutta-sim/internal/models"
	"github.com/stitts-dev/calcutta-sim/pkg/database"
)

// ErrRunNotFound is returned when no allocation run has the requested ID
var ErrRunNotFound = errors.New("allocation run not found")

// RunRepository persists allocation runs and their bids
type RunRepository struct {
	db      *database.DB
	breaker *CircuitBreakerService
}

// NewRunRepository creates a repository. breaker may be nil.
func NewRunRepository(db *database.DB, breaker *CircuitBreakerService) *RunRepository {
	return &RunRepository{db: db, breaker: breaker}
}

func (r *RunRepository) guard(fn func() error) error {
	if r.breaker == nil {
		return fn()
	}
	_, err := r.breaker.Execute(BreakerDatabase, func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Save inserts a run together with its bids
func (r *RunRepository) Save(ctx context.Context, run *models.AllocationRun) error {
	err := r.guard(func() error {
		return r.db.WithContext(ctx).Create(run).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save allocation run: %w", err)
	}
	return nil
}

// Get loads one run with its bids
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*models.AllocationRun, error) {
	var run models.AllocationRun
	err := r.db.WithContext(ctx).Preload("Bids").First(&run, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to load allocation run: %w", err)
	}
	return &run, nil
}

// List returns the newest runs first along with the total run count
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.AllocationRun, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.AllocationRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count allocation runs: %w", err)
	}

	var runs []models.AllocationRun
	err := r.db.WithContext(ctx).
		Preload("Bids").
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list allocation runs: %w", err)
	}
	return runs, total, nil
}

// DeleteOlderThan removes runs created before cutoff and returns how many
// were deleted. Bids are removed explicitly since SQLite does not enforce
// the cascade by default.
func (r *RunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.AllocationRun{}).Select("id").Where("created_at < ?", cutoff)
		if err := tx.Where("run_id IN (?)", stale).Delete(&models.AllocationBid{}).Error; err != nil {
			return err
		}
		result := tx.Where("created_at < ?", cutoff).Delete(&models.AllocationRun{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old allocation runs: %w", err)
	}
	return deleted, nil
}
