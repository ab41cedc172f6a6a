package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/calcutta-sim/internal/models"
	"github.com/stitts-dev/calcutta-sim/internal/optimizer"
	"github.com/stitts-dev/calcutta-sim/pkg/logger"
)

var (
	// ErrAllocationTimeout wraps context errors raised while an allocator ran
	ErrAllocationTimeout = errors.New("allocation timed out")

	// ErrPersistenceDisabled is returned by run lookups when no database is configured
	ErrPersistenceDisabled = errors.New("allocation run persistence is not configured")

	// ErrInvalidRunID marks a run ID that is not a UUID
	ErrInvalidRunID = errors.New("invalid allocation run id")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// AllocationRequest is the body accepted by the allocate endpoints
type AllocationRequest struct {
	Strategy    string                     `json:"strategy"`
	Constraints optimizer.ConstraintsInput `json:"constraints"`
	Candidates  []optimizer.Candidate      `json:"candidates"`
}

// AllocationResult is one allocator run as returned to callers
type AllocationResult struct {
	RunID       string                     `json:"run_id,omitempty"`
	Portfolio   *optimizer.Portfolio       `json:"portfolio"`
	Summary     optimizer.PortfolioSummary `json:"summary"`
	Constraints optimizer.Constraints      `json:"constraints"`
	DurationMs  int64                      `json:"duration_ms"`
	Cached      bool                       `json:"cached"`
}

// ValidationResult reports what an allocation request would run with
type ValidationResult struct {
	Strategy          optimizer.Strategy    `json:"strategy"`
	Constraints       optimizer.Constraints `json:"constraints"`
	Candidates        int                   `json:"candidates"`
	EffectiveMaxTeams int                   `json:"effective_max_teams"`
	Feasible          bool                  `json:"feasible"`
}

// ComparisonResult holds the greedy and DP portfolios for the same input.
// Greedy can fail where the DP succeeds; GreedyError then explains why.
type ComparisonResult struct {
	DP          *optimizer.Portfolio           `json:"dp"`
	Greedy      *optimizer.Portfolio           `json:"greedy,omitempty"`
	GreedyError string                         `json:"greedy_error,omitempty"`
	Comparison  *optimizer.AllocatorComparison `json:"comparison,omitempty"`
}

// AllocationServiceConfig tunes an AllocationService
type AllocationServiceConfig struct {
	DefaultStrategy string
	GreedyStep      int
	GreedyMaxWork   int64
	DPMaxStates     int64
	Timeout         time.Duration
	CacheTTL        time.Duration
}

// AllocationService validates requests, runs allocators under a deadline
// and records the outcome in the cache, the database and metrics. Every
// dependency except the allocators is optional.
type AllocationService struct {
	repo            *RunRepository
	cache           *CacheService
	metrics         *Metrics
	opts            optimizer.AllocatorOptions
	defaultStrategy optimizer.Strategy
	timeout         time.Duration
	cacheTTL        time.Duration
	logger          *logrus.Entry
}

func NewAllocationService(repo *RunRepository, cache *CacheService, metrics *Metrics, cfg AllocationServiceConfig) (*AllocationService, error) {
	strategy, err := optimizer.ParseStrategy(cfg.DefaultStrategy)
	if err != nil {
		return nil, fmt.Errorf("invalid default strategy: %w", err)
	}

	opts := optimizer.DefaultAllocatorOptions()
	if cfg.GreedyStep > 0 {
		opts.GreedyStep = cfg.GreedyStep
	}
	if cfg.GreedyMaxWork > 0 {
		opts.MaxGreedyWork = cfg.GreedyMaxWork
	}
	if cfg.DPMaxStates > 0 {
		opts.MaxDPStates = cfg.DPMaxStates
	}

	return &AllocationService{
		repo:            repo,
		cache:           cache,
		metrics:         metrics,
		opts:            opts,
		defaultStrategy: strategy,
		timeout:         cfg.Timeout,
		cacheTTL:        cfg.CacheTTL,
		logger:          logger.WithService("allocation"),
	}, nil
}

// Validate parses and checks a request without running an allocator
func (s *AllocationService) Validate(req AllocationRequest) (*ValidationResult, error) {
	strategy, c, err := s.parse(req)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		Strategy:          strategy,
		Constraints:       c,
		Candidates:        len(req.Candidates),
		EffectiveMaxTeams: c.EffectiveMaxTeams(len(req.Candidates)),
	}
	if len(req.Candidates) == 0 {
		if c.MinTeams > 0 {
			return nil, fmt.Errorf("%w: candidates: no candidates supplied", optimizer.ErrInvalidInput)
		}
		result.Feasible = true
		return result, nil
	}
	if err := optimizer.CheckFeasibility(req.Candidates, c); err != nil {
		return nil, err
	}

	allocator, err := optimizer.NewAllocator(strategy, s.opts)
	if err != nil {
		return nil, err
	}
	if checker, ok := allocator.(optimizer.SizeChecker); ok {
		if err := checker.CheckSize(len(req.Candidates), c); err != nil {
			return nil, err
		}
	}
	result.Feasible = true
	return result, nil
}

// Allocate runs the requested strategy, serving repeated requests from cache
func (s *AllocationService) Allocate(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	strategy, c, err := s.parse(req)
	if err != nil {
		s.metrics.ObserveAllocation("unknown", OutcomeInvalid, 0, 0)
		return nil, err
	}

	hash, err := s.requestHash(strategy, c, req.Candidates)
	if err != nil {
		return nil, err
	}
	cacheKey := AllocationCacheKey(hash)

	if s.cache != nil {
		var cached AllocationResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			cached.Cached = true
			s.metrics.ObserveAllocation(string(strategy), OutcomeCached, 0, 0)
			return &cached, nil
		}
	}

	runID := uuid.New()
	log := logger.WithAllocationContext(runID.String(), string(strategy))

	opts := s.opts
	opts.Logger = log
	allocator, err := optimizer.NewAllocator(strategy, opts)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	portfolio, err := s.run(ctx, allocator, req.Candidates, c)
	duration := time.Since(started)
	if err != nil {
		outcome := classifyError(err)
		s.metrics.ObserveAllocation(string(strategy), outcome, duration, 0)
		log.WithError(err).WithField("outcome", outcome).Warn("Allocation failed")
		return nil, err
	}

	result := &AllocationResult{
		Portfolio:   portfolio,
		Summary:     optimizer.SummarizePortfolio(portfolio, req.Candidates),
		Constraints: c,
		DurationMs:  duration.Milliseconds(),
	}
	s.metrics.ObserveAllocation(string(strategy), OutcomeSuccess, duration, portfolio.TotalValue)

	if s.repo != nil {
		run, err := models.NewAllocationRun(hash, req, c, len(req.Candidates), portfolio, &result.Summary, duration)
		if err == nil {
			run.ID = runID
			err = s.repo.Save(ctx, run)
		}
		if err != nil {
			log.WithError(err).Warn("Failed to persist allocation run")
		} else {
			result.RunID = runID.String()
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			log.WithError(err).Debug("Allocation result cached in process only")
		}
	}

	log.WithFields(logrus.Fields{
		"teams_selected": len(portfolio.Bids),
		"total_value":    portfolio.TotalValue,
		"duration_ms":    result.DurationMs,
	}).Info("Allocation request served")

	return result, nil
}

// Compare runs greedy and the DP on the same input
func (s *AllocationService) Compare(ctx context.Context, req AllocationRequest) (*ComparisonResult, error) {
	_, c, err := s.parse(req)
	if err != nil {
		return nil, err
	}

	dp, err := optimizer.NewAllocator(optimizer.StrategyDP, s.opts)
	if err != nil {
		return nil, err
	}
	greedy, err := optimizer.NewAllocator(optimizer.StrategyGreedy, s.opts)
	if err != nil {
		return nil, err
	}

	dpPortfolio, err := s.run(ctx, dp, req.Candidates, c)
	if err != nil {
		return nil, err
	}
	result := &ComparisonResult{DP: dpPortfolio}

	greedyPortfolio, err := s.run(ctx, greedy, req.Candidates, c)
	switch {
	case err == nil:
		comparison := optimizer.ComparePortfolios(dpPortfolio, greedyPortfolio)
		result.Greedy = greedyPortfolio
		result.Comparison = &comparison
	case optimizer.IsInfeasible(err):
		result.GreedyError = err.Error()
	default:
		return nil, err
	}
	return result, nil
}

// GetRun loads a persisted run by ID
func (s *AllocationService) GetRun(ctx context.Context, id string) (*models.AllocationRun, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return s.repo.Get(ctx, runID)
}

// ListRuns returns the newest persisted runs. limit is clamped to
// [1, MaxListLimit]; zero means DefaultListLimit.
func (s *AllocationService) ListRuns(ctx context.Context, limit int) ([]models.AllocationRun, int64, error) {
	if s.repo == nil {
		return nil, 0, ErrPersistenceDisabled
	}
	switch {
	case limit == 0:
		limit = DefaultListLimit
	case limit < 1:
		limit = 1
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.repo.List(ctx, limit)
}

func (s *AllocationService) parse(req AllocationRequest) (optimizer.Strategy, optimizer.Constraints, error) {
	strategy := s.defaultStrategy
	if req.Strategy != "" {
		parsed, err := optimizer.ParseStrategy(req.Strategy)
		if err != nil {
			return "", optimizer.Constraints{}, err
		}
		strategy = parsed
	}

	c, err := optimizer.ParseConstraints(req.Constraints)
	if err != nil {
		return "", optimizer.Constraints{}, err
	}
	if err := optimizer.ValidateCandidates(req.Candidates); err != nil {
		return "", optimizer.Constraints{}, err
	}
	return strategy, c, nil
}

// run executes the allocator in its own goroutine so the caller can give up
// at the deadline. An abandoned allocator finishes in the background. A
// panic inside the allocator is reported as an invariant violation.
func (s *AllocationService) run(ctx context.Context, allocator optimizer.Allocator, candidates []optimizer.Candidate, c optimizer.Constraints) (*optimizer.Portfolio, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type outcome struct {
		portfolio *optimizer.Portfolio
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithFields(logrus.Fields{
					"strategy": allocator.Strategy(),
					"panic":    r,
				}).Error("Allocator panicked")
				done <- outcome{err: &optimizer.InvariantError{
					Strategy: allocator.Strategy(),
					Reason:   fmt.Sprintf("allocator panicked: %v", r),
				}}
			}
		}()
		portfolio, err := allocator.Allocate(candidates, c)
		done <- outcome{portfolio, err}
	}()

	select {
	case out := <-done:
		return out.portfolio, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s strategy: %w", ErrAllocationTimeout, allocator.Strategy(), ctx.Err())
	}
}

type hashedRequest struct {
	Strategy    optimizer.Strategy    `json:"strategy"`
	Constraints optimizer.Constraints `json:"constraints"`
	Candidates  []optimizer.Candidate `json:"candidates"`
	GreedyStep  int                   `json:"greedy_step"`
	MaxDPStates int64                 `json:"max_dp_states"`
}

// requestHash fingerprints everything that determines the portfolio.
// Candidate order is kept since DP ties depend on it.
func (s *AllocationService) requestHash(strategy optimizer.Strategy, c optimizer.Constraints, candidates []optimizer.Candidate) (string, error) {
	data, err := json.Marshal(hashedRequest{
		Strategy:    strategy,
		Constraints: c,
		Candidates:  candidates,
		GreedyStep:  s.opts.GreedyStep,
		MaxDPStates: s.opts.MaxDPStates,
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func classifyError(err error) string {
	switch {
	case optimizer.IsInvalidInput(err):
		return OutcomeInvalid
	case optimizer.IsInfeasible(err):
		return OutcomeInfeasible
	case errors.Is(err, ErrAllocationTimeout):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
