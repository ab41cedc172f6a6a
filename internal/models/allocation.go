package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stitts-dev/calcutta-sim/internal/optimizer"
)

// AllocationRun is one persisted allocator invocation
type AllocationRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RequestHash    string         `gorm:"size:64;not null;index" json:"request_hash"`
	Strategy       string         `gorm:"size:16;not null" json:"strategy"`
	Budget         int            `gorm:"not null" json:"budget"`
	MinBid         int            `gorm:"not null" json:"min_bid"`
	MaxPerTeam     int            `gorm:"not null" json:"max_per_team"`
	MinTeams       int            `gorm:"not null" json:"min_teams"`
	MaxTeams       int            `gorm:"not null" json:"max_teams"`
	CandidateCount int            `gorm:"not null" json:"candidate_count"`
	TeamsSelected  int            `gorm:"not null" json:"teams_selected"`
	TotalBid       int            `gorm:"not null" json:"total_bid"`
	TotalValue     float64        `gorm:"not null" json:"total_value"`
	DurationMs     int64          `json:"duration_ms"`
	Request        datatypes.JSON `json:"request"` // constraints + candidates as submitted
	Summary        datatypes.JSON `json:"summary,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`

	Bids []AllocationBid `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"bids"`
}

// TableName specifies the table name for GORM
func (AllocationRun) TableName() string {
	return "allocation_runs"
}

// BeforeCreate assigns a run ID when the caller did not
func (r *AllocationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// AllocationBid is one selected team within a run
type AllocationBid struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	RunID     uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Rank      int       `gorm:"not null" json:"rank"`
	TeamKey   string    `gorm:"size:128;not null" json:"team_key"`
	BidAmount int       `gorm:"not null" json:"bid_amount"`
	Score     float64   `json:"score"`
}

func (AllocationBid) TableName() string {
	return "allocation_bids"
}

// NewAllocationRun builds a run record from a finished portfolio. request is
// stored verbatim so the run can be replayed.
func NewAllocationRun(requestHash string, request interface{}, c optimizer.Constraints, candidateCount int,
	portfolio *optimizer.Portfolio, summary *optimizer.PortfolioSummary, duration time.Duration) (*AllocationRun, error) {
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request snapshot: %w", err)
	}

	run := &AllocationRun{
		RequestHash:    requestHash,
		Strategy:       string(portfolio.Strategy),
		Budget:         c.Budget,
		MinBid:         c.MinBid,
		MaxPerTeam:     c.MaxPerTeam,
		MinTeams:       c.MinTeams,
		MaxTeams:       c.MaxTeams,
		CandidateCount: candidateCount,
		TeamsSelected:  len(portfolio.Bids),
		TotalBid:       portfolio.TotalBid,
		TotalValue:     portfolio.TotalValue,
		DurationMs:     duration.Milliseconds(),
		Request:        datatypes.JSON(requestJSON),
	}

	if summary != nil {
		summaryJSON, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summary: %w", err)
		}
		run.Summary = datatypes.JSON(summaryJSON)
	}

	run.Bids = make([]AllocationBid, len(portfolio.Bids))
	for i, bid := range portfolio.Bids {
		run.Bids[i] = AllocationBid{
			Rank:      i + 1,
			TeamKey:   bid.TeamKey,
			BidAmount: bid.BidAmount,
			Score:     bid.Score,
		}
	}
	return run, nil
}

// Constraints returns the integer constraints the run was solved under
func (r *AllocationRun) Constraints() optimizer.Constraints {
	return optimizer.Constraints{
		Budget:     r.Budget,
		MinBid:     r.MinBid,
		MaxPerTeam: r.MaxPerTeam,
		MinTeams:   r.MinTeams,
		MaxTeams:   r.MaxTeams,
	}
}

// ToPortfolio rebuilds the portfolio from the stored bids, in rank order
func (r *AllocationRun) ToPortfolio() *optimizer.Portfolio {
	portfolio := &optimizer.Portfolio{
		Strategy:   optimizer.Strategy(r.Strategy),
		Bids:       make([]optimizer.Bid, 0, len(r.Bids)),
		TotalBid:   r.TotalBid,
		TotalValue: r.TotalValue,
	}
	bids := make([]AllocationBid, len(r.Bids))
	copy(bids, r.Bids)
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Rank < bids[j].Rank })
	for _, bid := range bids {
		portfolio.Bids = append(portfolio.Bids, optimizer.Bid{
			TeamKey:   bid.TeamKey,
			BidAmount: bid.BidAmount,
			Score:     bid.Score,
		})
	}
	return portfolio
}

// AutoMigrate creates or updates the allocation tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AllocationRun{}, &AllocationBid{})
}

// DropTables removes the allocation tables
func DropTables(db *gorm.DB) error {
	return db.Migrator().DropTable(&AllocationBid{}, &AllocationRun{})
}
