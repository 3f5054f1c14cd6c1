package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"oneworld-backend/models"

	"gorm.io/gorm"
)

var (
	ErrVotingNotFound = errors.New("voting not found")
	ErrVotingNotOpen  = errors.New("voting is not active")
	ErrAlreadyVoted   = errors.New("already voted in this voting")
	ErrInvalidOption  = errors.New("invalid voting option")

	// ErrValidation wraps all input validation failures.
	ErrValidation = errors.New("validation failed")
)

const (
	minOptions = 2
	maxOptions = 5
)

// VotingService owns the voting lifecycle, the vote-casting protocol and
// result aggregation. All multi-step writes run inside a store transaction.
type VotingService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewVotingService creates the voting engine around an opened store handle.
func NewVotingService(db *gorm.DB) *VotingService {
	return &VotingService{db: db, now: time.Now}
}

// CreateVotingInput carries the admin request to create a voting.
type CreateVotingInput struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	ProjectIDs  []uint
	CreatedBy   uint
}

// UpdateVotingInput carries a partial voting update; nil fields are untouched.
type UpdateVotingInput struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *models.VotingStatus
}

// OptionResult is an option with its derived percentage.
type OptionResult struct {
	ID         uint            `json:"id"`
	ProjectID  uint            `json:"project_id"`
	Project    *models.Project `json:"project,omitempty"`
	VotesCount int64           `json:"votes_count"`
	Percentage int             `json:"percentage"`
}

// VotingResults is a voting with aggregated, freshly computed results.
// Percentages are derived views; the per-option counter is the only stored
// aggregate.
type VotingResults struct {
	Voting     models.Voting  `json:"voting"`
	Options    []OptionResult `json:"options"`
	TotalVotes int64          `json:"total_votes"`
	Winner     *OptionResult  `json:"winner,omitempty"`
}

// VotingSummary is a voting with participation counters, for the admin list.
type VotingSummary struct {
	models.Voting
	ParticipantCount int64 `json:"participant_count"`
	TotalVotes       int64 `json:"total_votes"`
}

// WinnerInfo identifies the winning option of a closed voting.
type WinnerInfo struct {
	OptionID     uint   `json:"option_id"`
	ProjectID    uint   `json:"project_id"`
	ProjectTitle string `json:"project_title"`
	Votes        int64  `json:"votes"`
}

// HistoryEntry is a closed voting with its winner.
type HistoryEntry struct {
	models.Voting
	ParticipantCount int64       `json:"participant_count"`
	Winner           *WinnerInfo `json:"winner,omitempty"`
}

// UserVoteInfo is one ballot of a user, joined with voting and project titles.
type UserVoteInfo struct {
	VotingID     uint      `json:"voting_id"`
	VotingTitle  string    `json:"voting_title"`
	VotedProject string    `json:"voted_project"`
	VotedAt      time.Time `json:"voted_at"`
}

// CastReceipt confirms a recorded ballot.
type CastReceipt struct {
	VotingID uint      `json:"voting_id"`
	OptionID uint      `json:"option_id"`
	VotedAt  time.Time `json:"voted_at"`
}

// ActiveVoting returns the most recently created voting whose status is
// active and whose window contains the current time, with percentages
// computed. A (nil, nil) return means no voting is active right now.
func (s *VotingService) ActiveVoting(ctx context.Context) (*VotingResults, error) {
	now := s.now()

	var voting models.Voting
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_date <= ? AND end_date >= ?", models.VotingStatusActive, now, now).
		Order("created_at DESC").
		First(&voting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	options, err := s.optionsInCreationOrder(ctx, voting.ID)
	if err != nil {
		return nil, err
	}

	return aggregate(voting, options, false), nil
}

// Results returns a voting with percentages and the winning option. The
// winner is the highest count; ties break on the lower option id so the
// result is reproducible.
func (s *VotingService) Results(ctx context.Context, votingID uint) (*VotingResults, error) {
	var voting models.Voting
	if err := s.db.WithContext(ctx).First(&voting, votingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVotingNotFound
		}
		return nil, err
	}

	var options []models.VotingOption
	err := s.db.WithContext(ctx).
		Preload("Project").
		Where("voting_id = ?", votingID).
		Order("votes_count DESC, id ASC").
		Find(&options).Error
	if err != nil {
		return nil, err
	}

	return aggregate(voting, options, true), nil
}

// CastVote records a single ballot for a user. Preconditions are checked in
// order (not open, already voted, invalid option) and each failure maps to
// its own error. The ballot insert and the counter increment are one
// transaction; a uniqueness violation on the insert means a concurrent
// request won the race and is reported as ErrAlreadyVoted.
func (s *VotingService) CastVote(ctx context.Context, votingID, optionID, userID uint) (*CastReceipt, error) {
	now := s.now()

	var voting models.Voting
	if err := s.db.WithContext(ctx).First(&voting, votingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVotingNotOpen
		}
		return nil, err
	}
	if !voting.IsEffectivelyActive(now) {
		return nil, ErrVotingNotOpen
	}

	// Early exit only; the unique index on (user_id, voting_id) is the
	// authoritative guard.
	var existing int64
	err := s.db.WithContext(ctx).Model(&models.UserVote{}).
		Where("user_id = ? AND voting_id = ?", userID, votingID).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadyVoted
	}

	var option models.VotingOption
	err = s.db.WithContext(ctx).
		Where("id = ? AND voting_id = ?", optionID, votingID).
		First(&option).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOption
	}
	if err != nil {
		return nil, err
	}

	vote := models.UserVote{
		UserID:   userID,
		VotingID: votingID,
		OptionID: optionID,
		VotedAt:  now,
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if err := tx.Create(&vote).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyVoted
		}
		return nil, err
	}

	// Atomic increment in SQL; read-modify-write in the application would
	// lose concurrent votes.
	err = tx.Model(&models.VotingOption{}).
		Where("id = ?", optionID).
		UpdateColumn("votes_count", gorm.Expr("votes_count + ?", 1)).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &CastReceipt{VotingID: votingID, OptionID: optionID, VotedAt: vote.VotedAt}, nil
}

// CreateVoting validates and creates a voting with its fixed option set in
// one transaction. Status starts as upcoming.
func (s *VotingService) CreateVoting(ctx context.Context, input CreateVotingInput) (*models.Voting, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	if !input.StartDate.Before(input.EndDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}
	if len(input.ProjectIDs) < minOptions {
		return nil, fmt.Errorf("%w: at least %d projects are required", ErrValidation, minOptions)
	}
	if len(input.ProjectIDs) > maxOptions {
		return nil, fmt.Errorf("%w: at most %d projects are allowed", ErrValidation, maxOptions)
	}

	voting := models.Voting{
		Title:       input.Title,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Status:      models.VotingStatusUpcoming,
		CreatedBy:   input.CreatedBy,
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if err := tx.Create(&voting).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	options := make([]models.VotingOption, len(input.ProjectIDs))
	for i, projectID := range input.ProjectIDs {
		options[i] = models.VotingOption{VotingID: voting.ID, ProjectID: projectID}
	}
	if err := tx.Create(&options).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	voting.Options = options
	return &voting, nil
}

// statusRank orders lifecycle states so monotonicity can be enforced.
var statusRank = map[models.VotingStatus]int{
	models.VotingStatusUpcoming: 0,
	models.VotingStatusActive:   1,
	models.VotingStatusClosed:   2,
}

// UpdateVoting applies a partial update. The lifecycle may only move
// forwards; a closed voting stays closed.
func (s *VotingService) UpdateVoting(ctx context.Context, votingID uint, input UpdateVotingInput) (*models.Voting, error) {
	var voting models.Voting
	if err := s.db.WithContext(ctx).First(&voting, votingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVotingNotFound
		}
		return nil, err
	}

	if input.Status != nil {
		newRank, ok := statusRank[*input.Status]
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *input.Status)
		}
		if newRank < statusRank[voting.Status] {
			return nil, fmt.Errorf("%w: status cannot move from %s back to %s",
				ErrValidation, voting.Status, *input.Status)
		}
		voting.Status = *input.Status
	}
	if input.Title != nil {
		voting.Title = *input.Title
	}
	if input.Description != nil {
		voting.Description = *input.Description
	}
	if input.StartDate != nil {
		voting.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		voting.EndDate = *input.EndDate
	}
	if !voting.StartDate.Before(voting.EndDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}

	if err := s.db.WithContext(ctx).Save(&voting).Error; err != nil {
		return nil, err
	}
	return &voting, nil
}

// CloseVoting moves a voting to closed and stamps the end date to now, so a
// closed voting's window always ends at closure time. Closing an already
// closed voting is a no-op and keeps the original closure stamp.
func (s *VotingService) CloseVoting(ctx context.Context, votingID uint) (*models.Voting, error) {
	var voting models.Voting
	if err := s.db.WithContext(ctx).First(&voting, votingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVotingNotFound
		}
		return nil, err
	}

	if voting.Status == models.VotingStatusClosed {
		return &voting, nil
	}

	voting.Status = models.VotingStatusClosed
	voting.EndDate = s.now()
	if err := s.db.WithContext(ctx).Save(&voting).Error; err != nil {
		return nil, err
	}
	return &voting, nil
}

// DeleteVoting removes a voting together with its options and ballots. There
// is no soft delete; this is irreversible.
func (s *VotingService) DeleteVoting(ctx context.Context, votingID uint) error {
	var voting models.Voting
	if err := s.db.WithContext(ctx).First(&voting, votingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVotingNotFound
		}
		return err
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Where("voting_id = ?", votingID).Delete(&models.UserVote{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("voting_id = ?", votingID).Delete(&models.VotingOption{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&voting).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// ListVotings returns all votings, newest first, with participant and total
// vote counts for the admin overview.
func (s *VotingService) ListVotings(ctx context.Context) ([]VotingSummary, error) {
	var votings []models.Voting
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&votings).Error; err != nil {
		return nil, err
	}

	type countRow struct {
		VotingID uint
		Total    int64
	}

	participants := make(map[uint]int64)
	var ballotCounts []countRow
	err := s.db.WithContext(ctx).Model(&models.UserVote{}).
		Select("voting_id, COUNT(DISTINCT user_id) AS total").
		Group("voting_id").
		Scan(&ballotCounts).Error
	if err != nil {
		return nil, err
	}
	for _, row := range ballotCounts {
		participants[row.VotingID] = row.Total
	}

	totals := make(map[uint]int64)
	var voteCounts []countRow
	err = s.db.WithContext(ctx).Model(&models.VotingOption{}).
		Select("voting_id, COALESCE(SUM(votes_count), 0) AS total").
		Group("voting_id").
		Scan(&voteCounts).Error
	if err != nil {
		return nil, err
	}
	for _, row := range voteCounts {
		totals[row.VotingID] = row.Total
	}

	summaries := make([]VotingSummary, len(votings))
	for i, v := range votings {
		summaries[i] = VotingSummary{
			Voting:           v,
			ParticipantCount: participants[v.ID],
			TotalVotes:       totals[v.ID],
		}
	}
	return summaries, nil
}

// History returns the ten most recently closed votings with their winners.
func (s *VotingService) History(ctx context.Context) ([]HistoryEntry, error) {
	var votings []models.Voting
	err := s.db.WithContext(ctx).
		Where("status = ?", models.VotingStatusClosed).
		Order("end_date DESC").
		Limit(10).
		Find(&votings).Error
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, len(votings))
	for i, v := range votings {
		entry := HistoryEntry{Voting: v}

		err := s.db.WithContext(ctx).Model(&models.UserVote{}).
			Where("voting_id = ?", v.ID).
			Distinct("user_id").
			Count(&entry.ParticipantCount).Error
		if err != nil {
			return nil, err
		}

		var top models.VotingOption
		err = s.db.WithContext(ctx).
			Preload("Project").
			Where("voting_id = ?", v.ID).
			Order("votes_count DESC, id ASC").
			First(&top).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			winner := WinnerInfo{
				OptionID:  top.ID,
				ProjectID: top.ProjectID,
				Votes:     top.VotesCount,
			}
			if top.Project != nil {
				winner.ProjectTitle = top.Project.Title
			}
			entry.Winner = &winner
		}

		entries[i] = entry
	}
	return entries, nil
}

// UserVotes returns all ballots of a user, newest first.
func (s *VotingService) UserVotes(ctx context.Context, userID uint) ([]UserVoteInfo, error) {
	var votes []UserVoteInfo
	err := s.db.WithContext(ctx).
		Table("user_votes").
		Select("votings.id AS voting_id, votings.title AS voting_title, projects.title AS voted_project, user_votes.voted_at").
		Joins("JOIN votings ON votings.id = user_votes.voting_id").
		Joins("JOIN voting_options ON voting_options.id = user_votes.option_id").
		Joins("JOIN projects ON projects.id = voting_options.project_id").
		Where("user_votes.user_id = ?", userID).
		Order("user_votes.voted_at DESC").
		Scan(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (s *VotingService) optionsInCreationOrder(ctx context.Context, votingID uint) ([]models.VotingOption, error) {
	var options []models.VotingOption
	err := s.db.WithContext(ctx).
		Preload("Project").
		Where("voting_id = ?", votingID).
		Order("id ASC").
		Find(&options).Error
	if err != nil {
		return nil, err
	}
	return options, nil
}

// aggregate computes total votes and per-option percentages from the raw
// counters. Percentages are rounded half-up independently; they need not sum
// to exactly 100.
func aggregate(voting models.Voting, options []models.VotingOption, withWinner bool) *VotingResults {
	var total int64
	for _, opt := range options {
		total += opt.VotesCount
	}

	results := make([]OptionResult, len(options))
	for i, opt := range options {
		percentage := 0
		if total > 0 {
			percentage = int(math.Round(float64(opt.VotesCount) / float64(total) * 100))
		}
		results[i] = OptionResult{
			ID:         opt.ID,
			ProjectID:  opt.ProjectID,
			Project:    opt.Project,
			VotesCount: opt.VotesCount,
			Percentage: percentage,
		}
	}

	out := &VotingResults{
		Voting:     voting,
		Options:    results,
		TotalVotes: total,
	}
	if withWinner && len(results) > 0 {
		out.Winner = &results[0]
	}
	return out
}
