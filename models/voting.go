package models

import (
	"time"
)

// VotingStatus is the lifecycle state of a voting.
type VotingStatus string

const (
	VotingStatusUpcoming VotingStatus = "upcoming"
	VotingStatusActive   VotingStatus = "active"
	VotingStatusClosed   VotingStatus = "closed"
)

// Voting is a time-boxed poll over a fixed set of project options.
// Status transitions are monotonic: upcoming -> active -> closed.
type Voting struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	StartDate   time.Time      `gorm:"not null" json:"start_date"`
	EndDate     time.Time      `gorm:"not null" json:"end_date"`
	Status      VotingStatus   `gorm:"type:varchar(16);not null;default:upcoming;index" json:"status"`
	CreatedBy   uint           `json:"created_by"`
	Options     []VotingOption `gorm:"foreignKey:VotingID" json:"options,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsEffectivelyActive reports whether votes may be cast right now. The stored
// status alone is not enough: the wall clock must also fall inside the window.
func (v *Voting) IsEffectivelyActive(now time.Time) bool {
	return v.Status == VotingStatusActive &&
		!now.Before(v.StartDate) && !now.After(v.EndDate)
}

// VotingOption is one selectable choice within a voting. The option set is
// fixed at creation time; only VotesCount changes afterwards.
type VotingOption struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	VotingID   uint      `gorm:"not null;index" json:"voting_id"`
	ProjectID  uint      `gorm:"not null" json:"project_id"`
	Project    *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	VotesCount int64     `gorm:"not null;default:0" json:"votes_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserVote is a single user's ballot for a voting. The composite unique index
// is the authoritative one-vote-per-user guard; application-level checks are
// an early exit only.
type UserVote struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_user_voting" json:"user_id"`
	VotingID uint      `gorm:"not null;uniqueIndex:idx_user_voting;index" json:"voting_id"`
	OptionID uint      `gorm:"not null" json:"option_id"`
	VotedAt  time.Time `gorm:"autoCreateTime" json:"voted_at"`
}
