package models

import "time"

// Project is a civic project that votings are held over. Votings reference
// projects through their options; projects themselves are managed separately.
type Project struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	GoalAmount  float64   `json:"goal_amount"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
