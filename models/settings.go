package models

import "time"

// FeatureFlag toggles a feature of the mobile app.
type FeatureFlag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Key       string    `gorm:"uniqueIndex;not null" json:"key"`
	Name      string    `json:"name"`
	Category  string    `gorm:"index" json:"category"`
	Enabled   bool      `gorm:"not null;default:false" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppText is a localized UI string, keyed per language.
type AppText struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Key       string    `gorm:"not null;uniqueIndex:idx_text_key_lang" json:"key"`
	Language  string    `gorm:"type:varchar(8);not null;default:de;uniqueIndex:idx_text_key_lang" json:"language"`
	Value     string    `gorm:"type:text" json:"value"`
	Category  string    `gorm:"index" json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThemeSetting is a named color scheme. At most one theme is active.
type ThemeSetting struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	Name            string    `gorm:"uniqueIndex;not null" json:"name"`
	PrimaryColor    string    `json:"primary_color"`
	SecondaryColor  string    `json:"secondary_color"`
	AccentColor     string    `json:"accent_color"`
	BackgroundColor string    `json:"background_color"`
	TextColor       string    `json:"text_color"`
	ButtonColor     string    `json:"button_color"`
	SuccessColor    string    `json:"success_color"`
	ErrorColor      string    `json:"error_color"`
	WarningColor    string    `json:"warning_color"`
	IsActive        bool      `gorm:"not null;default:false;index" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NavigationTab is one entry of the app's tab bar.
type NavigationTab struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Key          string    `gorm:"uniqueIndex;not null" json:"key"`
	Title        string    `json:"title"`
	Icon         string    `json:"icon"`
	Enabled      bool      `gorm:"not null;default:true" json:"enabled"`
	DisplayOrder int       `gorm:"not null;default:0" json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AppConfig is a generic configuration entry. Value holds JSON-encoded data.
// Non-public entries are only returned to admins.
type AppConfig struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Key       string    `gorm:"uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Category  string    `gorm:"index" json:"category"`
	IsPublic  bool      `gorm:"not null;default:true" json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
