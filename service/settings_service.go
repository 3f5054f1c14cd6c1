package service

import (
	"context"
	"errors"

	"oneworld-backend/models"

	"gorm.io/gorm"
)

var (
	ErrFlagNotFound   = errors.New("feature flag not found")
	ErrTextNotFound   = errors.New("app text not found")
	ErrThemeNotFound  = errors.New("theme not found")
	ErrTabNotFound    = errors.New("navigation tab not found")
	ErrConfigNotFound = errors.New("config entry not found")
)

// DefaultLanguage is used when a texts request carries no language.
const DefaultLanguage = "de"

// SettingsService is the flat key-value configuration store behind the app:
// feature flags, localized texts, theming, navigation and generic config.
// It never touches the voting engine.
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService creates the settings store around an opened store handle.
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Snapshot is the aggregate settings payload the mobile app loads on start.
type Snapshot struct {
	Features   map[string]bool        `json:"features"`
	Texts      map[string]string      `json:"texts"`
	Theme      *models.ThemeSetting   `json:"theme"`
	Navigation []models.NavigationTab `json:"navigation"`
	Config     map[string]string      `json:"config"`
	Version    string                 `json:"version"`
}

// SnapshotVersion is reported in the aggregate payload so clients can detect
// incompatible settings layouts.
const SnapshotVersion = "1.0.0"

// GetSnapshot assembles the aggregate settings payload. Non-public config
// entries are included only for admins.
func (s *SettingsService) GetSnapshot(ctx context.Context, language string, isAdmin bool) (*Snapshot, error) {
	if language == "" {
		language = DefaultLanguage
	}

	features, err := s.EnabledFeatures(ctx)
	if err != nil {
		return nil, err
	}

	texts, err := s.Texts(ctx, language)
	if err != nil {
		return nil, err
	}

	theme, err := s.ActiveTheme(ctx)
	if err != nil && !errors.Is(err, ErrThemeNotFound) {
		return nil, err
	}

	navigation, err := s.Navigation(ctx)
	if err != nil {
		return nil, err
	}

	config, err := s.Config(ctx, isAdmin)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Features:   features,
		Texts:      texts,
		Theme:      theme,
		Navigation: navigation,
		Config:     config,
		Version:    SnapshotVersion,
	}, nil
}

// EnabledFeatures returns enabled feature flags as a key to bool map.
func (s *SettingsService) EnabledFeatures(ctx context.Context) (map[string]bool, error) {
	var flags []models.FeatureFlag
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&flags).Error; err != nil {
		return nil, err
	}

	features := make(map[string]bool, len(flags))
	for _, f := range flags {
		features[f.Key] = f.Enabled
	}
	return features, nil
}

// AllFeatures returns every flag including disabled ones, for the admin panel.
func (s *SettingsService) AllFeatures(ctx context.Context) ([]models.FeatureFlag, error) {
	var flags []models.FeatureFlag
	if err := s.db.WithContext(ctx).Order("category, name").Find(&flags).Error; err != nil {
		return nil, err
	}
	return flags, nil
}

// UpdateFeatureFlag flips a flag by key.
func (s *SettingsService) UpdateFeatureFlag(ctx context.Context, key string, enabled bool) (*models.FeatureFlag, error) {
	var flag models.FeatureFlag
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&flag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlagNotFound
		}
		return nil, err
	}

	flag.Enabled = enabled
	if err := s.db.WithContext(ctx).Save(&flag).Error; err != nil {
		return nil, err
	}
	return &flag, nil
}

// Texts returns the localized strings for one language as a key to value map.
func (s *SettingsService) Texts(ctx context.Context, language string) (map[string]string, error) {
	if language == "" {
		language = DefaultLanguage
	}

	var rows []models.AppText
	err := s.db.WithContext(ctx).
		Where("language = ?", language).
		Order("category, `key`").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	texts := make(map[string]string, len(rows))
	for _, t := range rows {
		texts[t.Key] = t.Value
	}
	return texts, nil
}

// UpdateText updates one localized string.
func (s *SettingsService) UpdateText(ctx context.Context, key, language, value string) (*models.AppText, error) {
	if language == "" {
		language = DefaultLanguage
	}

	var text models.AppText
	err := s.db.WithContext(ctx).
		Where("`key` = ? AND language = ?", key, language).
		First(&text).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTextNotFound
		}
		return nil, err
	}

	text.Value = value
	if err := s.db.WithContext(ctx).Save(&text).Error; err != nil {
		return nil, err
	}
	return &text, nil
}

// BulkUpdateTexts updates several strings of one language at once and returns
// how many keys were known and updated. Unknown keys are skipped.
func (s *SettingsService) BulkUpdateTexts(ctx context.Context, language string, texts map[string]string) (int, error) {
	if language == "" {
		language = DefaultLanguage
	}

	updated := 0
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}

	for key, value := range texts {
		res := tx.Model(&models.AppText{}).
			Where("`key` = ? AND language = ?", key, language).
			Update("value", value)
		if res.Error != nil {
			tx.Rollback()
			return 0, res.Error
		}
		updated += int(res.RowsAffected)
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return updated, nil
}

// ActiveTheme returns the currently active color scheme.
func (s *SettingsService) ActiveTheme(ctx context.Context) (*models.ThemeSetting, error) {
	var theme models.ThemeSetting
	err := s.db.WithContext(ctx).Where("is_active = ?", true).First(&theme).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThemeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &theme, nil
}

// AllThemes lists every theme for the admin panel.
func (s *SettingsService) AllThemes(ctx context.Context) ([]models.ThemeSetting, error) {
	var themes []models.ThemeSetting
	if err := s.db.WithContext(ctx).Order("name").Find(&themes).Error; err != nil {
		return nil, err
	}
	return themes, nil
}

// ThemeColors carries a partial color update; empty fields are untouched.
type ThemeColors struct {
	PrimaryColor    string `json:"primary_color"`
	SecondaryColor  string `json:"secondary_color"`
	AccentColor     string `json:"accent_color"`
	BackgroundColor string `json:"background_color"`
	TextColor       string `json:"text_color"`
	ButtonColor     string `json:"button_color"`
	SuccessColor    string `json:"success_color"`
	ErrorColor      string `json:"error_color"`
	WarningColor    string `json:"warning_color"`
}

// UpdateTheme applies a partial color update to one theme.
func (s *SettingsService) UpdateTheme(ctx context.Context, id uint, colors ThemeColors) (*models.ThemeSetting, error) {
	var theme models.ThemeSetting
	if err := s.db.WithContext(ctx).First(&theme, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThemeNotFound
		}
		return nil, err
	}

	apply := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	apply(&theme.PrimaryColor, colors.PrimaryColor)
	apply(&theme.SecondaryColor, colors.SecondaryColor)
	apply(&theme.AccentColor, colors.AccentColor)
	apply(&theme.BackgroundColor, colors.BackgroundColor)
	apply(&theme.TextColor, colors.TextColor)
	apply(&theme.ButtonColor, colors.ButtonColor)
	apply(&theme.SuccessColor, colors.SuccessColor)
	apply(&theme.ErrorColor, colors.ErrorColor)
	apply(&theme.WarningColor, colors.WarningColor)

	if err := s.db.WithContext(ctx).Save(&theme).Error; err != nil {
		return nil, err
	}
	return &theme, nil
}

// ActivateTheme makes one theme the active one. Deactivating the others and
// activating the chosen theme happen in a single transaction so there is
// never more than one active theme.
func (s *SettingsService) ActivateTheme(ctx context.Context, id uint) (*models.ThemeSetting, error) {
	var theme models.ThemeSetting
	if err := s.db.WithContext(ctx).First(&theme, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThemeNotFound
		}
		return nil, err
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	err := tx.Model(&models.ThemeSetting{}).
		Where("is_active = ?", true).
		Update("is_active", false).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Model(&theme).Update("is_active", true).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	theme.IsActive = true
	return &theme, nil
}

// Navigation returns the enabled tabs in display order.
func (s *SettingsService) Navigation(ctx context.Context) ([]models.NavigationTab, error) {
	var tabs []models.NavigationTab
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("display_order").
		Find(&tabs).Error
	if err != nil {
		return nil, err
	}
	return tabs, nil
}

// NavigationUpdate carries a partial tab update; nil fields are untouched.
type NavigationUpdate struct {
	Title        *string `json:"title"`
	Icon         *string `json:"icon"`
	Enabled      *bool   `json:"enabled"`
	DisplayOrder *int    `json:"display_order"`
}

// UpdateNavigationTab applies a partial update to one tab.
func (s *SettingsService) UpdateNavigationTab(ctx context.Context, id uint, update NavigationUpdate) (*models.NavigationTab, error) {
	var tab models.NavigationTab
	if err := s.db.WithContext(ctx).First(&tab, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTabNotFound
		}
		return nil, err
	}

	if update.Title != nil {
		tab.Title = *update.Title
	}
	if update.Icon != nil {
		tab.Icon = *update.Icon
	}
	if update.Enabled != nil {
		tab.Enabled = *update.Enabled
	}
	if update.DisplayOrder != nil {
		tab.DisplayOrder = *update.DisplayOrder
	}

	if err := s.db.WithContext(ctx).Save(&tab).Error; err != nil {
		return nil, err
	}
	return &tab, nil
}

// Config returns configuration entries as a key to value map. Non-public
// entries are included only when isAdmin is set.
func (s *SettingsService) Config(ctx context.Context, isAdmin bool) (map[string]string, error) {
	query := s.db.WithContext(ctx).Model(&models.AppConfig{}).Order("category, `key`")
	if !isAdmin {
		query = query.Where("is_public = ?", true)
	}

	var rows []models.AppConfig
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	config := make(map[string]string, len(rows))
	for _, c := range rows {
		config[c.Key] = c.Value
	}
	return config, nil
}

// UpdateConfig replaces the JSON value of one config entry.
func (s *SettingsService) UpdateConfig(ctx context.Context, key, value string) (*models.AppConfig, error) {
	var cfg models.AppConfig
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cfg.Value = value
	if err := s.db.WithContext(ctx).Save(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}
