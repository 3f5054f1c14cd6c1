package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"oneworld-backend/cache"
	"oneworld-backend/middleware"
	"oneworld-backend/models"
	"oneworld-backend/service"

	"github.com/gin-gonic/gin"
)

// SettingsHandler maps the settings REST surface onto the settings store.
type SettingsHandler struct {
	settings *service.SettingsService
	cache    *cache.SettingsCache
}

// NewSettingsHandler wires the settings store and its snapshot cache.
func NewSettingsHandler(settings *service.SettingsService, cache *cache.SettingsCache) *SettingsHandler {
	return &SettingsHandler{settings: settings, cache: cache}
}

func (h *SettingsHandler) isAdmin(c *gin.Context) bool {
	user, ok := middleware.CurrentUser(c)
	return ok && user.Role == models.RoleAdmin
}

// GetSettings returns the aggregate settings payload the app loads on start.
// The payload is cached per language; a miss rebuilds it under the stampede
// lock.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()
	language := c.DefaultQuery("lang", service.DefaultLanguage)
	isAdmin := h.isAdmin(c)

	var snapshot service.Snapshot
	if h.cache != nil && h.cache.Get(ctx, language, isAdmin, &snapshot) {
		c.JSON(http.StatusOK, snapshot)
		return
	}

	build := func() (interface{}, error) {
		return h.settings.GetSnapshot(ctx, language, isAdmin)
	}

	var payload interface{}
	var err error
	if h.cache != nil {
		payload, err = h.cache.Rebuild(ctx, language, isAdmin, build)
	} else {
		payload, err = build()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
		return
	}
	c.JSON(http.StatusOK, payload)
}

// GetFeatures returns the feature flag map.
func (h *SettingsHandler) GetFeatures(c *gin.Context) {
	features, err := h.settings.EnabledFeatures(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch feature flags"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": features})
}

// GetTexts returns localized strings for one language.
func (h *SettingsHandler) GetTexts(c *gin.Context) {
	language := c.DefaultQuery("lang", service.DefaultLanguage)
	texts, err := h.settings.Texts(c.Request.Context(), language)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch app texts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"texts": texts, "language": language})
}

// GetTheme returns the active theme.
func (h *SettingsHandler) GetTheme(c *gin.Context) {
	theme, err := h.settings.ActiveTheme(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrThemeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No active theme found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch theme"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

// GetNavigation returns the enabled navigation tabs in display order.
func (h *SettingsHandler) GetNavigation(c *gin.Context) {
	tabs, err := h.settings.Navigation(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch navigation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tabs": tabs})
}

// ---- Admin operations ----

func (h *SettingsHandler) invalidate(c *gin.Context) {
	if h.cache != nil {
		h.cache.Invalidate(c.Request.Context())
	}
}

// ListFeatures returns every flag including disabled ones.
func (h *SettingsHandler) ListFeatures(c *gin.Context) {
	flags, err := h.settings.AllFeatures(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch feature flags"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": flags})
}

// UpdateFeatureInput is the flag update body.
type UpdateFeatureInput struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// UpdateFeature flips a feature flag by key.
func (h *SettingsHandler) UpdateFeature(c *gin.Context) {
	var input UpdateFeatureInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	flag, err := h.settings.UpdateFeatureFlag(c.Request.Context(), c.Param("key"), *input.Enabled)
	if err != nil {
		if errors.Is(err, service.ErrFlagNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Feature flag not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update feature flag"})
		return
	}

	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"feature": flag})
}

// UpdateTextInput is the single text update body.
type UpdateTextInput struct {
	Value    string `json:"value"`
	Language string `json:"language"`
}

// UpdateText updates one localized string by key.
func (h *SettingsHandler) UpdateText(c *gin.Context) {
	var input UpdateTextInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, err := h.settings.UpdateText(c.Request.Context(), c.Param("key"), input.Language, input.Value)
	if err != nil {
		if errors.Is(err, service.ErrTextNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Text not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update app text"})
		return
	}

	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// BulkUpdateTextsInput is the bulk text update body.
type BulkUpdateTextsInput struct {
	Texts    map[string]string `json:"texts" binding:"required"`
	Language string            `json:"language"`
}

// BulkUpdateTexts updates several strings at once.
func (h *SettingsHandler) BulkUpdateTexts(c *gin.Context) {
	var input BulkUpdateTextsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "texts map is required"})
		return
	}

	updated, err := h.settings.BulkUpdateTexts(c.Request.Context(), input.Language, input.Texts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to bulk update texts"})
		return
	}

	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// ListThemes returns every theme.
func (h *SettingsHandler) ListThemes(c *gin.Context) {
	themes, err := h.settings.AllThemes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch themes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"themes": themes})
}

// UpdateTheme applies a partial color update to one theme.
func (h *SettingsHandler) UpdateTheme(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid theme ID"})
		return
	}

	var colors service.ThemeColors
	if err := c.ShouldBindJSON(&colors); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	theme, err := h.settings.UpdateTheme(c.Request.Context(), uint(id), colors)
	if err != nil {
		if errors.Is(err, service.ErrThemeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Theme not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update theme"})
		return
	}

	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

// ActivateTheme makes one theme the active one.
func (h *SettingsHandler) ActivateTheme(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid theme ID"})
		return
	}

	theme, err := h.settings.ActivateTheme(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, service.ErrThemeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Theme not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate theme"})
		return
	}

	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"message": "Theme activated successfully", "theme": theme})
}

// UpdateNavigationTab applies a partial update to one navigation tab.
func (h *SettingsHandler) UpdateNavigationTab(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tab ID"})
		return
	}

	var update service.NavigationUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tab, err := h.settings.UpdateNavigationTab(c.Request.Context(), uint(id), update)
	if err != nil {
		if errors.Is(err, service.ErrTabNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Navigation tab not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update navigation tab"})
		return
	}

	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"tab": tab})
}

// GetConfig returns configuration entries; non-public ones for admins only.
func (h *SettingsHandler) GetConfig(c *gin.Context) {
	config, err := h.settings.Config(c.Request.Context(), h.isAdmin(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch app config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": config})
}

// UpdateConfigInput is the config update body; Value holds raw JSON.
type UpdateConfigInput struct {
	Value string `json:"value"`
}

// UpdateConfig replaces one config entry's value.
func (h *SettingsHandler) UpdateConfig(c *gin.Context) {
	var input UpdateConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.settings.UpdateConfig(c.Request.Context(), c.Param("key"), input.Value)
	if err != nil {
		if errors.Is(err, service.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Config not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update app config"})
		return
	}

	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}
