package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"oneworld-backend/database"
	"oneworld-backend/middleware"
	"oneworld-backend/models"
	"oneworld-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestEnv opens a fresh in-memory store and wires the API routes the way
// the production router does, minus the live hub and the snapshot cache.
func setupTestEnv(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes writes; the shared in-memory store throws
	// table lock errors under concurrent writers otherwise.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	clearHandlerTables(t, db)
	t.Cleanup(func() { sqlDB.Close() })

	votingService := service.NewVotingService(db)
	settingsService := service.NewSettingsService(db)

	votingHandler := NewVotingHandler(votingService, nil)
	settingsHandler := NewSettingsHandler(settingsService, nil)
	authHandler := NewAuthHandler(db)

	r := gin.New()
	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	votings := api.Group("/votings")
	{
		votings.GET("/active", votingHandler.GetActiveVoting)
		votings.GET("/:id/results", votingHandler.GetResults)

		authed := votings.Group("")
		authed.Use(middleware.Authenticate(db))
		{
			authed.POST("/:id/vote", votingHandler.CastVote)
			authed.GET("/history", votingHandler.GetHistory)
			authed.GET("/user/votes", votingHandler.GetUserVotes)
		}

		admin := votings.Group("")
		admin.Use(middleware.Authenticate(db), middleware.RequireAdmin())
		{
			admin.POST("", votingHandler.CreateVoting)
			admin.GET("", votingHandler.ListVotings)
			admin.PUT("/:id", votingHandler.UpdateVoting)
			admin.DELETE("/:id", votingHandler.DeleteVoting)
			admin.POST("/:id/close", votingHandler.CloseVoting)
		}
	}

	settings := api.Group("/settings")
	{
		settings.GET("", middleware.OptionalAuth(db), settingsHandler.GetSettings)
		settings.GET("/features", settingsHandler.GetFeatures)
		settings.GET("/texts", settingsHandler.GetTexts)
		settings.GET("/theme", settingsHandler.GetTheme)
		settings.GET("/navigation", settingsHandler.GetNavigation)
		settings.GET("/config", middleware.OptionalAuth(db), settingsHandler.GetConfig)

		admin := settings.Group("")
		admin.Use(middleware.Authenticate(db), middleware.RequireAdmin())
		{
			admin.GET("/admin/features", settingsHandler.ListFeatures)
			admin.PUT("/features/:key", settingsHandler.UpdateFeature)
			admin.PUT("/texts/:key", settingsHandler.UpdateText)
			admin.PUT("/texts", settingsHandler.BulkUpdateTexts)
			admin.GET("/themes", settingsHandler.ListThemes)
			admin.PUT("/themes/:id", settingsHandler.UpdateTheme)
			admin.POST("/themes/:id/activate", settingsHandler.ActivateTheme)
			admin.PUT("/navigation/:id", settingsHandler.UpdateNavigationTab)
			admin.PUT("/config/:key", settingsHandler.UpdateConfig)
		}
	}

	return r, db
}

func clearHandlerTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	session := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []interface{}{
		&models.UserVote{}, &models.VotingOption{}, &models.Voting{},
		&models.Project{}, &models.User{},
		&models.FeatureFlag{}, &models.AppText{}, &models.ThemeSetting{},
		&models.NavigationTab{}, &models.AppConfig{},
	} {
		require.NoError(t, session.Delete(model).Error)
	}
}

// createUserWithToken inserts a user and returns a signed token for it.
func createUserWithToken(t *testing.T, db *gorm.DB, email, role string) (string, models.User) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)

	token, err := middleware.IssueToken(&user)
	require.NoError(t, err)
	return token, user
}

func seedProjects(t *testing.T, db *gorm.DB, n int) []uint {
	t.Helper()

	ids := make([]uint, n)
	for i := 0; i < n; i++ {
		project := models.Project{
			Title:      fmt.Sprintf("Project %c", 'A'+i),
			GoalAmount: 1000,
		}
		require.NoError(t, db.Create(&project).Error)
		ids[i] = project.ID
	}
	return ids
}

// doRequest runs one request through the router. An empty token sends no
// Authorization header.
func doRequest(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}
