package service

import (
	"testing"
	"time"

	"oneworld-backend/database"
	"oneworld-backend/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens the shared in-memory SQLite database, migrates the
// schema and wipes all tables so each test starts clean.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// A single connection serializes writes; in-memory SQLite returns table
	// lock errors under concurrent writers otherwise.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate schema: %v", err)
	}

	clearTables(db)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// clearTables wipes all rows; order matters because of references.
func clearTables(db *gorm.DB) {
	session := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	session.Delete(&models.UserVote{})
	session.Delete(&models.VotingOption{})
	session.Delete(&models.Voting{})
	session.Delete(&models.Project{})
	session.Delete(&models.User{})
	session.Delete(&models.FeatureFlag{})
	session.Delete(&models.AppText{})
	session.Delete(&models.ThemeSetting{})
	session.Delete(&models.NavigationTab{})
	session.Delete(&models.AppConfig{})
}

func createTestProjects(t *testing.T, db *gorm.DB, n int) []uint {
	t.Helper()

	ids := make([]uint, n)
	for i := 0; i < n; i++ {
		project := models.Project{Title: "Project " + string(rune('A'+i))}
		if err := db.Create(&project).Error; err != nil {
			t.Fatalf("Failed to create test project: %v", err)
		}
		ids[i] = project.ID
	}
	return ids
}

func createTestUser(t *testing.T, db *gorm.DB, email string) uint {
	t.Helper()

	user := models.User{Email: email, Name: email, PasswordHash: "x", Role: models.RoleUser}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user.ID
}

// fixedClock pins the service clock for deterministic window checks.
func fixedClock(svc *VotingService, at time.Time) {
	svc.now = func() time.Time { return at }
}
