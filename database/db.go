package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"oneworld-backend/config"
	"oneworld-backend/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to MySQL using the environment configuration and returns the
// store handle. The handle is constructed once at startup and passed to the
// services; nothing else holds package-level database state.
func Open() (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  true,
		},
	)

	dbUser := config.GetEnv("DB_USER", "oneworld")
	dbPassword := config.GetEnv("DB_PASSWORD", "oneworld")
	dbHost := config.GetEnv("DB_HOST", "127.0.0.1")
	dbPort := config.GetEnv("DB_PORT", "3306")
	dbName := config.GetEnv("DB_NAME", "oneworld")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbUser, dbPassword, dbHost, dbPort, dbName)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: newLogger,
		// Uniqueness violations must surface as gorm.ErrDuplicatedKey so the
		// vote-casting path can translate lost races into "already voted".
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Voting{},
		&models.VotingOption{},
		&models.UserVote{},
		&models.FeatureFlag{},
		&models.AppText{},
		&models.ThemeSetting{},
		&models.NavigationTab{},
		&models.AppConfig{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// SeedAdmin creates the initial admin account when none exists. Credentials
// come from the environment so deployments can set their own.
func SeedAdmin(db *gorm.DB) error {
	email := config.GetEnv("ADMIN_EMAIL", "admin@oneworld.local")

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := config.GetEnv("ADMIN_PASSWORD", "changeme")
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Seeded admin account %s", email)
	return nil
}

// Close shuts down the underlying connection pool.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Failed to get database connection: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}
}
