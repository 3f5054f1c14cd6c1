package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file if one is present. Missing files are fine in
// production where the environment is set by the deployment.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

// GetEnv returns the value of an environment variable or a fallback.
func GetEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

// GetEnvInt returns an integer environment variable or a fallback.
func GetEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

// JWTSecret returns the signing secret for user tokens.
func JWTSecret() []byte {
	return []byte(GetEnv("JWT_SECRET", "dev-secret-change-me"))
}
