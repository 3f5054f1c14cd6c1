package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	startTime = time.Now()
	version   = "1.0.0"
)

// HealthHandler exposes liveness and status endpoints.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler wires the store handle for the status probe.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check is the basic liveness probe.
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "OK",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Status reports runtime and database state.
func (h *HealthHandler) Status(c *gin.Context) {
	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		dbStatus = "error"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"version":       version,
		"uptime":        time.Since(startTime).String(),
		"go_version":    runtime.Version(),
		"num_goroutine": runtime.NumGoroutine(),
		"db_status":     dbStatus,
	})
}
