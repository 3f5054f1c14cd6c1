package routes

import (
	"log"
	"net/http"
	"time"

	"oneworld-backend/cache"
	"oneworld-backend/config"
	"oneworld-backend/handlers"
	"oneworld-backend/middleware"
	"oneworld-backend/service"
	"oneworld-backend/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server wraps the HTTP server for graceful shutdown.
type Server struct {
	*http.Server
}

// SetupRouter assembles the full route table: REST API, websocket live
// results and the server-rendered admin panel.
func SetupRouter(db *gorm.DB, cacheClient *cache.Client, hub *ws.Hub) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.LoadHTMLGlob("templates/admin/*.html")

	votingService := service.NewVotingService(db)
	settingsService := service.NewSettingsService(db)
	settingsCache := cache.NewSettingsCache(cacheClient)
	sessionStore := cache.NewSessionStore(cacheClient)

	votingHandler := handlers.NewVotingHandler(votingService, hub)
	settingsHandler := handlers.NewSettingsHandler(settingsService, settingsCache)
	authHandler := handlers.NewAuthHandler(db)
	adminHandler := handlers.NewAdminHandler(db, sessionStore)
	healthHandler := handlers.NewHealthHandler(db)
	liveHandler := handlers.NewLiveHandler(votingService, hub)

	router.GET("/health", healthHandler.Check)
	router.GET("/status", healthHandler.Status)

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimit())
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		votings := api.Group("/votings")
		{
			votings.GET("/active", votingHandler.GetActiveVoting)
			votings.GET("/:id/results", votingHandler.GetResults)
			votings.GET("/:id/live", liveHandler.Subscribe)

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
	}

	adminPanel := router.Group("/admin")
	{
		adminPanel.GET("", adminHandler.Index)
		adminPanel.GET("/login", adminHandler.LoginPage)
		adminPanel.POST("/api/login", adminHandler.HandleLogin)

		protected := adminPanel.Group("")
		protected.Use(middleware.RequireAdminSession(sessionStore))
		{
			protected.GET("/logout", adminHandler.HandleLogout)
			protected.POST("/api/logout", adminHandler.HandleLogout)
			protected.GET("/api/user", adminHandler.CurrentAdmin)
			protected.GET("/dashboard", adminHandler.Dashboard)
			protected.GET("/votings", adminHandler.VotingsPage)
			protected.GET("/settings", adminHandler.SettingsPage)
		}
	}

	return router
}

// StartServer runs the HTTP server in its own goroutine and returns the
// handle for graceful shutdown.
func StartServer(router *gin.Engine) *Server {
	addr := ":" + config.GetEnv("SERVER_PORT", "8080")

	srv := &Server{
		&http.Server{
			Addr:    addr,
			Handler: router,
		},
	}

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	return srv
}
