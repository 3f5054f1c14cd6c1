package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oneworld-backend/cache"
	"oneworld-backend/config"
	"oneworld-backend/database"
	"oneworld-backend/routes"
	"oneworld-backend/ws"
)

func main() {
	config.LoadEnv()

	db, err := database.Open()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database connection established")

	if err := database.SeedAdmin(db); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	cacheClient := cache.New()

	hub := ws.NewHub()
	go hub.Run()

	router := routes.SetupRouter(db, cacheClient, hub)
	srv := routes.StartServer(router)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shut down: %v", err)
	}

	database.Close(db)
	cacheClient.Close()

	log.Println("Server stopped")
}
