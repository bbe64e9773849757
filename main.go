package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"attestation-backend/config"
	"attestation-backend/controllers"
	"attestation-backend/routes"
	"attestation-backend/services"
)

func main() {
	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found or couldn't load it; continuing with environment variables")
	}

	// The signing secret protects every guest link and staff session; refuse
	// to boot without it.
	signingSecret := os.Getenv("TOKEN_SIGNING_SECRET")
	if signingSecret == "" {
		log.Fatal("ERROR: TOKEN_SIGNING_SECRET environment variable is not set. Cannot issue attestation tokens.")
	}

	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Database connect failed: %v", err)
	}
	db := config.DB
	if db == nil {
		log.Fatal("config.DB is nil after ConnectDatabase()")
	}
	log.Println("Database connection established and migrations applied")

	// Initialize services
	tokenService := services.NewTokenService([]byte(signingSecret))
	eventService := services.NewAttestationEventService(db)
	policyService := services.NewPolicyService(db)
	attestationService := services.NewAttestationService(db, tokenService, eventService, services.NewNotifier())

	// Initialize controllers
	attestationController := controllers.NewAttestationController(attestationService, eventService, policyService)
	checkinController := controllers.NewCheckinController(attestationService)
	authController := controllers.NewAuthController(db, tokenService)
	policyController := controllers.NewPolicyController(policyService)

	// Build router
	router := routes.SetupRouter(attestationController, checkinController, authController, policyController, tokenService, db)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Periodic sweep: flip stale SENT rows to EXPIRED for reporting.
	// Expiry is otherwise computed at read time, so a missed tick is harmless.
	sweepStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := attestationService.ExpireStale(); err != nil {
					log.Printf("expiry sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("expiry sweep flipped %d attestations", n)
				}
			case <-sweepStop:
				return
			}
		}
	}()

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with timeout
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, shutting down server...")
	close(sweepStop)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
