package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"

	"rummy-server/internal/database"
	"rummy-server/internal/rummy"
)

const (
	// inactivityTimeout is how long a connection may stay silent before the
	// reaper tears it down. Three missed pings.
	inactivityTimeout = 3 * pingInterval

	// aiThinkDelay spaces out AI moves so play is followable.
	aiThinkDelay = 800 * time.Millisecond
)

type Server struct {
	port int
	db   database.Service

	registry           *SessionRegistry
	processor          *MoveProcessor
	scheduler          *AIScheduler
	lifecycle          *SessionLifecycle
	connectionManager  *ConnectionManager
	persistenceManager *PersistenceManager
	rateLimiter        *RateLimiter
	health             *ConnectionHealth

	// auth resolves a bearer token to a user. Indirected for tests.
	auth func(token string) (*User, error)

	quit chan struct{}
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))

	// Initialize database
	dbService := database.New()

	// Run migrations
	if err := runMigrations(dbService.DB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	persistenceManager := NewPersistenceManager(dbService.DB())

	registry := NewSessionRegistry()
	processor := NewMoveProcessor(registry)
	lifecycle := NewSessionLifecycle(registry, persistenceManager)
	scheduler := NewAIScheduler(registry, processor, &rummy.GreedySelector{}, aiThinkDelay)

	srv := &Server{
		port:               port,
		db:                 dbService,
		registry:           registry,
		processor:          processor,
		scheduler:          scheduler,
		lifecycle:          lifecycle,
		connectionManager:  NewConnectionManager(),
		persistenceManager: persistenceManager,
		rateLimiter:        NewRateLimiter(30, time.Minute),
		health:             NewConnectionHealth(),
		auth:               persistenceManager.GetUserByToken,
		quit:               make(chan struct{}),
	}

	// AI moves flow through the same broadcast path as human moves
	scheduler.SetOutcomeHandler(func(_ *GameSession, outcome *MoveOutcome) {
		srv.dispatchOutcome(outcome)
	})
	scheduler.Start()

	// Start background tasks
	go srv.lobbySweepTask()
	go srv.reaperTask()

	// Declare Server config
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return srv, httpServer
}

// runMigrations applies database migrations using goose
func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	// Run migrations from db/migrations directory
	if err := goose.Up(db, "./db/migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("Database migrations applied successfully")
	return nil
}

// lobbySweepTask removes waiting games nobody joined before their expiry.
func (s *Server) lobbySweepTask() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.registry.SweepExpiredWaiting(time.Now()); removed > 0 {
				log.Printf("Lobby sweep removed %d expired waiting games", removed)
			}
		case <-s.quit:
			return
		}
	}
}

// reaperTask disconnects users that stopped answering. Their sessions stay in
// the registry, so a reconnect resumes play with a fetch_state.
func (s *Server) reaperTask() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, userID := range s.health.GetInactiveConnections(inactivityTimeout) {
				log.Printf("Reaping inactive connection for %s", userID)
				s.connectionManager.Disconnect(userID, "Connection timed out")
				s.health.RemoveConnection(userID)
				s.rateLimiter.RemoveConnection(userID)
			}
		case <-s.quit:
			return
		}
	}
}

// Shutdown stops background work and tells connected players the server is
// going away. Live sessions are in-memory only, so there is nothing to flush.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.quit)
	s.scheduler.Stop()

	for _, sess := range s.registry.Sessions() {
		for _, userID := range sess.Participants {
			s.connectionManager.Disconnect(userID, "Server shutting down")
		}
	}

	return s.db.Close()
}
