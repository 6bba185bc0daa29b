// Package server exposes the document store over HTTP.
//
// The surface is two endpoints on /storage: GET fetches the caller's
// document with ETag/If-None-Match conditional support, POST replaces it
// wholesale. A static shared token (X-Token header) gates both when
// configured.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/lytodo/lytodo/internal/store"
)

// Config holds server configuration.
type Config struct {
	// Port to listen on (0 picks a random free port).
	Port int

	// Token is the shared secret required in X-Token. Empty disables auth.
	Token string

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8080,
		Logger: log.New(os.Stderr, "[server] ", log.LstdFlags),
	}
}

// Server serves the storage API over HTTP.
type Server struct {
	store  *store.Store
	token  string
	addr   string
	logger *log.Logger

	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// New creates a server over the given store.
func New(st *store.Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	return &Server{
		store:  st,
		token:  config.Token,
		addr:   fmt.Sprintf(":%d", config.Port),
		logger: config.Logger,
	}
}

// Start begins listening and serving. It returns once the listener is up;
// use Stop for graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	r := mux.NewRouter()
	r.HandleFunc("/storage", s.handleGetStorage).Methods("GET")
	r.HandleFunc("/storage", s.handlePostStorage).Methods("POST")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Token", "If-None-Match"},
	})

	s.server = &http.Server{
		Handler:      c.Handler(s.authMiddleware(r)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Storage server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()

	s.logger.Println("Storage server stopped")
	return nil
}

// GetAddr returns the server's listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
