package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"moodcam/internal/auth"
	"moodcam/internal/detection"
	"moodcam/internal/history"
	"moodcam/internal/middleware"
	"moodcam/internal/pipeline"
	"moodcam/internal/ws"
)

// server bundles the components the HTTP surface exposes.
type server struct {
	coordinator   *pipeline.Coordinator
	detector      *detection.Client
	store         *history.Store
	hub           *ws.EmotionHub
	authenticator *auth.Authenticator
	logger        *log.Logger
}

// routes builds the request multiplexer. The management API sits behind
// the auth middleware; the websocket endpoints and health check do not,
// since capture clients are headless devices.
func (s *server) routes() http.Handler {
	protected := middleware.Auth(s.authenticator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.Handle("GET /api/stats", protected(http.HandlerFunc(s.handleStats)))
	mux.Handle("GET /api/events", protected(http.HandlerFunc(s.handleEvents)))
	mux.Handle("/ws/frames", ws.NewFrameHandler(s.coordinator))
	mux.Handle("/ws/emotions", ws.NewEmotionHandler(s.hub))
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	detectorHealthy := s.detector.IsHealthy()
	if !detectorHealthy {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           status,
		"detector_healthy": detectorHealthy,
		"subscribers":      s.hub.SubscriberCount(),
		"timestamp":        time.Now().Unix(),
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	token, expiresAt, err := s.authenticator.Login(creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthDisabled) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authentication is disabled"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.coordinator.Stats()
	smoothed, hasLabel := s.coordinator.Window().Mode()

	payload := map[string]interface{}{
		"pipeline":    stats,
		"window_len":  s.coordinator.Window().Len(),
		"subscribers": s.hub.SubscriberCount(),
	}
	if hasLabel {
		payload["emotion"] = smoothed.String()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		since = &t
	}

	events, err := s.store.ListTransitions(clientID, since, limit)
	if err != nil {
		s.logger.Printf("failed to list transitions: %s", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list events"})
		return
	}
	if events == nil {
		events = []*history.TransitionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// handleHTTPServer configures and starts a HTTP server on the given
// address. It shuts down the server if any error is received in the error
// channel.
func handleHTTPServer(ctx context.Context, addr string, s *server, wg *sync.WaitGroup, errc chan error, logger *log.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: time.Second * 60,
	}

	(*wg).Add(1)
	go func() {
		defer (*wg).Done()

		// Start HTTP server in a separate goroutine.
		go func() {
			logger.Printf("HTTP server listening on %q", addr)
			errc <- srv.ListenAndServe()
		}()

		<-ctx.Done()
		logger.Printf("shutting down HTTP server at %q", addr)

		// Shutdown gracefully with a 30s timeout.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Printf("failed to shutdown: %v", err)
		}
	}()
}
