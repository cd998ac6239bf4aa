package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"moodcam/internal/auth"
	"moodcam/internal/detection"
	"moodcam/internal/history"
	"moodcam/internal/pipeline"
	"moodcam/internal/ws"
)

func main() {
	// Define command line flags, add any other flag required to configure the
	// service.
	var (
		addrF      = flag.String("http-addr", ":8080", "HTTP listen address")
		detectorF  = flag.String("detector-url", "http://localhost:8180", "Face detection/classification service URL")
		dbF        = flag.String("db", "moodcam.db", "SQLite database path for emotion history")
		windowF    = flag.Int("window", 0, "Smoothing window size (0 = default)")
		timeoutF   = flag.Duration("classify-timeout", 0, "Per-frame classification timeout (0 = default)")
		retentionF = flag.Duration("retention", 30*24*time.Hour, "Delete emotion history older than this (0 = keep forever)")
	)
	flag.Parse()

	// Setup logger. Replace logger with your own log package of choice.
	var (
		logger *log.Logger
	)
	{
		logger = log.New(os.Stderr, "[moodcam] ", log.Ltime)
	}

	// Detection/classification client for the external inference service.
	detector := detection.NewClient(detection.ClientConfig{
		Enabled:  true,
		Endpoint: *detectorF,
		Timeout:  30 * time.Second,
	})

	// Event bus connecting the coordinator to the websocket hub and the
	// history recorder.
	bus := pipeline.NewEventBus()

	coordinator := pipeline.NewCoordinator(pipeline.CoordinatorConfig{
		Locator:         detector,
		Classifier:      detector,
		EventBus:        bus,
		WindowSize:      *windowF,
		ClassifyTimeout: *timeoutF,
	})

	// Emotion transition history.
	store, err := history.New(*dbF)
	if err != nil {
		logger.Fatalf("failed to open history database: %s", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatalf("failed to migrate history database: %s", err)
	}
	recorder := history.NewRecorder(store, bus)
	defer recorder.Close()

	hub := ws.NewEmotionHub()
	bus.Subscribe(hub)

	authenticator := auth.NewAuthenticator()
	if authenticator.IsEnabled() {
		logger.Printf("authentication enabled")
	}

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	if *retentionF > 0 {
		go store.RunRetention(ctx, *retentionF, time.Hour)
	}

	handleHTTPServer(ctx, *addrF, &server{
		coordinator:   coordinator,
		detector:      detector,
		store:         store,
		hub:           hub,
		authenticator: authenticator,
		logger:        logger,
	}, &wg, errc, logger)

	// Wait for signal.
	logger.Printf("exiting (%v)", <-errc)

	// Send cancellation signal to the goroutines.
	cancel()
	bus.Close()

	wg.Wait()
	logger.Println("exited")
}
