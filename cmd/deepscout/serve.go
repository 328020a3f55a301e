package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/probelab/deepscout/internal/api"
	"github.com/probelab/deepscout/internal/logging"
	"github.com/probelab/deepscout/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the research HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func runServer() {
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "deepscout",
	})

	cfg, err := loadSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "deepscout",
	})

	hub := websocket.NewHub()
	go hub.Run()

	orchestrator, err := buildOrchestrator(cfg, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build research orchestrator")
	}
	if orchestrator == nil {
		log.Warn().Msg("No language model configured; research endpoint will answer 503")
	}

	router := api.NewRouter(cfg, orchestrator, hub, Version)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("version", Version).Msg("Deepscout server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
