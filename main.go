package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"ptbridge/api"
	"ptbridge/config"
	"ptbridge/handlers"
	"ptbridge/internal/database"
	"ptbridge/services/download"
	"ptbridge/services/history"
	"ptbridge/services/search"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("ptbridge starting...")

	configPath := os.Getenv("PTBRIDGE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// File logging with rotation, teed with stdout.
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
		}
	}

	db, err := database.Open(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	historySvc, err := history.NewService(db)
	if err != nil {
		log.Fatalf("failed to init history service: %v", err)
	}

	fetcher := search.NewHTTPFetcher(time.Duration(settings.Search.TimeoutSec) * time.Second)
	searchSvc := search.NewService(cfgManager, fetcher)

	registry := download.NewRegistry(cfgManager)
	downloadSvc := download.NewService(cfgManager, registry, historySvc)

	router := mux.NewRouter()
	api.Register(
		router,
		handlers.NewSearchHandler(searchSvc),
		handlers.NewDownloadHandler(downloadSvc),
		handlers.NewHistoryHandler(historySvc),
		handlers.NewSettingsHandler(cfgManager, registry),
	)

	port := settings.Server.Port
	if *portOverride > 0 {
		port = *portOverride
	}
	addr := fmt.Sprintf("%s:%d", settings.Server.Host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}
}
