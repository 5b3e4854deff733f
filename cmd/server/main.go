package main

import (
	"fmt"
	"log"
	"net/http"

	"docxredline/internal/config"
	"docxredline/internal/server"
)

func main() {
	// Parse command line flags and get configuration
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("Error parsing configuration: %v", err)
	}

	// Create server
	redlineServer, err := server.NewRedlineServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer redlineServer.Close()

	// Watch the config file for redline option changes
	if err := redlineServer.SetupWatcher(); err != nil {
		log.Fatalf("Failed to set up config watcher: %v", err)
	}

	// Set up HTTP router
	router := redlineServer.SetupRoutes()

	// Start server with or without TLS
	addr := fmt.Sprintf(":%d", cfg.Port)
	if cfg.TLS.Enabled {
		log.Printf("Redline server running at https://localhost%s", addr)
		log.Printf("Tracked changes authored as: %s", cfg.Redline.Author)
		log.Fatal(http.ListenAndServeTLS(addr, cfg.TLS.CertFile, cfg.TLS.KeyFile, router))
	} else {
		log.Printf("Redline server running at http://localhost%s", addr)
		log.Printf("Tracked changes authored as: %s", cfg.Redline.Author)
		log.Fatal(http.ListenAndServe(addr, router))
	}
}
