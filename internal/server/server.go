// Package server exposes the redline engine as an upload → redline →
// download HTTP service.
package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"docxredline/internal/config"
	"docxredline/internal/redline"
	"docxredline/internal/utils"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
)

// download holds one redlined file awaiting pickup. Downloads are single
// use: the entry is dropped once served.
type download struct {
	filename string
	data     []byte
	created  time.Time
}

// RedlineServer implements the document redline service.
type RedlineServer struct {
	config    *config.Config
	mu        sync.RWMutex
	engine    *redline.Engine
	downloads map[string]download
	watcher   *fsnotify.Watcher
}

// NewRedlineServer creates a new RedlineServer.
func NewRedlineServer(cfg *config.Config) (*RedlineServer, error) {
	// Create config watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	s := &RedlineServer{
		config:    cfg,
		engine:    engineFromConfig(cfg),
		downloads: make(map[string]download),
		watcher:   watcher,
	}

	// Start watching for config changes
	go s.watchConfig()

	return s, nil
}

func engineFromConfig(cfg *config.Config) *redline.Engine {
	return redline.New(redline.Options{
		Author:         cfg.Redline.Author,
		FuzzyEnabled:   cfg.Redline.Fuzzy.Enabled,
		FuzzyThreshold: cfg.Redline.Fuzzy.Threshold,
		FuzzyMargin:    cfg.Redline.Fuzzy.Margin,
	})
}

// Close cleans up resources used by the server.
func (s *RedlineServer) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// SetupWatcher adds the loaded config file to the watcher so redline
// options can be changed without a restart.
func (s *RedlineServer) SetupWatcher() error {
	if s.config.File == "" {
		return nil
	}
	return s.watcher.Add(s.config.File)
}

// watchConfig reloads redline options when the config file is written.
// Server, TLS and CORS settings still need a restart.
func (s *RedlineServer) watchConfig() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write != fsnotify.Write {
				continue
			}

			cfg, err := config.LoadConfig(event.Name)
			if err != nil {
				log.Printf("Config reload failed: %v", err)
				continue
			}

			s.mu.Lock()
			s.config.Redline = cfg.Redline
			s.engine = engineFromConfig(cfg)
			s.mu.Unlock()

			log.Printf("Config reloaded: author=%q fuzzy=%v", cfg.Redline.Author, cfg.Redline.Fuzzy.Enabled)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// currentEngine returns the engine built from the latest config.
func (s *RedlineServer) currentEngine() *redline.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// storeDownload registers redlined bytes and returns their pickup token.
func (s *RedlineServer) storeDownload(filename string, data []byte) string {
	token := utils.GenerateToken()
	s.mu.Lock()
	s.downloads[token] = download{filename: filename, data: data, created: time.Now()}
	s.mu.Unlock()
	return token
}

// takeDownload removes and returns the download for a token.
func (s *RedlineServer) takeDownload(token string) (download, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.downloads[token]
	if ok {
		delete(s.downloads, token)
	}
	return d, ok
}

// SetupRoutes builds the HTTP router.
func (s *RedlineServer) SetupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/redline", s.handleRedline).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/download/{token}", s.handleDownload).Methods("GET")
	return router
}
