// Package server exposes the sync engine to local UI collaborators over
// HTTP: status and availability queries, download triggers, a websocket
// progress feed, and cached asset bytes.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"pouch-go/internal/app"
	"pouch-go/internal/config"
	"pouch-go/internal/pouch"
)

// Server wires the gin router, the progress hub and the app together.
type Server struct {
	app      *app.PouchApp
	cfg      config.ServerConfig
	hub      *ProgressHub
	logger   pouch.Logger
	upgrader websocket.Upgrader
}

func New(a *app.PouchApp, cfg config.ServerConfig, logger pouch.Logger) *Server {
	s := &Server{
		app:    a,
		cfg:    cfg,
		hub:    NewProgressHub(logger),
		logger: logger,
		upgrader: websocket.Upgrader{
			// The UI and the engine share a device; cross-origin policy is
			// handled by the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	// Every progress report fans out to connected clients with the overall
	// number attached.
	a.SetProgressFunc(func(p pouch.CategoryProgress) {
		s.hub.Publish(ProgressEvent{
			Category: p.Category,
			Done:     p.Done,
			Total:    p.Total,
			Percent:  p.Percent(),
			Overall:  a.Service().Progress(),
			Final:    p.Final,
		})
	})

	return s
}

// Router builds the HTTP surface. Exposed separately from Run for tests.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	allowed := s.cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: allowed,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))

	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/categories", s.handleCategories)
		api.POST("/categories/:name/download", s.handleDownload)
		api.POST("/sync", s.handleSync)
		api.GET("/progress/ws", s.handleProgressWS)
	}
	r.GET("/assets/:namespace/*path", s.handleAsset)

	return r
}

// Run starts the hub and serves the API until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()
	defer s.hub.Stop()

	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Router()}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	s.logger.Info("status api listening", "addr", s.cfg.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Hub exposes the progress hub so Run-less embedders (tests) can drive it.
func (s *Server) Hub() *ProgressHub {
	return s.hub
}

func (s *Server) handleStatus(c *gin.Context) {
	report, err := s.app.Status()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	current, currentPct := s.app.Service().Current()
	c.JSON(http.StatusOK, gin.H{
		"version":               report.Version,
		"initial_sync_complete": report.InitialSyncComplete,
		"progress":              report.Progress,
		"current_category":      current,
		"current_percent":       currentPct,
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	report, err := s.app.Status()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type categoryJSON struct {
		Name         string `json:"name"`
		Downloaded   bool   `json:"downloaded"`
		AssetCount   int    `json:"asset_count"`
		FetchedCount int    `json:"fetched_count"`
		CompletedAt  string `json:"completed_at,omitempty"`
	}

	out := make([]categoryJSON, 0, len(report.Categories))
	for _, cat := range report.Categories {
		cj := categoryJSON{Name: cat.Name, Downloaded: cat.Downloaded}
		if cat.Record != nil {
			cj.AssetCount = cat.Record.AssetCount
			cj.FetchedCount = cat.Record.FetchedCount
			cj.CompletedAt = cat.Record.CompletedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, cj)
	}
	c.JSON(http.StatusOK, gin.H{"categories": out})
}

func (s *Server) handleDownload(c *gin.Context) {
	name := c.Param("name")

	if s.app.Service().IsCategoryDownloaded(name) {
		c.JSON(http.StatusOK, gin.H{"status": "downloaded", "category": name})
		return
	}

	// Fire and observe: the UI watches the websocket feed for completion.
	// Duplicate triggers collapse inside the service.
	go func() {
		if err := s.app.DownloadCategory(context.Background(), name); err != nil {
			s.logger.Warn("triggered download failed", "category", name, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started", "category": name})
}

func (s *Server) handleSync(c *gin.Context) {
	go func() {
		if err := s.app.SyncAll(context.Background()); err != nil {
			s.logger.Warn("triggered sync failed", "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) handleProgressWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 32),
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump(s.hub)
}

func (s *Server) handleAsset(c *gin.Context) {
	namespace := c.Param("namespace")
	path := strings.TrimPrefix(c.Param("path"), "/")

	body, err := s.app.Cache().Open(namespace, path)
	if err != nil {
		if errors.Is(err, pouch.ErrNotCached) {
			c.JSON(http.StatusNotFound, gin.H{"error": "asset not cached"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer body.Close()

	c.Header("Content-Type", contentTypeFor(path))
	c.Status(http.StatusOK)
	io.Copy(c.Writer, body)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	case strings.HasSuffix(path, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
