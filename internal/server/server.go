// Package server exposes the check engine over HTTP for editor integrations
// and dashboards.
package server

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"glot/internal/checker"
	"glot/internal/config"
	"glot/internal/editor"
	"glot/internal/finding"
	"glot/internal/scanner"
	"glot/internal/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Server wires the scanner, check engine, snapshot store and table editor
// behind a JSON API.
type Server struct {
	cfg   config.Config
	store *storage.SnapshotStore
	log   zerolog.Logger

	// mu serializes scans and locale table writes; reads go straight to
	// the snapshot store.
	mu sync.Mutex
}

func New(cfg config.Config, store *storage.SnapshotStore, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, store: store, log: log}
}

// Router builds the HTTP handler.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api")
	api.POST("/scan", s.handleScan)
	api.GET("/findings", s.handleFindings)
	api.GET("/summary", s.handleSummary)
	api.POST("/keys", s.handleAddKey)
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

type scanResponse struct {
	SnapshotID int64                `json:"snapshotId"`
	Files      int                  `json:"files"`
	Keys       int                  `json:"keys"`
	ByKind     map[finding.Kind]int `json:"byKind"`
}

func (s *Server) handleScan(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources, err := scanner.Sources(s.cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	locales, err := scanner.Locales(s.cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	res, err := checker.Run(c.Request.Context(), checker.Config{
		PrimaryLocale:     s.cfg.PrimaryLocale,
		CheckedAttributes: s.cfg.CheckedAttributes,
		IgnoreTexts:       s.cfg.IgnoreTexts,
		Workers:           s.cfg.Workers,
	}, sources, locales, s.log)
	if err != nil {
		var cfgErr *checker.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	id, err := s.store.SaveSnapshot(c.Request.Context(), len(sources), len(res.UsedKeys), res.Findings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, scanResponse{
		SnapshotID: id,
		Files:      len(sources),
		Keys:       len(res.UsedKeys),
		ByKind:     finding.CountByKind(res.Findings),
	})
}

type findingsResponse struct {
	Total    int               `json:"total"`
	Offset   int               `json:"offset"`
	Limit    int               `json:"limit"`
	Findings []finding.Finding `json:"findings"`
}

func (s *Server) handleFindings(c *gin.Context) {
	kind := c.Query("kind")
	if kind != "" {
		if _, ok := finding.ParseKind(kind); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind " + strconv.Quote(kind)})
			return
		}
	}

	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", defaultPageSize)
	if offset < 0 || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset and limit must be positive"})
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	page, total, err := s.store.LatestFindings(c.Request.Context(), kind, offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if page == nil {
		page = []finding.Finding{}
	}
	c.JSON(http.StatusOK, findingsResponse{Total: total, Offset: offset, Limit: limit, Findings: page})
}

func (s *Server) handleSummary(c *gin.Context) {
	sum, err := s.store.LatestSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot yet"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

type addKeyRequest struct {
	Key     string   `json:"key" binding:"required"`
	Value   string   `json:"value" binding:"required"`
	Locales []string `json:"locales"`
}

// handleAddKey inserts a key into the named locale tables, or into every
// table when none are named. All writes are computed before any file is
// touched so a failure leaves the tables unchanged.
func (s *Server) handleAddKey(c *gin.Context) {
	var req addKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	targets := req.Locales
	if len(targets) == 0 {
		locales, err := scanner.Locales(s.cfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, l := range locales {
			targets = append(targets, l.Locale)
		}
	}

	edited := make(map[string]string, len(targets))
	for _, loc := range targets {
		path := scanner.LocalePath(s.cfg, loc)
		text, err := os.ReadFile(path)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "locale " + strconv.Quote(loc) + " has no table"})
			return
		}
		next, err := editor.AddKey(string(text), req.Key, req.Value)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		edited[path] = next
	}

	for path, text := range edited {
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	s.log.Info().Str("key", req.Key).Int("locales", len(targets)).Msg("key added")
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "locales": targets})
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
