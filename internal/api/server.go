// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the guard's health, catalog, and usage state over a
// small gin HTTP surface. The endpoints are read-mostly; only catalog refresh
// and usage tracking mutate state.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchGuard/internal/buildinfo"
	"github.com/traylinx/switchGuard/internal/health"
	"github.com/traylinx/switchGuard/internal/manager"
)

// Server wires the manager and monitor into HTTP handlers.
type Server struct {
	engine  *gin.Engine
	manager *manager.Manager
	monitor *health.Monitor
}

// NewServer builds the gin engine with all routes registered.
func NewServer(mgr *manager.Manager, monitor *health.Monitor, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:  gin.New(),
		manager: mgr,
		monitor: monitor,
	}

	s.engine.Use(gin.Recovery(), requestID(), accessLog())

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/version", s.handleVersion)
		v1.GET("/health", s.handleHealth)
		v1.POST("/health/recovery", s.handleWaitForRecovery)
		v1.GET("/providers", s.handleProviders)
		v1.GET("/models", s.handleModels)
		v1.GET("/models/most-used", s.handleMostUsed)
		v1.GET("/models/recent", s.handleRecentlyUsed)
		v1.GET("/models/alternatives", s.handleAlternatives)
		v1.POST("/models/recommend", s.handleRecommend)
		v1.POST("/models/recover", s.handleRecover)
		v1.POST("/refresh", s.handleRefresh)
		v1.GET("/usage", s.handleUsageExport)
		v1.POST("/usage/track", s.handleTrackUsage)
		v1.POST("/usage/clear", s.handleClearUsage)
	}

	return s
}

// Handler returns the underlying http.Handler for serving or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves the API on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	log.Infof("api: listening on %s", addr)
	return s.engine.Run(addr)
}

// requestID attaches a short request identifier to the context and response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// accessLog writes one logrus line per request.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"request_id": c.GetString("request_id"),
			"status":     c.Writer.Status(),
			"elapsed":    time.Since(start).Round(time.Millisecond).String(),
		}).Infof("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    buildinfo.Version,
		"commit":     buildinfo.Commit,
		"build_date": buildinfo.BuildDate,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	opts := health.CheckOptions{
		ForceRefresh: c.Query("force") == "true",
	}
	statuses := s.monitor.CheckAll(c.Request.Context(), opts)
	c.JSON(http.StatusOK, gin.H{"providers": statuses})
}

func (s *Server) handleWaitForRecovery(c *gin.Context) {
	var req struct {
		Provider    string `json:"provider" binding:"required"`
		MaxWaitMs   int    `json:"max_wait_ms"`
		PollEveryMs int    `json:"poll_every_ms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxWaitMs <= 0 {
		req.MaxWaitMs = 30000
	}
	recovered := s.monitor.WaitForRecovery(
		c.Request.Context(),
		req.Provider,
		time.Duration(req.MaxWaitMs)*time.Millisecond,
		time.Duration(req.PollEveryMs)*time.Millisecond,
	)
	c.JSON(http.StatusOK, gin.H{"provider": req.Provider, "recovered": recovered})
}

func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": s.manager.GetAllProviderSummaries()})
}

func (s *Server) handleModels(c *gin.Context) {
	snapshot := s.manager.Snapshot()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"catalog": snapshot, "total": snapshot.ModelCount()})
}

func (s *Server) handleMostUsed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.manager.GetMostUsedModels(limitParam(c))})
}

func (s *Server) handleRecentlyUsed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.manager.GetRecentlyUsedModels(limitParam(c))})
}

func (s *Server) handleAlternatives(c *gin.Context) {
	model := c.Query("model")
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model query parameter is required"})
		return
	}
	alternatives := s.manager.GetModelAlternatives(c.Request.Context(), model, limitParam(c))
	c.JSON(http.StatusOK, gin.H{"model": model, "alternatives": alternatives})
}

func (s *Server) handleRecommend(c *gin.Context) {
	var req struct {
		Model       string `json:"model" binding:"required"`
		PreferLocal bool   `json:"prefer_local"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result := s.manager.GetRecommendedModel(c.Request.Context(), req.Model, req.PreferLocal)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRecover(c *gin.Context) {
	var req struct {
		Model string `json:"model" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result := s.manager.RecoverFromModelFailure(c.Request.Context(), req.Model)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRefresh(c *gin.Context) {
	if err := s.manager.RefreshCatalog(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": true})
}

// handleUsageExport renders the usage snapshot with goccy/go-json; exports can
// grow large and this is the hottest read endpoint.
func (s *Server) handleUsageExport(c *gin.Context) {
	export := s.manager.ExportUsageStats()
	data, err := gojson.Marshal(export)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to encode export: %v", err)})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) handleTrackUsage(c *gin.Context) {
	var req struct {
		Model          string `json:"model" binding:"required"`
		Provider       string `json:"provider" binding:"required"`
		Success        bool   `json:"success"`
		ResponseTimeMs int64  `json:"response_time_ms"`
		Error          string `json:"error"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.manager.TrackUsage(manager.UsageRecord{
		Model:        req.Model,
		Provider:     req.Provider,
		Success:      req.Success,
		ResponseTime: time.Duration(req.ResponseTimeMs) * time.Millisecond,
		ErrorMessage: req.Error,
	})
	c.JSON(http.StatusOK, gin.H{"tracked": true})
}

func (s *Server) handleClearUsage(c *gin.Context) {
	s.manager.ClearUsageStats()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		return 10
	}
	return limit
}
