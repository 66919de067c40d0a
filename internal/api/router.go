// Package api exposes the catalog over HTTP with gin.
package api

import (
	"context"
	"net/http"

	"github.com/Sternrassler/listing-sync/pkg/easybroker"
	"github.com/Sternrassler/listing-sync/pkg/metrics"
	"github.com/Sternrassler/listing-sync/pkg/syncer"
	"github.com/gin-gonic/gin"
)

// Options wires the router's dependencies.
type Options struct {
	// Service serves the catalog (required).
	Service *easybroker.Service

	// Ready reports whether backing stores are reachable (nil means always ready).
	Ready func(ctx context.Context) error

	// Sync exposes warmup reports when set.
	Sync *syncer.Scheduler

	// Mode is the gin mode: debug, release or test (default release).
	Mode string
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) *gin.Engine {
	switch opts.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	h := &handler{svc: opts.Service, ready: opts.Ready, sync: opts.Sync}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())

	router.GET("/health", h.health)
	router.GET("/ready", h.readiness)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/properties", h.listProperties)
		v1.GET("/properties/:id", h.getProperty)
		v1.GET("/contacts", h.listContacts)
		v1.GET("/contact-requests", h.listContactRequests)
		v1.POST("/leads", h.submitLead)
		v1.GET("/sync", h.syncStatus)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
