package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/listing-sync/pkg/cache"
	"github.com/Sternrassler/listing-sync/pkg/easybroker"
	"github.com/Sternrassler/listing-sync/pkg/syncer"
	"github.com/gin-gonic/gin"
)

// Response headers describing an aggregated listing.
const (
	HeaderTruncated = "X-Listing-Truncated"
	HeaderPages     = "X-Listing-Pages"
	HeaderCache     = "X-Cache"
)

// Output shapes selected by ?view=.
const (
	ViewItems   = "items"
	ViewContent = "content"
)

type handler struct {
	svc   *easybroker.Service
	ready func(ctx context.Context) error
	sync  *syncer.Scheduler
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) readiness(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *handler) listProperties(c *gin.Context) {
	filter := easybroker.ParsePropertyFilter(c.Request.URL.Query())
	h.serveListing(c, func(ctx context.Context, opts easybroker.ListOptions) (*easybroker.Listing, error) {
		return h.svc.ListProperties(ctx, filter, opts)
	})
}

func (h *handler) listContacts(c *gin.Context) {
	h.serveListing(c, h.svc.ListContacts)
}

func (h *handler) listContactRequests(c *gin.Context) {
	h.serveListing(c, h.svc.ListContactRequests)
}

type listFunc func(ctx context.Context, opts easybroker.ListOptions) (*easybroker.Listing, error)

// listParams are the query parameters shared by every listing route.
type listParams struct {
	View     string `form:"view"`
	Refresh  bool   `form:"refresh"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
}

func (h *handler) serveListing(c *gin.Context, list listFunc) {
	var params listParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid query: %v", err)})
		return
	}
	if params.View == "" {
		params.View = ViewItems
	}
	if params.View != ViewItems && params.View != ViewContent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "view must be items or content"})
		return
	}

	listing, err := list(c.Request.Context(), easybroker.ListOptions{
		PageSize: params.PageSize,
		Refresh:  params.Refresh,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header(HeaderPages, strconv.Itoa(listing.Pages))
	if listing.FromCache {
		c.Header(HeaderCache, "HIT")
	} else {
		c.Header(HeaderCache, "MISS")
	}
	if listing.Truncated {
		c.Header(HeaderTruncated, "true")
	}

	etag := viewETag(listing.ETag, params.View)
	if etag != "" {
		cache.SetCacheHeaders(c.Writer.Header(), &cache.Entry{
			ETag:     etag,
			CachedAt: listing.CachedAt,
			Expires:  listing.Expires,
		}, time.Now())
		if cache.NotModified(c.Request, etag) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	if params.View == ViewContent {
		c.JSON(http.StatusOK, listing.ContentView())
		return
	}
	c.JSON(http.StatusOK, listing.ItemsView())
}

// viewETag derives a per-representation validator from the snapshot ETag.
func viewETag(etag, view string) string {
	if etag == "" || view == ViewItems {
		return etag
	}
	return strings.TrimSuffix(etag, `"`) + "-" + view + `"`
}

func (h *handler) getProperty(c *gin.Context) {
	body, err := h.svc.GetProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	etag := cache.ETagFor(body)
	c.Header("ETag", etag)
	if cache.NotModified(c.Request, etag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *handler) submitLead(c *gin.Context) {
	var lead easybroker.Lead
	if err := c.ShouldBindJSON(&lead); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid lead: %v", err)})
		return
	}

	receipt, err := h.svc.SubmitLead(c.Request.Context(), lead)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, receipt)
}

func (h *handler) syncStatus(c *gin.Context) {
	if h.sync == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "warmup disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": h.sync.LastRuns()})
}
