// Package httpmedia serves stored media objects over HTTP.
package httpmedia

import (
	"bufio"
	"errors"
	"net/http"
	"time"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/media"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Handler streams objects of a media.Store.
type Handler struct {
	store media.Store
	log   *zap.Logger
}

// NewRouter builds the gin engine serving GET /media/:owner/:slot.
func NewRouter(store media.Store, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{store: store, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests())
	r.GET("/media/:owner/:slot", h.GetObject)
	return r
}

func (h *Handler) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
		)
	}
}

// GetObject streams one object. The content type is sniffed from its first bytes.
func (h *Handler) GetObject(c *gin.Context) {
	owner, err := uuid.FromString(c.Param("owner"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad owner"})
		return
	}
	key := media.Key{OwnerID: owner, Slot: c.Param("slot")}
	if err := key.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad slot"})
		return
	}

	rc, err := h.store.Get(c.Request.Context(), key)
	if errors.Is(err, errs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		h.log.Error("media read failed", zap.String("path", key.Path()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "store unavailable"})
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 512)
	head, _ := br.Peek(512)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.DataFromReader(http.StatusOK, -1, http.DetectContentType(head), br, nil)
}
