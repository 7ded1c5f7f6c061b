package idempotency

import (
	"bytes"
	"context"
	"net/http"

	"github.com/scotthooker/commerce-stripe/providers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware makes requests carrying an Idempotency-Key header safe to retry.
// The first response below 500 is stored and replayed for the same key; a
// concurrent duplicate gets 409. scope namespaces keys, e.g. by user.
func Middleware(store Store, scope func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			c.Next()
			return
		}
		storeKey := c.Request.Method + ":" + c.FullPath() + ":" + key
		if scope != nil {
			storeKey = scope(c) + ":" + storeKey
		}

		ctx := c.Request.Context()
		reserved, stored, err := store.Reserve(ctx, storeKey)
		if err != nil {
			logger.Error("Idempotency store unavailable", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "payment unavailable"})
			return
		}
		if !reserved {
			if stored == nil {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "A request with this Idempotency-Key is already in progress"})
				return
			}
			c.Header(HeaderReplayed, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(providers.WithIdempotencyKey(ctx, key))
		rw := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rw

		c.Next()

		// The request context may already be past its deadline here.
		writeCtx := context.WithoutCancel(ctx)
		status := rw.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(writeCtx, storeKey); err != nil {
				logger.Warn("Failed to release idempotency key", zap.Error(err))
			}
			return
		}
		resp := Response{Status: status, ContentType: rw.Header().Get("Content-Type"), Body: rw.body.Bytes()}
		if err := store.Save(writeCtx, storeKey, resp); err != nil {
			logger.Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}
