package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"rentalcore/internal/core/apperror"
	appctx "rentalcore/internal/core/context"
	"rentalcore/internal/core/idempotency"
	"rentalcore/pkg/logger"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	// legacy spelling still sent by older clients
	headerIdempotencyKeyX = "X-Idempotency-Key"

	maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// Idempotency middleware makes POST requests carrying an Idempotency-Key
// replay their first response instead of running twice.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			key = c.GetHeader(headerIdempotencyKeyX)
		}
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// The path carries the agreement ID, so the same key reused for
		// another agreement is a mismatch, not a replay.
		hash := sha256.Sum256(append([]byte(c.Request.URL.Path+"\n"), body...))
		requestHash := hex.EncodeToString(hash[:])
		operation := c.Request.Method + " " + c.FullPath()

		replay, err := store.AcquireKey(c.Request.Context(), key, appctx.GetUserID(c.Request.Context()), operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// FinishIdempotency stores the response of a request that acquired an
// idempotency key. Success responses complete the key; error responses fail
// it. It is a no-op for requests without a key.
func FinishIdempotency(c *gin.Context, statusCode int, response any) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return
	}
	s := store.(idempotency.Store)

	var (
		body        []byte
		contentType string
		err         error
	)
	if response != nil {
		if body, err = json.Marshal(response); err != nil {
			logger.Warn(c.Request.Context(), "idempotency response not encodable", "key", key, "error", err)
			return
		}
		contentType = "application/json; charset=utf-8"
	}

	ctx := c.Request.Context()
	if statusCode < http.StatusBadRequest {
		err = s.CompleteKey(ctx, key, statusCode, contentType, body)
	} else {
		err = s.FailKey(ctx, key, statusCode, contentType, body)
	}
	if err != nil {
		logger.Warn(ctx, "idempotency key not finished", "key", key, "error", err)
	}
	c.Set(ctxIdempotencyKey, "")
}
