package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"subsync/internal/shared/config"
	"subsync/internal/shared/logger"
	"subsync/internal/shared/utils"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of "{timestamp}.{body}".
	SignatureHeader = "X-Signature"
	// TimestampHeader carries the sender's unix timestamp of the delivery.
	TimestampHeader = "X-Timestamp"

	// EventTimeKey is the context key under which the verified delivery
	// timestamp is stored for handlers.
	EventTimeKey = "webhook_event_time"

	// maxBodyBytes bounds the webhook body read for signing. Billing
	// events are small; anything larger is garbage.
	maxBodyBytes = 1 << 20
)

// SignatureMiddleware authenticates inbound webhooks by HMAC signature.
// The timestamp is part of the signed payload, so a verified timestamp also
// serves as the event's ordering time downstream.
type SignatureMiddleware struct {
	secret        []byte
	ttl           time.Duration
	allowUnsigned bool
	logger        logger.Interface

	// now is swappable for tests.
	now func() time.Time
}

func NewSignatureMiddleware(cfg *config.WebhookConfig, logger logger.Interface) *SignatureMiddleware {
	ttl := time.Duration(cfg.SignatureTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SignatureMiddleware{
		secret:        []byte(cfg.SigningSecret),
		ttl:           ttl,
		allowUnsigned: cfg.AllowUnsigned && cfg.SigningSecret == "",
		logger:        logger,
		now:           time.Now,
	}
}

// RequireSignature verifies the delivery signature and stores the verified
// timestamp in the context. The body is restored for downstream binding.
func (m *SignatureMiddleware) RequireSignature() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if m.allowUnsigned {
			// Open mode: explicitly configured for development. The
			// delivery time falls back to arrival time.
			c.Set(EventTimeKey, m.now().UTC())
			c.Next()
			return
		}

		timestampStr := c.GetHeader(TimestampHeader)
		signature := c.GetHeader(SignatureHeader)
		if timestampStr == "" || signature == "" {
			m.logger.Warnw("webhook delivery missing signature headers", "client_ip", c.ClientIP())
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing webhook signature")
			c.Abort()
			return
		}

		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid webhook signature")
			c.Abort()
			return
		}

		eventTime := time.Unix(timestamp, 0).UTC()
		skew := m.now().UTC().Sub(eventTime)
		if skew > m.ttl || skew < -m.ttl {
			m.logger.Warnw("webhook delivery outside signature window",
				"skew", skew,
				"client_ip", c.ClientIP(),
			)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid webhook signature")
			c.Abort()
			return
		}

		if !m.verify(timestampStr, body, signature) {
			m.logger.Warnw("webhook delivery with bad signature", "client_ip", c.ClientIP())
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid webhook signature")
			c.Abort()
			return
		}

		c.Set(EventTimeKey, eventTime)
		c.Next()
	}
}

func (m *SignatureMiddleware) verify(timestamp string, body []byte, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign computes the signature for a timestamp and body. Exported for tests
// and for the CLI replay tooling.
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// EventTimeFromContext returns the verified delivery timestamp the signature
// middleware stored.
func EventTimeFromContext(c *gin.Context) time.Time {
	if v, ok := c.Get(EventTimeKey); ok {
		if ts, ok := v.(time.Time); ok {
			return ts
		}
	}
	return time.Now().UTC()
}
