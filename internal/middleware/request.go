package middleware

import (
    "strconv"
    "strings"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/zaqqye/firmsheet/internal/metrics"
)

const (
    RequestIDHeader = "X-Request-ID"
    requestIDKey    = "request_id"
)

// RequestID keeps a caller-supplied X-Request-ID or assigns a fresh UUID.
func RequestID() gin.HandlerFunc {
    return func(c *gin.Context) {
        id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
        if id == "" {
            id = uuid.NewString()
        }
        c.Set(requestIDKey, id)
        c.Header(RequestIDHeader, id)
        c.Next()
    }
}

// GetRequestID returns the id stored by RequestID, or "" outside that middleware.
func GetRequestID(c *gin.Context) string {
    return c.GetString(requestIDKey)
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
    return func(c *gin.Context) {
        start := time.Now()
        c.Next()

        fields := []zap.Field{
            zap.String("method", c.Request.Method),
            zap.String("path", c.Request.URL.Path),
            zap.Int("status", c.Writer.Status()),
            zap.Duration("latency", time.Since(start)),
            zap.String("ip", c.ClientIP()),
            zap.String("request_id", GetRequestID(c)),
        }
        if len(c.Errors) > 0 {
            fields = append(fields, zap.String("errors", c.Errors.String()))
        }
        switch {
        case c.Writer.Status() >= 500:
            log.Error("request", fields...)
        case c.Writer.Status() >= 400:
            log.Warn("request", fields...)
        default:
            log.Info("request", fields...)
        }
    }
}

// Metrics counts requests by route template so /metrics cardinality stays bounded.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
    return func(c *gin.Context) {
        c.Next()
        path := c.FullPath()
        if path == "" {
            path = "unmatched"
        }
        m.RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
    }
}
