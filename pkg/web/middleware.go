package web

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// requestID reuses a caller supplied request ID or generates one, and
// stores it on the request context for logging.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// observe wraps each request in a server span and records metrics and an
// access log line.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := s.tracer.StartRequestSpan(c.Request.Context(), c.Request.Method, route)
		defer span.End()
		if traceID := observability.GetTraceID(ctx); traceID != "" {
			ctx = context.WithValue(ctx, logging.TraceIDKey, traceID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		helper := observability.NewSpanHelper(span)
		if status >= 500 {
			helper.SetError(fmt.Errorf("status %d", status), strconv.Itoa(status))
		} else {
			helper.SetSuccess()
		}
		s.metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), elapsed.Seconds())

		log := s.logger.WithContext(ctx)
		fields := []logging.Field{
			logging.F("method", c.Request.Method),
			logging.F("route", route),
			logging.F("status", status),
			logging.F("duration_ms", elapsed.Milliseconds()),
		}
		if status >= 500 {
			log.Warn("Request failed", fields...)
		} else {
			log.Debug("Request served", fields...)
		}
	}
}
