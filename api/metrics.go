package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskboard-api/api"

// requestMetricsMiddleware emits one trace span and one structured log entry
// per API request.
func requestMetricsMiddleware(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx, span := otel.Tracer(tracerName).Start(req.Context(), req.Method+" "+c.Path(),
				trace.WithSpanKind(trace.SpanKindServer))
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			status := c.Response().Status
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			}
			span.SetAttributes(
				attribute.String("http.route", c.Path()),
				attribute.String("http.method", req.Method),
				attribute.Int("http.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()

			fields := log.Fields{
				"route":    c.Path(),
				"method":   req.Method,
				"status":   status,
				"total_ms": durationToMillis(time.Since(start)),
			}
			if err != nil {
				fields["error"] = err.Error()
			}
			entry := logger.WithFields(fields)
			if status >= http.StatusInternalServerError {
				entry.Error("api.request")
			} else {
				entry.Info("api.request")
			}
			return err
		}
	}
}

// RequestTimeoutMiddleware bounds every request, and with it every store
// call, so no operation blocks indefinitely.
func RequestTimeoutMiddleware(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
