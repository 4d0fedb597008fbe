package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/procura/internal/apperror"
	obscontext "github.com/smallbiznis/procura/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens one server span per request. Tenant attributes are read
// after the handler chain because authentication resolves them downstream.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("procura/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		reqCtx := c.Request.Context()
		actorType, _ := obscontext.ActorFromContext(reqCtx)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.String("request_id", obscontext.RequestIDFromContext(reqCtx)),
			attribute.String("company_id", obscontext.CompanyIDFromContext(reqCtx)),
			attribute.String("actor_type", actorType),
		)...)

		lastErr := c.Errors.Last()
		if lastErr != nil {
			span.SetAttributes(attribute.String("error.kind", string(apperror.KindOf(lastErr.Err))))
		}
		if status >= http.StatusInternalServerError {
			if lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
