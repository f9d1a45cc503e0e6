package middleware

import (
	"net/http"
	"time"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig configures the OTel middleware.
type OTelConfig struct {
	// ServiceName names the tracer when Tracer is nil.
	ServiceName string
	// Tracer overrides the tracer otel.Tracer(ServiceName) would produce.
	Tracer trace.Tracer
	// Propagator overrides otel.GetTextMapPropagator() for context extraction.
	Propagator propagation.TextMapPropagator
	// Filter, if it returns true, skips tracing for the request entirely.
	Filter func(c ctx.Ctx) bool
	// SpanName overrides the default "METHOD route" span name. An empty
	// return falls back to the default.
	SpanName func(c ctx.Ctx) string
	// Attributes are computed per-request and added to the span.
	Attributes func(c ctx.Ctx) []attribute.KeyValue
	// ExtraAttributes are static attributes added to every span.
	ExtraAttributes []attribute.KeyValue
	// RecordDuration adds an http.duration_ms attribute when true.
	RecordDuration bool
	// Status maps the final response status and handler error to a span
	// status code and description. Defaults to Error on err!=nil or >=500,
	// Unset otherwise.
	Status func(code int, err error) (codes.Code, string)
}

// OTel returns tracing middleware for serviceName with default behavior.
func OTel(serviceName string) app.Middleware {
	return OTelWithConfig(OTelConfig{ServiceName: serviceName})
}

// OTelWithConfig returns tracing middleware wired per cfg (spec §4 domain
// stack: go.opentelemetry.io/otel + .../trace).
func OTelWithConfig(cfg OTelConfig) app.Middleware {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(cfg.ServiceName)
	}
	propagator := cfg.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	statusFn := cfg.Status
	if statusFn == nil {
		statusFn = defaultOTelStatus
	}

	return func(next app.Handler) app.Handler {
		return func(c ctx.Ctx) (any, error) {
			if cfg.Filter != nil && cfg.Filter(c) {
				return next(c)
			}

			parentCtx := propagator.Extract(c.Context(), propagation.HeaderCarrier(c.Request().Header))

			spanName := c.Method() + " " + c.Path()
			if rt := c.Route(); rt != "" {
				spanName = c.Method() + " " + rt
			}
			if cfg.SpanName != nil {
				if n := cfg.SpanName(c); n != "" {
					spanName = n
				}
			}

			spanCtx, span := tracer.Start(parentCtx, spanName, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			c.SetRequest(c.Request().WithContext(spanCtx))

			attrs := []attribute.KeyValue{
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.Path()),
			}
			if rt := c.Route(); rt != "" {
				attrs = append(attrs, attribute.String("http.route", rt))
			}
			if cfg.Attributes != nil {
				attrs = append(attrs, cfg.Attributes(c)...)
			}
			attrs = append(attrs, cfg.ExtraAttributes...)
			span.SetAttributes(attrs...)

			start := time.Now()
			value, err := next(c)

			code := c.StatusCode()
			if code == 0 {
				code = http.StatusOK
			}
			span.SetAttributes(attribute.Int("http.status_code", code))
			if cfg.RecordDuration {
				span.SetAttributes(attribute.Int64("http.duration_ms", time.Since(start).Milliseconds()))
			}
			if err != nil {
				span.RecordError(err)
			}
			sc, desc := statusFn(code, err)
			span.SetStatus(sc, desc)

			return value, err
		}
	}
}

func defaultOTelStatus(code int, err error) (codes.Code, string) {
	if err != nil || code >= 500 {
		return codes.Error, ""
	}
	return codes.Unset, ""
}
