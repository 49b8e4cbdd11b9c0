package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Carrier is a span's W3C trace context in a form that can be stored in a table row and
// attached to a new context later, e.g. when an outbox row is finally published.
type Carrier struct {
	Parent string
	State  string
}

func Capture(ctx context.Context) Carrier {
	m := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, m)
	return Carrier{Parent: m.Get("traceparent"), State: m.Get("tracestate")}
}

func (c Carrier) Empty() bool {
	return c.Parent == "" && c.State == ""
}

// Attach returns ctx continuing the captured trace. An empty carrier returns ctx as is.
func (c Carrier) Attach(ctx context.Context) context.Context {
	if c.Empty() {
		return ctx
	}
	m := propagation.MapCarrier{"traceparent": c.Parent}
	if c.State != "" {
		m["tracestate"] = c.State
	}
	return otel.GetTextMapPropagator().Extract(ctx, m)
}
