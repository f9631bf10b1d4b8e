package otelx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Enabled: false, Endpoint: "ignored:4317", Sample: 1})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("TracerProvider = %T, want sdk provider", otel.GetTracerProvider())
	}
}

func TestInit_Disabled_SpansHaveIDs(t *testing.T) {
	_, _ = Init(context.Background(), Options{})

	ctx, span := Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Fatal("disabled tracing should still produce valid span contexts")
	}

	h := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	if h.Get("traceparent") == "" {
		t.Fatal("traceparent not injected")
	}
}

func TestInit_Enabled_ReturnsPromptly(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		shutdown, err := Init(context.Background(), Options{
			Enabled:  true,
			Endpoint: "127.0.0.1:1",
			Insecure: true,
			Sample:   0.5,
		})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Init blocked on an unreachable collector")
	}
	_, _ = Init(context.Background(), Options{})
}
