package otel

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("LANDREG_OTEL_ENDPOINT", "")

	shutdown, err := Setup(context.Background(), "registryd")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupDisabledByEnv(t *testing.T) {
	t.Setenv("LANDREG_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("LANDREG_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "registryd")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}
