package telemetry

import (
	"context"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"enabled", Config{Enabled: true, Endpoint: "localhost:4318"}, false},
		{"missing_endpoint", Config{Enabled: true}, true},
		{"bad_ratio", Config{Enabled: true, Endpoint: "localhost:4318", SampleRatio: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetup_Enabled(t *testing.T) {
	// Installs a global tracer provider; not parallel.
	shutdown, err := Setup(context.Background(), Config{
		Enabled:  true,
		Endpoint: "127.0.0.1:1",
		Insecure: true,
	}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nothing was recorded, so the flush has nothing to send.
	_ = shutdown(ctx)
}
