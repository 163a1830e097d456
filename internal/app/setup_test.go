package app

import (
	"context"
	"testing"

	"github.com/textlens/textlens/internal/config"
	"github.com/textlens/textlens/internal/log"
)

func TestProvideLimiter(t *testing.T) {
	tests := []struct {
		name    string
		rps     float64
		wantNil bool
	}{
		{"disabled", 0, true},
		{"negative", -1, true},
		{"enabled", 2.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := provideLimiter(tt.rps)
			if (l == nil) != tt.wantNil {
				t.Errorf("provideLimiter(%v) nil = %v, want %v", tt.rps, l == nil, tt.wantNil)
			}
			if l != nil && float64(l.Limit()) != tt.rps {
				t.Errorf("limit = %v, want %v", l.Limit(), tt.rps)
			}
		})
	}
}

func TestProvideOtelShutdownDisabled(t *testing.T) {
	shutdown := provideOtelShutdown(context.Background(), config.TracingConfig{}, log.NewNop())
	if shutdown == nil {
		t.Fatal("shutdown func must never be nil")
	}
	shutdown()
}

func TestCloseOnPartialApp(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() on partial app error = %v", err)
	}
}
