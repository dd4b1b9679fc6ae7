package shopstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MrWong99/signshop/internal/resilience"
)

func testFallbackConfig() resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestResilient_SaveFallsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := &failingStore{err: errors.New("db down")}
	fallback := NewMemStore()
	s := NewResilient(primary, "postgres", fallback, testFallbackConfig())

	if err := s.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := fallback.Load(ctx)
	if err != nil {
		t.Fatalf("fallback Load: %v", err)
	}
	if len(got) != len(sampleRecords()) {
		t.Errorf("fallback holds %d records, want %d", len(got), len(sampleRecords()))
	}
}

func TestResilient_SaveWithoutFallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewResilient(&failingStore{err: errors.New("db down")}, "postgres", nil, testFallbackConfig())

	if err := s.Save(ctx, nil); !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("Save error = %v, want ErrAllFailed", err)
	}
	if err := s.Save(ctx, nil); err == nil {
		t.Fatal("second Save succeeded, want error")
	}
	if s.Breaker().State() != resilience.StateOpen {
		t.Fatalf("breaker = %v, want open", s.Breaker().State())
	}
	if err := s.Save(ctx, nil); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Save while open = %v, want ErrCircuitOpen", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Ping while open = %v, want ErrCircuitOpen", err)
	}
}

func TestResilient_LoadReadsPrimaryOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fallback := NewMemStore(sampleRecords()...)
	s := NewResilient(&failingStore{err: errors.New("db down")}, "postgres", fallback, testFallbackConfig())

	if _, err := s.Load(ctx); err == nil {
		t.Fatal("Load succeeded from fallback, want primary error")
	}

	healthy := NewResilient(NewMemStore(sampleRecords()...), "memory", nil, testFallbackConfig())
	got, err := healthy.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(sampleRecords()) {
		t.Errorf("Load returned %d records, want %d", len(got), len(sampleRecords()))
	}
	if err := healthy.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestResilient_CloseClosesAll(t *testing.T) {
	t.Parallel()

	primary, fallback := NewMemStore(), NewMemStore()
	s := NewResilient(primary, "memory", fallback, testFallbackConfig())
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ctx := context.Background()
	if _, err := primary.Load(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("primary Load = %v, want ErrClosed", err)
	}
	if _, err := fallback.Load(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("fallback Load = %v, want ErrClosed", err)
	}
}
