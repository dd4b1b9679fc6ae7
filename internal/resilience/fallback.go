package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every target in a [FallbackGroup] failed or
// had an open breaker.
var ErrAllFailed = errors.New("resilience: all targets failed")

// FallbackConfig configures the breaker created for each target of a
// [FallbackGroup]. The breaker's Name is set to the target name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
	Logger         *slog.Logger
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary target and zero or more fallbacks of the same
// type. A call goes to the first target whose breaker admits it and that
// succeeds.
//
// Targets must be registered before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as its first target.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CircuitBreaker.Logger == nil {
		cfg.CircuitBreaker.Logger = cfg.Logger
	}
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a target tried after all earlier ones.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Primary returns the breaker guarding the first target.
func (fg *FallbackGroup[T]) Primary() *CircuitBreaker {
	return fg.entries[0].breaker
}

// Len returns the number of targets.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// Execute calls fn with each target in order until one succeeds and returns
// the name of that target. When all fail, the error wraps [ErrAllFailed]
// and every individual failure.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) (string, error) {
	errs := make([]error, 0, len(fg.entries))
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if err == nil {
			if i > 0 {
				fg.cfg.Logger.Warn("served by fallback", "target", entry.name)
			}
			return entry.name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			fg.cfg.Logger.Debug("skipping target, circuit open", "target", entry.name)
			continue
		}
		fg.cfg.Logger.Warn("target failed", "target", entry.name, "err", err)
	}
	return "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
