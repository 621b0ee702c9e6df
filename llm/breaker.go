package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerClient wraps a Client with a circuit breaker so a failing backend
// stops receiving requests until it recovers.
type BreakerClient struct {
	client  Client
	breaker *gobreaker.CircuitBreaker[*Response]
}

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string

	// MaxFailures is the consecutive-failure count that opens the circuit.
	MaxFailures uint32

	// CoolDown is how long the circuit stays open before a probe request.
	CoolDown time.Duration
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:        "completion",
		MaxFailures: 5,
		CoolDown:    30 * time.Second,
	}
}

// NewBreakerClient wraps client with circuit-breaker protection.
func NewBreakerClient(client Client, cfg BreakerConfig) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation is not a backend failure.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return err == nil
		},
	}

	return &BreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*Response](settings),
	}
}

// Generate forwards to the wrapped client through the breaker.
func (b *BreakerClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := b.breaker.Execute(func() (*Response, error) {
		return b.client.Generate(ctx, req)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("completion service unavailable: %w", err)
	}
	return resp, err
}

// GenerateStream forwards to the wrapped client. The breaker gates stream
// establishment only; mid-stream errors do not trip it.
func (b *BreakerClient) GenerateStream(ctx context.Context, req *Request) (<-chan StreamEvent, error) {
	if b.breaker.State() == gobreaker.StateOpen {
		return nil, fmt.Errorf("completion service unavailable: %w", gobreaker.ErrOpenState)
	}
	return b.client.GenerateStream(ctx, req)
}
