package translation

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerProvider wraps a Provider with a circuit breaker. After repeated
// upstream failures the breaker opens and calls fail immediately until the
// cool-down elapses.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerProvider(inner Provider) *BreakerProvider {
	name := "translation"
	if inner != nil {
		name = inner.Name()
	}

	return &BreakerProvider{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (p *BreakerProvider) Name() string {
	if p == nil || p.inner == nil {
		return ""
	}
	return p.inner.Name()
}

func (p *BreakerProvider) SupportedLanguages() []string {
	if p == nil || p.inner == nil {
		return nil
	}
	return p.inner.SupportedLanguages()
}

func (p *BreakerProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p == nil || p.inner == nil {
		return nil, fmt.Errorf("breaker provider is not initialized")
	}

	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.Translate(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*TranslateResponse)
	if !ok || resp == nil {
		return nil, fmt.Errorf("translation provider returned no response")
	}
	return resp, nil
}
