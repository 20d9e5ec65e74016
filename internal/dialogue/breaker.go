package dialogue

import (
	"context"
	"errors"

	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/resilience"
)

// BreakerClient fails fast while the dialogue service keeps failing.
type BreakerClient struct {
	next    Client
	breaker *resilience.Breaker
}

// WithBreaker wraps next with a circuit breaker built from cfg.
func WithBreaker(next Client, cfg resilience.Config) *BreakerClient {
	return &BreakerClient{next: next, breaker: resilience.New(cfg).Named("dialogue")}
}

// Breaker exposes the underlying breaker for state inspection.
func (c *BreakerClient) Breaker() *resilience.Breaker { return c.breaker }

// PostContent calls next unless the breaker is open. Invalid requests do
// not count against the service.
func (c *BreakerClient) PostContent(ctx context.Context, req *Request) (*Reply, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRemoteFailure, "dialogue service unavailable")
	}
	reply, err := c.next.PostContent(ctx, req)
	switch {
	case err == nil:
		c.breaker.Success()
	case apperrors.IsCode(err, apperrors.CodeInvalidArgument), errors.Is(err, context.Canceled):
	default:
		c.breaker.Failure()
	}
	return reply, err
}
