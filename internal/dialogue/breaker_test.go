package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/resilience"
)

func TestBreakerClientOpens(t *testing.T) {
	calls := 0
	next := ClientFunc(func(context.Context, *Request) (*Reply, error) {
		calls++
		return nil, errors.New("connection reset")
	})
	c := WithBreaker(next, resilience.Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})

	for i := 0; i < 2; i++ {
		_, _ = c.PostContent(context.Background(), &Request{BotName: "b"})
	}
	if c.Breaker().State() != resilience.Open {
		t.Fatalf("state = %v, want open", c.Breaker().State())
	}

	_, err := c.PostContent(context.Background(), &Request{BotName: "b"})
	if !apperrors.IsCode(err, apperrors.CodeRemoteFailure) || !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("err = %v, want REMOTE_FAILURE wrapping ErrOpen", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestBreakerClientIgnoresInvalidRequests(t *testing.T) {
	next := ClientFunc(func(context.Context, *Request) (*Reply, error) {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "bad")
	})
	c := WithBreaker(next, resilience.Config{Threshold: 1, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})

	_, _ = c.PostContent(context.Background(), &Request{})
	_, _ = c.PostContent(context.Background(), &Request{})

	if c.Breaker().State() != resilience.Closed {
		t.Errorf("state = %v, want closed", c.Breaker().State())
	}
}
