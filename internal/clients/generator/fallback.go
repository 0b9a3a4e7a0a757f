package generator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// DefaultTimeout bounds a single primary generator call
const DefaultTimeout = 20 * time.Second

type fallbackGenerator struct {
	primary  Generator
	fallback Generator
	timeout  time.Duration
}

var _ Generator = (*fallbackGenerator)(nil)

// WithFallback returns a generator that asks primary first and answers from
// fallback when primary errors, times out or returns an empty reply.
func WithFallback(primary, fallback Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &fallbackGenerator{primary: primary, fallback: fallback, timeout: timeout}
}

func (g *fallbackGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	if req == nil {
		return "", errors.InvalidArgument("request is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	reply, err := g.primary.Generate(callCtx, req)
	cancel()

	if err == nil && strings.TrimSpace(reply) != "" {
		return reply, nil
	}
	if err != nil {
		slog.Warn("Primary generator failed, using fallback",
			"error", err,
			"code", errors.GetCode(err))
	} else {
		slog.Warn("Primary generator returned an empty reply, using fallback")
	}

	reply, err = g.fallback.Generate(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "fallback generator failed")
	}
	return reply, nil
}
