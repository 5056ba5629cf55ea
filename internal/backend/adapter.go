// Package backend adapts heterogeneous model API clients to the uniform
// query contract the round coordinator dispatches against. Failures cross
// this boundary as classified data, never as panics or raw client errors.
package backend

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/quorum/internal/model"
	"github.com/sells-group/quorum/internal/resilience"
	"github.com/sells-group/quorum/pkg/chatapi"
	"github.com/sells-group/quorum/pkg/claude"
)

// Querier is the uniform backend contract: one prompt in, exactly one
// terminal outcome out. Implementations never return both values nil.
type Querier interface {
	Backend() model.Backend
	Query(ctx context.Context, q model.Question) (*model.Response, *model.Failure)
}

// callFunc performs one raw attempt against the underlying client and
// returns the answer text.
type callFunc func(ctx context.Context, prompt string) (string, error)

// Adapter wraps a model API client with retry, classification, and outbound
// rate limiting. One adapter per registered backend; adapters share no
// mutable state with each other.
type Adapter struct {
	backend model.Backend
	call    callFunc
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewChat builds an adapter over an OpenAI-compatible chat client.
func NewChat(b model.Backend, client chatapi.Client) *Adapter {
	return newAdapter(b, func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.ChatCompletion(ctx, chatapi.ChatCompletionRequest{
			Model:    b.Model,
			Messages: []chatapi.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", eris.New("backend: response has no choices")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}

// NewClaude builds an adapter over the Anthropic client.
func NewClaude(b model.Backend, client claude.Client) *Adapter {
	return newAdapter(b, func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.CreateMessage(ctx, claude.MessageRequest{
			Model:  b.Model,
			Prompt: prompt,
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Text), nil
	})
}

func newAdapter(b model.Backend, call callFunc) *Adapter {
	cfg := resilience.DefaultRetryConfig()
	if b.MaxRetries >= 0 {
		cfg.MaxAttempts = b.MaxRetries + 1
	}

	var limiter *rate.Limiter
	if b.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.RatePerSec), 1)
	}

	return &Adapter{
		backend: b,
		call:    call,
		limiter: limiter,
		retry:   cfg,
	}
}

// Backend returns the immutable backend identity this adapter serves.
func (a *Adapter) Backend() model.Backend { return a.backend }

// Query performs one round participation for this backend: rate-limit wait,
// bounded retries for transient kinds only, and classification of whatever
// goes wrong into a Failure. The per-call timeout applies to each attempt;
// cancellation of ctx (the round deadline) ends everything.
func (a *Adapter) Query(ctx context.Context, q model.Question) (*model.Response, *model.Failure) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, a.failure(q, err, 0)
		}
	}

	cfg := a.retry
	cfg.ShouldRetry = func(err error) bool { return Classify(err).Transient() }
	cfg.OnRetry = resilience.RetryLogger(a.backend.ID)

	start := time.Now()
	text, attempts, err := resilience.Do(ctx, cfg, func(ctx context.Context) (string, error) {
		attemptCtx := ctx
		if a.backend.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, a.backend.Timeout)
			defer cancel()
		}
		return a.call(attemptCtx, q.Text)
	})
	if err != nil {
		return nil, a.failure(q, err, attempts)
	}

	return &model.Response{
		BackendID:  a.backend.ID,
		QuestionID: q.ID,
		Text:       text,
		Latency:    time.Since(start),
	}, nil
}

func (a *Adapter) failure(q model.Question, err error, attempts int) *model.Failure {
	kind := Classify(err)
	return &model.Failure{
		BackendID:        a.backend.ID,
		QuestionID:       q.ID,
		Kind:             kind,
		Attempts:         attempts,
		RetriesExhausted: kind.Transient() && attempts >= a.retry.MaxAttempts,
		Message:          err.Error(),
	}
}
