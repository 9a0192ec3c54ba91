package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTimeout = 5 * time.Minute

// Transport sends an assembled prompt and normalized parameters to one kind
// of endpoint.
type Transport interface {
	Call(ctx context.Context, endpoint, prompt string, params map[string]any) (string, error)
}

// Invoker is the model call used by the run pipeline.
type Invoker interface {
	Invoke(ctx context.Context, provider, endpoint, prompt string, knobs map[string]any) (string, error)
}

// Registry routes calls to the transport of a provider. Every call is bounded
// by the registry timeout and never retried here.
type Registry struct {
	transports map[string]Transport
	aliases    map[string]string
	timeout    time.Duration
	log        zerolog.Logger
}

type Option func(*Registry)

func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithEndpointAliases maps model names sent by clients to deployed endpoint
// names. Names are compared after AliasKey normalization.
func WithEndpointAliases(aliases map[string]string) Option {
	return func(r *Registry) {
		for k, v := range aliases {
			r.aliases[AliasKey(k)] = v
		}
	}
}

// AliasKey drops whitespace, dots, dashes and underscores from a model name
// and upper-cases it, so "idefics-9b" and "IDEFICS9B" name the same endpoint.
func AliasKey(name string) string {
	return strings.ToUpper(aliasStrip.Replace(name))
}

var aliasStrip = strings.NewReplacer(" ", "", "\t", "", ".", "", "-", "", "_", "")

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		transports: map[string]Transport{},
		aliases:    map[string]string{},
		timeout:    DefaultTimeout,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(provider string, t Transport) {
	r.transports[provider] = t
}

func (r *Registry) Invoke(ctx context.Context, provider, endpoint, prompt string, knobs map[string]any) (string, error) {
	t, ok := r.transports[provider]
	if !ok {
		return "", &InvocationError{Provider: provider, Endpoint: endpoint, Err: fmt.Errorf("unknown provider")}
	}
	if alias, ok := r.aliases[AliasKey(endpoint)]; ok {
		endpoint = alias
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	params := Params(knobs)
	start := time.Now()
	text, err := t.Call(callCtx, endpoint, prompt, params)
	r.log.Debug().
		Str("provider", provider).
		Str("endpoint", endpoint).
		Dur("elapsed", time.Since(start)).
		Int("promptLen", len(prompt)).
		Err(err).
		Msg("model invoked")
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return "", &InvocationError{Provider: provider, Endpoint: endpoint, Timeout: timedOut, Err: err}
	}
	return text, nil
}
