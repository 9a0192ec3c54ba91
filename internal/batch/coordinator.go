package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/checkmarxDev/chatbot-worker/internal/invoker"
	"github.com/checkmarxDev/chatbot-worker/internal/notify"
	"github.com/checkmarxDev/chatbot-worker/internal/secrets"
	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

// Runner executes a decoded run request end to end.
type Runner interface {
	Run(ctx context.Context, requestID string, env message.RequestEnvelope) error
}

// Coordinator processes a batch record by record. A record failing never
// stops the others, and every failed record gets one error notification.
type Coordinator struct {
	runner      Runner
	publisher   notify.Publisher
	log         zerolog.Logger
	concurrency int
	retry       RetryPolicy
	newID       func(messageID string) string
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

type Option func(*Coordinator)

var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("chatbot-worker/session"))

// SessionIDFor names the session opened by a request that came without one.
// It is derived from the queue message id, so a redelivered message lands in
// the same session.
func SessionIDFor(messageID string) string {
	if messageID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(sessionNamespace, []byte(messageID)).String()
}

// WithConcurrency bounds how many records are dispatched at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithRetry(p RetryPolicy) Option {
	return func(c *Coordinator) { c.retry = p }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

func NewCoordinator(runner Runner, publisher notify.Publisher, opts ...Option) *Coordinator {
	c := &Coordinator{
		runner:      runner,
		publisher:   publisher,
		log:         zerolog.Nop(),
		concurrency: 1,
		retry:       NoRetry(),
		newID:       SessionIDFor,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process dispatches every record, partitions the outcomes and reports the
// failures to their clients.
func (c *Coordinator) Process(ctx context.Context, records []Record) Report {
	report := Report{Outcomes: c.dispatch(ctx, records)}

	failed := report.Failures()
	c.log.Info().
		Int("records", len(records)).
		Int("failed", len(failed)).
		Msg("batch processed")

	for _, o := range failed {
		c.reportFailure(ctx, o)
	}
	return report
}

func (c *Coordinator) dispatch(ctx context.Context, records []Record) []Outcome {
	outcomes := make([]Outcome, len(records))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for i, rec := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rec Record) {
			defer wg.Done()
			defer func() { <-sem }()

			err := c.handle(ctx, rec)
			o := Outcome{MessageID: rec.MessageID, Status: StatusSuccess, Record: rec}
			if err != nil {
				o.Status = StatusFailure
				o.Err = err
			}
			outcomes[i] = o
		}(i, rec)
	}
	wg.Wait()
	return outcomes
}

func (c *Coordinator) handle(ctx context.Context, rec Record) (err error) {
	log := c.log.With().Str("messageId", rec.MessageID).Logger()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("record handler panicked: %v", r)
		}
		if err != nil {
			log.Error().Err(err).Msg("record failed")
		}
	}()

	env, err := message.DecodeRecord(rec.Body)
	if err != nil {
		return err
	}

	switch env.Action {
	case message.ActionRun:
		if env.Data.SessionID == "" {
			env.Data.SessionID = c.newID(rec.MessageID)
		}
		log = log.With().
			Str("connectionId", env.ConnectionID).
			Str("sessionId", env.Data.SessionID).
			Logger()
		log.Info().
			Str("provider", env.Data.Provider).
			Str("model", env.Data.ModelName).
			Int("attachments", len(env.Data.Attachments)).
			Str("text", secrets.Mask(env.Data.Text)).
			Msg("run request")
		return c.run(ctx, log, rec.MessageID, env)
	default:
		log.Debug().Str("action", env.ActionName).Msg("ignoring action")
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context, log zerolog.Logger, requestID string, env message.RequestEnvelope) error {
	attempts := c.retry.attempts()
	for attempt := 1; ; attempt++ {
		err := c.runner.Run(ctx, requestID, env)
		if err == nil {
			return nil
		}
		var invErr *invoker.InvocationError
		if !errors.As(err, &invErr) || attempt >= attempts {
			return err
		}
		wait := c.retry.delay(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("retryIn", wait).Msg("model invocation failed, retrying")
		if serr := c.sleep(ctx, wait); serr != nil {
			return err
		}
	}
}

// reportFailure tells the client its request failed. It reads the original
// body defensively and never fails itself.
func (c *Coordinator) reportFailure(ctx context.Context, o Outcome) {
	addr := message.SalvageRecord(o.Record.Body)
	content := "request failed"
	if o.Err != nil {
		content = o.Err.Error()
	}
	event := notify.NewError(addr.ConnectionID, addr.UserID, addr.SessionID, content, c.now())

	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("messageId", o.MessageID).Interface("panic", r).Msg("error notification panicked")
		}
	}()
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.log.Error().Err(err).
			Str("messageId", o.MessageID).
			Str("connectionId", addr.ConnectionID).
			Msg("error notification not delivered")
	}
}
