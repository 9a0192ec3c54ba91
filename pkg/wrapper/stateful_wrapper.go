package wrapper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/checkmarxDev/chatbot-worker/internal/notify"
	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

// Recorder reads a session and appends one exchange to it.
type Recorder interface {
	Recorded(ctx context.Context, requestID string, key message.Key) (string, bool, error)
	History(ctx context.Context, key message.Key) ([]message.Turn, error)
	Record(ctx context.Context, requestID string, key message.Key, userText, assistantText string, metadata map[string]any) error
}

// StatefulWrapper runs one request: history, generation, record, notify.
type StatefulWrapper struct {
	recorder  Recorder
	stateless StatelessWrapper
	publisher notify.Publisher
	now       func() time.Time
	log       zerolog.Logger
}

func NewStatefulWrapper(recorder Recorder, stateless StatelessWrapper, publisher notify.Publisher, log zerolog.Logger) *StatefulWrapper {
	return &StatefulWrapper{
		recorder:  recorder,
		stateless: stateless,
		publisher: publisher,
		now:       time.Now,
		log:       log,
	}
}

var errNoSession = errors.New("run request has no session id")

// Run handles a run request whose session id is already set. Nothing is
// written unless the model call succeeded. A request that was already recorded
// is answered with the stored reply and the model is not called again. A
// failed notification is logged and does not fail the run.
func (w *StatefulWrapper) Run(ctx context.Context, requestID string, env message.RequestEnvelope) error {
	if env.Data.SessionID == "" {
		return errNoSession
	}
	key := env.Key()

	stored, recorded, err := w.recorder.Recorded(ctx, requestID, key)
	if err != nil {
		return err
	}
	if recorded {
		w.log.Info().
			Str("connectionId", env.ConnectionID).
			Str("sessionId", key.SessionID).
			Msg("request already recorded, resending stored answer")
		w.notify(ctx, env, key, stored)
		return nil
	}

	history, err := w.recorder.History(ctx, key)
	if err != nil {
		return err
	}

	gen, err := w.stateless.Call(ctx, history, env.Data)
	if err != nil {
		return err
	}

	if err := w.recorder.Record(ctx, requestID, key, env.Data.Text, gen.Response, metadata(env)); err != nil {
		return err
	}

	w.notify(ctx, env, key, gen.Response)
	return nil
}

func (w *StatefulWrapper) notify(ctx context.Context, env message.RequestEnvelope, key message.Key, content string) {
	event := notify.NewFinalResponse(env.ConnectionID, env.UserID, key.SessionID, content, w.now())
	if err := w.publisher.Publish(ctx, event); err != nil {
		w.log.Error().Err(err).
			Str("connectionId", env.ConnectionID).
			Str("sessionId", key.SessionID).
			Msg("final response not delivered")
	}
}

func metadata(env message.RequestEnvelope) map[string]any {
	files := make([]string, 0, len(env.Data.Attachments))
	for _, a := range env.Data.Attachments {
		files = append(files, a.Key)
	}
	kwargs := env.Data.ModelKwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	meta := map[string]any{
		"modelId":     env.Data.ModelName,
		"provider":    env.Data.Provider,
		"modelKwargs": kwargs,
		"mode":        env.Data.Mode,
		"sessionId":   env.Data.SessionID,
		"userId":      env.UserID,
		"files":       files,
	}
	if env.Data.ImageURL != "" {
		meta["imageUrl"] = env.Data.ImageURL
	}
	return meta
}
