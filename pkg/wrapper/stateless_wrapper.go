package wrapper

import (
	"context"

	"github.com/checkmarxDev/chatbot-worker/internal/invoker"
	"github.com/checkmarxDev/chatbot-worker/pkg/message"
	"github.com/checkmarxDev/chatbot-worker/pkg/prompt"
)

// AssembleFunc builds the model input. prompt.Assemble is the default.
type AssembleFunc func(history []message.Turn, text string, attachmentURLs []string) string

type Generation struct {
	Prompt         string
	Response       string
	AttachmentURLs []string
}

// StatelessWrapper answers a new user turn given a history it does not own.
type StatelessWrapper interface {
	Call(ctx context.Context, history []message.Turn, data message.RequestData) (*Generation, error)
}

type StatelessWrapperImpl struct {
	invoker  invoker.Invoker
	signer   prompt.Signer
	assemble AssembleFunc
}

func NewStatelessWrapper(inv invoker.Invoker, signer prompt.Signer, assemble AssembleFunc) StatelessWrapper {
	if assemble == nil {
		assemble = prompt.Assemble
	}
	return &StatelessWrapperImpl{
		invoker:  inv,
		signer:   signer,
		assemble: assemble,
	}
}

func (w *StatelessWrapperImpl) Call(ctx context.Context, history []message.Turn, data message.RequestData) (*Generation, error) {
	urls, err := prompt.ResolveAttachments(ctx, w.signer, data.Attachments, data.ImageURL)
	if err != nil {
		return nil, err
	}

	input := w.assemble(history, data.Text, urls)

	response, err := w.invoker.Invoke(ctx, data.Provider, data.ModelName, input, data.ModelKwargs)
	if err != nil {
		return nil, err
	}

	return &Generation{
		Prompt:         input,
		Response:       response,
		AttachmentURLs: urls,
	}, nil
}
