package prompt

import (
	"strings"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
	"github.com/checkmarxDev/chatbot-worker/pkg/role"
)

const (
	UserPrefix      = "User:"
	AssistantPrefix = "Assistant:"

	// EndOfUtterance closes the user turn. Followed by AssistantOpener on its
	// own line so the model continues as the assistant.
	EndOfUtterance  = "<end_of_utterance>"
	AssistantOpener = AssistantPrefix
)

// Assemble renders history, attachments and the new user text into the model
// input. The result only depends on its arguments.
//
//	User:hi
//	Assistant:hello
//	User:![](https://bucket/cat.png)
//	User:what is this?
//	<end_of_utterance>
//	Assistant:
func Assemble(history []message.Turn, text string, attachmentURLs []string) string {
	lines := make([]string, 0, len(history)+len(attachmentURLs)+3)
	for _, t := range history {
		switch t.Role {
		case role.Human:
			lines = append(lines, UserPrefix+t.Content)
		case role.AI:
			lines = append(lines, AssistantPrefix+t.Content)
		}
	}
	for _, u := range attachmentURLs {
		lines = append(lines, UserPrefix+Image(u))
	}
	lines = append(lines, UserPrefix+text, EndOfUtterance, AssistantOpener)
	return strings.Join(lines, "\n")
}

// Image renders a dereferenceable URL as an inline image reference.
func Image(url string) string {
	return "![](" + url + ")"
}
