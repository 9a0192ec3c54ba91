package prompt

import (
	"context"
	"fmt"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

// Signer turns an object key into a time-limited URL.
type Signer interface {
	SignedURL(ctx context.Context, key string) (string, error)
}

// ResolveAttachments signs every attachment key, keeping order. A legacy image
// URL, already dereferenceable, goes last.
func ResolveAttachments(ctx context.Context, signer Signer, refs []message.AttachmentRef, legacyURL string) ([]string, error) {
	urls := make([]string, 0, len(refs)+1)
	if len(refs) > 0 && signer == nil {
		return nil, fmt.Errorf("attachments present but no signer configured")
	}
	for _, ref := range refs {
		u, err := signer.SignedURL(ctx, ref.Key)
		if err != nil {
			return nil, fmt.Errorf("sign attachment %q: %w", ref.Key, err)
		}
		urls = append(urls, u)
	}
	if legacyURL != "" {
		urls = append(urls, legacyURL)
	}
	return urls, nil
}
