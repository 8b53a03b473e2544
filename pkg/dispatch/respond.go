package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
)

// Respond posts a message to the "response_url" of an interaction request.
// Unless replaceOriginal is true, the message is added after the original one.
func Respond(ctx context.Context, req *Request, text string, replaceOriginal bool) error {
	if req.Interaction == nil || req.Interaction.ResponseURL == "" {
		return errors.New("request has no response URL")
	}

	msg := &slack.WebhookMessage{Text: text, ReplaceOriginal: replaceOriginal}
	if err := slack.PostWebhookContext(ctx, req.Interaction.ResponseURL, msg); err != nil {
		return fmt.Errorf("failed to post to response URL: %w", err)
	}
	return nil
}
