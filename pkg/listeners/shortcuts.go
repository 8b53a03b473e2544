package listeners

import (
	"context"
	"errors"
	"fmt"

	"github.com/tzrikka/manabi/pkg/dispatch"
	"github.com/tzrikka/manabi/pkg/tutorial"
)

func (l *Listeners) openGlobalShortcutModal(ctx context.Context, req *dispatch.Request) error {
	return l.openModal(ctx, req, l.content.GlobalShortcutModal())
}

func (l *Listeners) globalShortcutFollowUp(ctx context.Context, req *dispatch.Request) error {
	if req.Interaction == nil {
		return errMissingInteraction
	}

	// The message shortcut's modal has the same callback ID, but no input.
	channelID := tutorial.SelectedConversation(req.Interaction.View.State)
	if channelID == "" {
		return nil
	}

	if _, _, err := req.Client.PostMessageContext(ctx, channelID, l.content.GlobalShortcutFollowUp().MsgOptions()...); err != nil {
		return fmt.Errorf("failed to post global shortcut follow-up: %w", err)
	}
	return nil
}

func (l *Listeners) openMessageShortcutModal(ctx context.Context, req *dispatch.Request) error {
	if err := l.openModal(ctx, req, l.content.MessageShortcutModal()); err != nil {
		return err
	}

	ic := req.Interaction
	appID := ic.APIAppID
	if bp := ic.Message.BotProfile; bp != nil && bp.AppID != "" {
		appID = bp.AppID
	}
	if ic.Channel.ID == "" {
		return errors.New("message shortcut without a channel")
	}

	msg := l.content.MessageShortcutFollowUp(ic.Team.ID, appID)
	if _, _, err := req.Client.PostMessageContext(ctx, ic.Channel.ID, msg.MsgOptions()...); err != nil {
		return fmt.Errorf("failed to post message shortcut follow-up: %w", err)
	}
	return nil
}
