package listeners

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/tzrikka/manabi/pkg/dispatch"
	"github.com/tzrikka/manabi/pkg/tutorial"
)

func (l *Listeners) openChannelModal(ctx context.Context, req *dispatch.Request) error {
	return l.openLoggedModal(ctx, req, l.content.ChannelModal(req.Identity.UserID))
}

// createChannel creates a public channel with the name that the user submitted,
// joins it, and invites the user. Slack API errors are shown in the modal.
func (l *Listeners) createChannel(ctx context.Context, req *dispatch.Request) (any, error) {
	if req.Interaction == nil {
		return nil, errMissingInteraction
	}

	id, err := l.setupChannel(ctx, req, tutorial.ChannelName(req.Interaction.View.State))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to create channel")
		return slack.NewErrorsViewSubmissionResponse(l.content.ChannelErrors(err)), nil
	}

	return slack.NewUpdateViewSubmissionResponse(l.content.ChannelResultModal(id)), nil
}

func (l *Listeners) setupChannel(ctx context.Context, req *dispatch.Request, name string) (string, error) {
	params := slack.CreateConversationParams{ChannelName: name}
	if req.Identity.IsEnterpriseInstall {
		params.TeamID = req.Identity.TeamID
	}

	ch, err := req.Client.CreateConversationContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("conversations.create: %w", err)
	}

	if _, _, _, err := req.Client.JoinConversationContext(ctx, ch.ID); err != nil {
		return "", fmt.Errorf("conversations.join: %w", err)
	}

	if _, err := req.Client.InviteUsersToConversationContext(ctx, ch.ID, req.Identity.UserID); err != nil {
		return "", fmt.Errorf("conversations.invite: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("channel_id", ch.ID).Str("channel_name", name).Msg("created tutorial channel")
	return ch.ID, nil
}

// welcomeToChannel posts instructions in channels created by this app's bot user.
func (l *Listeners) welcomeToChannel(ctx context.Context, req *dispatch.Request) error {
	e, ok := req.Event.InnerEvent.Data.(*slackevents.ChannelCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected channel_created event data: %T", req.Event.InnerEvent.Data)
	}

	if e.Channel.Creator != req.Auth.BotUserID {
		return nil
	}

	if _, _, err := req.Client.PostMessageContext(ctx, e.Channel.ID, l.content.WelcomeMessage().MsgOptions()...); err != nil {
		return fmt.Errorf("failed to post welcome message: %w", err)
	}
	return nil
}
