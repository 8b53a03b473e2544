// Package listeners implements the tutorial's Slack request handlers,
// and registers them in a [dispatch.Router].
package listeners

import (
	"context"
	"errors"
	"regexp"

	"github.com/slack-go/slack/slackevents"

	"github.com/tzrikka/manabi/pkg/dispatch"
	"github.com/tzrikka/manabi/pkg/tutorial"
)

var (
	pageTransitionPattern = regexp.MustCompile(`^` + tutorial.PageTransitionActionID + `\d+$`)
	starButtonPattern     = regexp.MustCompile(`^` + tutorial.StarButtonActionID + `\d$`)
)

var errMissingInteraction = errors.New("request is not an interaction")

// Listeners handles Slack requests with the tutorial's content, in a single language.
type Listeners struct {
	content *tutorial.Content
}

// Register adds all the tutorial's listeners to the router.
func Register(r *dispatch.Router, c *tutorial.Content) *Listeners {
	l := &Listeners{content: c}

	// Installation message.
	r.Action(tutorial.LinkButtonActionID, dispatch.Ack)
	r.Action(tutorial.MultiUsersSelectActionID, dispatch.Ack, l.usersSelected)

	// Home tab.
	r.Event(string(slackevents.AppHomeOpened), dispatch.Ack, l.appHomeOpened)
	r.ActionPattern(pageTransitionPattern, dispatch.Ack, l.pageTransition)

	// Page 1.
	r.ActionPattern(starButtonPattern, dispatch.Ack, l.openStarModal)
	r.Action(tutorial.UsersSelectActionID, dispatch.Ack, l.openUserSelectedModal)

	// Page 2.
	r.Action(tutorial.TaskModalActionID, dispatch.Ack, l.openTaskModal)
	r.View(tutorial.TaskSubmissionCallbackID, l.submitTask)

	// Page 3.
	r.Options(tutorial.ExternalSelectActionID, l.options)
	r.Action(tutorial.ExternalSelectActionID, dispatch.Ack)

	// Page 4.
	r.Action(tutorial.CreateChannelActionID, dispatch.Ack, l.openChannelModal)
	r.View(tutorial.ChannelSubmissionCallbackID, l.createChannel)
	r.Event(string(slackevents.ChannelCreated), dispatch.Ack, l.welcomeToChannel)

	r.Shortcut(tutorial.GlobalShortcutCallbackID, dispatch.Ack, l.openGlobalShortcutModal)
	r.View(tutorial.GlobalShortcutSubmissionCallbackID, dispatch.Ack, l.globalShortcutFollowUp)
	r.Shortcut(tutorial.MessageShortcutCallbackID, dispatch.Ack, l.openMessageShortcutModal)

	return l
}

func (l *Listeners) usersSelected(ctx context.Context, req *dispatch.Request) error {
	a := req.Action()
	if a == nil {
		return errors.New("missing block action")
	}
	return dispatch.Respond(ctx, req, l.content.UsersSelected(a.SelectedUsers), false)
}
