package listeners

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/tzrikka/manabi/pkg/dispatch"
	"github.com/tzrikka/manabi/pkg/tutorial"
)

func (l *Listeners) appHomeOpened(ctx context.Context, req *dispatch.Request) error {
	e, ok := req.Event.InnerEvent.Data.(*slackevents.AppHomeOpenedEvent)
	if !ok {
		return fmt.Errorf("unexpected app_home_opened event data: %T", req.Event.InnerEvent.Data)
	}

	// Don't overwrite the page that the user already navigated to.
	if e.Tab != "home" || e.View != nil {
		return nil
	}
	return l.publishPage(ctx, req, 1)
}

func (l *Listeners) pageTransition(ctx context.Context, req *dispatch.Request) error {
	page, err := actionValue(req)
	if err != nil {
		return err
	}
	return l.publishPage(ctx, req, page)
}

func (l *Listeners) publishPage(ctx context.Context, req *dispatch.Request, page int) error {
	_, err := req.Client.PublishViewContext(ctx, slack.PublishViewContextRequest{
		UserID: req.Identity.UserID,
		View:   l.content.HomeView(page),
	})
	if err != nil {
		return fmt.Errorf("failed to publish Home tab page %d: %w", page, err)
	}
	return nil
}

// actionValue parses the numeric value of the request's block action.
func actionValue(req *dispatch.Request) (int, error) {
	a := req.Action()
	if a == nil {
		return 0, errors.New("missing block action")
	}

	n, err := strconv.Atoi(strings.TrimSpace(a.Value))
	if err != nil {
		return 0, fmt.Errorf("invalid action value %q: %w", a.Value, err)
	}
	return n, nil
}

func (l *Listeners) openModal(ctx context.Context, req *dispatch.Request, view slack.ModalViewRequest) error {
	if req.Interaction == nil {
		return errMissingInteraction
	}

	if _, err := req.Client.OpenViewContext(ctx, req.Interaction.TriggerID, view); err != nil {
		return fmt.Errorf("failed to open modal %q: %w", view.CallbackID, err)
	}
	return nil
}

// openLoggedModal is the same as openModal, but also logs the view's JSON,
// for users who want to copy it into Block Kit Builder.
func (l *Listeners) openLoggedModal(ctx context.Context, req *dispatch.Request, view slack.ModalViewRequest) error {
	if b, err := json.Marshal(view); err == nil {
		zerolog.Ctx(ctx).Info().RawJSON("view", b).Msg("opening modal")
	}
	return l.openModal(ctx, req, view)
}

func (l *Listeners) openStarModal(ctx context.Context, req *dispatch.Request) error {
	num, err := actionValue(req)
	if err != nil {
		return err
	}
	return l.openModal(ctx, req, l.content.StarModal(num))
}

func (l *Listeners) openUserSelectedModal(ctx context.Context, req *dispatch.Request) error {
	a := req.Action()
	if a == nil {
		return errors.New("missing block action")
	}
	return l.openModal(ctx, req, l.content.UserSelectedModal(a.SelectedUser))
}

func (l *Listeners) openTaskModal(ctx context.Context, req *dispatch.Request) error {
	return l.openLoggedModal(ctx, req, l.content.TaskModal())
}

func (l *Listeners) submitTask(_ context.Context, req *dispatch.Request) (any, error) {
	if req.Interaction == nil {
		return nil, errMissingInteraction
	}

	form := tutorial.ParseTaskForm(req.Interaction.View.State)
	if errs := l.content.ValidateTask(form); errs != nil {
		return slack.NewErrorsViewSubmissionResponse(errs), nil
	}

	return slack.NewUpdateViewSubmissionResponse(l.content.TaskResultModal(form)), nil
}

func (l *Listeners) options(_ context.Context, req *dispatch.Request) (any, error) {
	if req.Interaction == nil {
		return nil, errMissingInteraction
	}
	return &slack.OptionsResponse{Options: l.content.Options(req.Interaction.Value)}, nil
}
