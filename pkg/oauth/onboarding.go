package oauth

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/tzrikka/manabi/pkg/tutorial"
)

// Onboarding returns a [SuccessFunc] which welcomes the installing user with
// a DM, in the language of the install page, and then redirects to the app
// in the Slack client. Slack API errors are rendered as failure pages.
func Onboarding(loc *time.Location) SuccessFunc {
	return func(w http.ResponseWriter, r *http.Request, args SuccessArgs) {
		ctx := r.Context()
		i := args.Installation

		msg := tutorial.NewContent(args.Catalog, loc).InstallationMessage(i.AppID, i.UserID)
		if _, _, err := args.Client.PostMessageContext(ctx, i.UserID, msg.MsgOptions()...); err != nil {
			zerolog.Ctx(ctx).Err(err).Str("user_id", i.UserID).Msg("failed to send installation message")

			reason := "internal_error"
			var resp slack.SlackErrorResponse
			if errors.As(err, &resp) {
				reason = resp.Err
			}

			DefaultFailure(w, r, FailureArgs{
				Reason:      reason,
				StatusCode:  http.StatusInternalServerError,
				Catalog:     args.Catalog,
				InstallPath: args.InstallPath,
			})
			return
		}

		DefaultSuccess(w, r, args)
	}
}
