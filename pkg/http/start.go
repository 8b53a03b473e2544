package http

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/slack-go/slack"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/manabi/pkg/dispatch"
	"github.com/tzrikka/manabi/pkg/installations"
	"github.com/tzrikka/manabi/pkg/listeners"
	"github.com/tzrikka/manabi/pkg/oauth"
	"github.com/tzrikka/manabi/pkg/otel"
	"github.com/tzrikka/manabi/pkg/socketmode"
	"github.com/tzrikka/manabi/pkg/thrippy"
	"github.com/tzrikka/manabi/pkg/tutorial"
)

// Start initializes Manabi's logging, tracing, credentials, installation
// storage, and Slack listeners, and then receives Slack requests over HTTP
// or in Socket Mode. This is blocking, to keep the Manabi server running.
func Start(ctx context.Context, cmd *cli.Command) error {
	devMode := cmd.Bool("dev")
	initLog(devMode)

	shutdown, err := otel.SetupFromFlags(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Err(err).Msg("failed to shut down tracing")
		}
	}()

	secrets, err := slackSecrets(ctx, cmd)
	if err != nil {
		log.Err(err).Msg("failed to read Slack credentials")
		return err
	}

	bundle, loc, err := tutorialContent(cmd)
	if err != nil {
		log.Err(err).Msg("failed to load tutorial content")
		return err
	}

	settings := oauth.SettingsFromFlags(cmd)
	if err := checkMode(settings.Enabled(), secrets.botToken); err != nil {
		log.Err(err).Send()
		return err
	}

	var (
		auth dispatch.Authorizer
		flow *oauth.Flow
	)
	if settings.Enabled() {
		store, states, closer, err := installations.Open(ctx, cmd, settings.StateExpiration)
		if err != nil {
			log.Err(err).Msg("failed to initialize installation store")
			return err
		}
		defer closer.Close()

		flow, err = oauth.NewFlow(settings, store, states, bundle, oauth.WithSuccess(oauth.Onboarding(loc)))
		if err != nil {
			log.Err(err).Msg("failed to initialize OAuth flow")
			return err
		}
		auth = dispatch.NewInstallationAuthorizer(store)
	} else {
		auth = dispatch.NewStaticAuthorizer(secrets.botToken)
	}

	r := dispatch.NewRouter(auth, dispatch.WithProcessBeforeResponse(cmd.Bool("process-before-response")))
	listeners.Register(r, tutorial.NewContent(bundle.Lookup(cmd.String("lang")), loc))
	defer r.Wait()

	s := &httpServer{
		port:          cmd.Int("port"),
		eventsPath:    cmd.String("events-path"),
		signingSecret: secrets.signingSecret,
		devMode:       devMode,
		socketMode:    cmd.Bool("socket-mode"),
		router:        r,
		flow:          flow,
		now:           time.Now,
	}
	if !s.socketMode {
		return s.run()
	}

	return runSocketMode(ctx, s, secrets.appToken, socketmode.Run)
}

type socketModeRunner func(ctx context.Context, appToken string, r *dispatch.Router, opts ...slack.Option) error

// runSocketMode receives Slack requests in Socket Mode. OAuth installations
// still require HTTP routes, so if they're enabled the HTTP server runs too,
// and a failure of either one stops both.
func runSocketMode(ctx context.Context, s *httpServer, appToken string, run socketModeRunner) error {
	if s.flow == nil {
		return run(ctx, appToken, s.router)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go func() {
		if err := s.run(); err != nil {
			cancel(err)
		}
	}()

	if err := run(ctx, appToken, s.router); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return err
	}
	return nil
}

// initLog initializes the logger for the Manabi server,
// based on whether it's running in development mode or not.
func initLog(devMode bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.DefaultContextLogger = &log.Logger

	if !devMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05.000",
	}).With().Caller().Logger()

	log.Warn().Msg("********** DEV MODE - UNSAFE IN PRODUCTION! **********")
}

type secrets struct {
	signingSecret string
	botToken      string
	appToken      string
}

// slackSecrets returns the Slack app's credentials from CLI flags, with
// unset values filled in from a Thrippy link (if one is configured).
func slackSecrets(ctx context.Context, cmd *cli.Command) (secrets, error) {
	s := secrets{
		signingSecret: cmd.String("slack-signing-secret"),
		botToken:      cmd.String("slack-bot-token"),
		appToken:      cmd.String("slack-app-token"),
	}

	m, err := thrippy.SlackSecrets(ctx, cmd)
	if err != nil {
		return s, err
	}
	fillIn(&s.signingSecret, m["signing_secret"])
	fillIn(&s.botToken, m["bot_token"])
	fillIn(&s.appToken, m["app_token"])

	return s, nil
}

// checkMode ensures that exactly one authorization mode is configured:
// OAuth installations in multiple workspaces, or a single bot token.
func checkMode(oauthEnabled bool, botToken string) error {
	switch {
	case oauthEnabled && botToken != "":
		return errors.New("OAuth installations and a single bot token are mutually exclusive")
	case !oauthEnabled && botToken == "":
		return errors.New("either OAuth installations (client ID and secret) or a single bot token is required")
	default:
		return nil
	}
}

func fillIn(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// tutorialContent loads the localized content catalogs, and the configured time zone.
func tutorialContent(cmd *cli.Command) (*tutorial.Bundle, *time.Location, error) {
	bundle, err := tutorial.LoadEmbedded()
	if err != nil {
		return nil, nil, err
	}

	tz := cmd.String("timezone")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid time zone %q: %w", tz, err)
	}

	return bundle, loc, nil
}
