package oauth

import (
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/manabi/pkg/installations"
)

const (
	DefaultInstallPath  = "/slack/install"
	DefaultRedirectPath = "/slack/oauth_redirect"
	DefaultAuthorizeURL = "https://slack.com/oauth/v2/authorize"
)

// Flags defines CLI flags to configure Slack's OAuth v2 installation flow. These flags
// can also be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "slack-client-id",
			Usage: "Slack app's client ID (enables OAuth installations)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_CLIENT_ID"),
				toml.TOML("slack.client_id", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-client-secret",
			Usage: "Slack app's client secret",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_CLIENT_SECRET"),
				toml.TOML("slack.client_secret", configFilePath),
			),
		},
		&cli.StringSliceFlag{
			Name:  "slack-scopes",
			Usage: "bot token scopes to request in OAuth installations",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_SCOPES"),
				toml.TOML("slack.scopes", configFilePath),
			),
		},
		&cli.StringSliceFlag{
			Name:  "slack-user-scopes",
			Usage: "user token scopes to request in OAuth installations",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_USER_SCOPES"),
				toml.TOML("slack.user_scopes", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-redirect-uri",
			Usage: "OAuth redirect URI (optional if the Slack app has only one)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_REDIRECT_URI"),
				toml.TOML("slack.redirect_uri", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-install-path",
			Usage: "URL path to start OAuth installations",
			Value: DefaultInstallPath,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_INSTALL_PATH"),
				toml.TOML("slack.install_path", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-redirect-path",
			Usage: "URL path of the OAuth redirect URI",
			Value: DefaultRedirectPath,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_REDIRECT_URI_PATH"),
				toml.TOML("slack.redirect_path", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "oauth-state-expiration",
			Usage: "lifetime of OAuth state parameters",
			Value: installations.DefaultStateExpiration,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_OAUTH_STATE_EXPIRATION"),
				toml.TOML("slack.state_expiration", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "install-page",
			Usage: `render an "Add to Slack" page instead of redirecting to Slack`,
			Value: true,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_INSTALL_PAGE"),
				toml.TOML("slack.install_page", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-authorize-url",
			Usage: "Slack's OAuth v2 authorization URL",
			Value: DefaultAuthorizeURL,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_AUTHORIZE_URL"),
				toml.TOML("slack.authorize_url", configFilePath),
			),
		},
	}
}

// SettingsFromFlags collects the OAuth flow's settings from CLI flags.
func SettingsFromFlags(cmd *cli.Command) Settings {
	return Settings{
		ClientID:          cmd.String("slack-client-id"),
		ClientSecret:      cmd.String("slack-client-secret"),
		Scopes:            cmd.StringSlice("slack-scopes"),
		UserScopes:        cmd.StringSlice("slack-user-scopes"),
		RedirectURI:       cmd.String("slack-redirect-uri"),
		InstallPath:       cmd.String("slack-install-path"),
		RedirectPath:      cmd.String("slack-redirect-path"),
		StateExpiration:   cmd.Duration("oauth-state-expiration"),
		RenderInstallPage: cmd.Bool("install-page"),
		AuthorizeURL:      cmd.String("slack-authorize-url"),
	}
}

// Enabled reports whether OAuth installations are configured.
func (s Settings) Enabled() bool {
	return s.ClientID != "" || s.ClientSecret != ""
}

func (s Settings) stateMaxAge() time.Duration {
	if s.StateExpiration <= 0 {
		return installations.DefaultStateExpiration
	}
	return s.StateExpiration
}
