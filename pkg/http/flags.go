package http

import (
	"fmt"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/manabi/pkg/tutorial"
)

const (
	DefaultPort       = 3000
	DefaultEventsPath = "/slack/events"
)

// Flags defines CLI flags to configure the HTTP server and the Slack app's credentials. These
// flags can also be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Usage: "local port number for the HTTP server",
			Value: DefaultPort,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("PORT"),
				toml.TOML("http.port", configFilePath),
			),
			Validator: validatePort,
		},
		&cli.StringFlag{
			Name:  "events-path",
			Usage: "URL path of Slack's Events API and interactivity requests",
			Value: DefaultEventsPath,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_EVENTS_PATH"),
				toml.TOML("http.events_path", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-signing-secret",
			Usage: "Slack app's signing secret, to verify incoming HTTP requests",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_SIGNING_SECRET"),
				toml.TOML("slack.signing_secret", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-bot-token",
			Usage: "Slack bot token (single-workspace mode, instead of OAuth installations)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_BOT_TOKEN"),
				toml.TOML("slack.bot_token", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "slack-app-token",
			Usage: "Slack app-level token (Socket Mode only)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SLACK_APP_TOKEN"),
				toml.TOML("slack.app_token", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "socket-mode",
			Usage: "receive Slack requests over a WebSocket connection instead of HTTP",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_SOCKET_MODE"),
				toml.TOML("slack.socket_mode", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "process-before-response",
			Usage: "complete all request processing before responding (e.g. in FaaS environments)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_PROCESS_BEFORE_RESPONSE"),
				toml.TOML("slack.process_before_response", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "lang",
			Usage: "language of the tutorial's Slack content",
			Value: tutorial.DefaultLanguage.String(),
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_LANG"),
				toml.TOML("tutorial.lang", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "timezone",
			Usage: "IANA time zone of timestamps and dates in the tutorial",
			Value: tutorial.DefaultTimeZone,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_TIMEZONE"),
				toml.TOML("tutorial.timezone", configFilePath),
			),
		},
	}
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d", port)
	}
	return nil
}
