package etcd

import (
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	DefaultEndpoint    = "http://localhost:2379"
	DefaultDialTimeout = 5 * time.Second
)

// Flags defines CLI flags to configure an etcd gRPC client. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "etcd-endpoint-urls",
			Usage: "one or more etcd server endpoint URLs",
			Value: []string{DefaultEndpoint},
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ETCD_ENDPOINTS"),
				toml.TOML("etcd.endpoint_urls", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "etcd-dial-timeout",
			Usage: "timeout for establishing a connection to etcd",
			Value: DefaultDialTimeout,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ETCD_DIAL_TIMEOUT"),
				toml.TOML("etcd.dial_timeout", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "etcd-username",
			Usage: "etcd authentication username (optional)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ETCD_USERNAME"),
				toml.TOML("etcd.username", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "etcd-password",
			Usage: "etcd authentication password (optional)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ETCD_PASSWORD"),
				toml.TOML("etcd.password", configFilePath),
			),
		},
	}
}
