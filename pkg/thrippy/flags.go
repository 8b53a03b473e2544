package thrippy

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	DefaultGRPCAddress = "localhost:14470"
)

// Flags defines CLI flags to configure a Thrippy gRPC client. These flags can also
// be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "thrippy-server-addr",
			Usage: "Thrippy gRPC server address",
			Value: DefaultGRPCAddress,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_ADDR"),
				toml.TOML("thrippy.server_addr", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "thrippy-link-id",
			Usage: "Thrippy link ID of the Slack app's credentials (optional)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_LINK_ID"),
				toml.TOML("thrippy.link_id", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "thrippy-client-cert",
			Usage: "Thrippy gRPC client's public certificate PEM file (mTLS only)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_CLIENT_CERT"),
				toml.TOML("thrippy.client_cert", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-client-key",
			Usage: "Thrippy gRPC client's private key PEM file (mTLS only)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_CLIENT_KEY"),
				toml.TOML("thrippy.client_key", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-server-ca-cert",
			Usage: "Thrippy gRPC server's CA certificate PEM file (both TLS and mTLS)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_CA_CERT"),
				toml.TOML("thrippy.server_ca_cert", configFilePath),
			),
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "thrippy-server-name-override",
			Usage: "Thrippy gRPC server's name override (for testing, both TLS and mTLS)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("THRIPPY_SERVER_NAME_OVERRIDE"),
				toml.TOML("thrippy.server_name_override", configFilePath),
			),
		},
	}
}

// SecureCreds initializes gRPC client credentials, based on CLI flags.
// Errors are logged but not returned. If there are errors, or no TLS
// flags are specified at all, this function falls back to insecure mode.
func SecureCreds(cmd *cli.Command) credentials.TransportCredentials {
	caPath := cmd.String("thrippy-server-ca-cert")
	if caPath == "" {
		return insecureCreds()
	}

	ca, err := os.ReadFile(caPath)
	if err != nil {
		log.Err(err).Str("path", caPath).Msg("failed to read Thrippy server CA cert file")
		return insecureCreds()
	}

	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		log.Error().Str("path", caPath).Msg("failed to parse Thrippy server CA cert file")
		return insecureCreds()
	}

	cfg := &tls.Config{
		RootCAs:    cp,
		ServerName: cmd.String("thrippy-server-name-override"),
		MinVersion: tls.VersionTLS12,
	}

	certPath, keyPath := cmd.String("thrippy-client-cert"), cmd.String("thrippy-client-key")
	if certPath != "" && keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			log.Err(err).Msg("failed to load Thrippy client cert/key pair")
			return insecureCreds()
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return credentials.NewTLS(cfg)
}

func insecureCreds() credentials.TransportCredentials {
	return insecure.NewCredentials()
}

// SlackSecrets returns the Slack app credentials that are stored in the Thrippy link
// which is specified with the "--thrippy-link-id" flag. If this flag isn't set, this
// function returns nothing. A link that doesn't exist, or has no credentials, is an error.
func SlackSecrets(ctx context.Context, cmd *cli.Command) (map[string]string, error) {
	linkID := cmd.String("thrippy-link-id")
	if linkID == "" {
		return nil, nil
	}

	addr := cmd.String("thrippy-server-addr")
	m, err := LinkCredentials(ctx, addr, SecureCreds(cmd), linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to read Thrippy link %q: %w", linkID, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("no credentials found in Thrippy link %q", linkID)
	}

	return m, nil
}
