package installations

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/manabi/pkg/etcd"
)

const (
	BackendSQLite = "sqlite"
	BackendEtcd   = "etcd"

	DefaultDBFileName = "installations.db"
)

// Flags defines CLI flags to configure the installation and OAuth state stores. These flags
// can also be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "installation-store",
			Usage: fmt.Sprintf("installation and OAuth state storage backend (%q or %q)", BackendSQLite, BackendEtcd),
			Value: BackendSQLite,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_INSTALLATION_STORE"),
				toml.TOML("installations.store", configFilePath),
			),
			Validator: func(s string) error {
				if s != BackendSQLite && s != BackendEtcd {
					return fmt.Errorf("unsupported installation store: %q", s)
				}
				return nil
			},
		},
		&cli.StringFlag{
			Name:  "sqlite-dsn",
			Usage: "SQLite database file path or DSN",
			Value: filepath.Join(filepath.Dir(string(configFilePath)), DefaultDBFileName),
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_SQLITE_DSN"),
				toml.TOML("installations.sqlite_dsn", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "etcd-key-prefix",
			Usage: "root of all the etcd keys of this app",
			Value: DefaultEtcdPrefix,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_ETCD_KEY_PREFIX"),
				toml.TOML("installations.etcd_key_prefix", configFilePath),
			),
		},
		&cli.DurationFlag{
			Name:  "installation-cache-ttl",
			Usage: "how long to memoize installation lookups in memory",
			Value: DefaultCacheTTL,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MANABI_INSTALLATION_CACHE_TTL"),
				toml.TOML("installations.cache_ttl", configFilePath),
			),
		},
	}
}

// Open initializes the configured storage backend, wrapped with a memoizing cache.
// The returned closer releases the backend's resources (database or client connection).
func Open(ctx context.Context, cmd *cli.Command, stateExpiration time.Duration) (Store, StateStore, io.Closer, error) {
	var (
		store  Store
		states StateStore
		closer io.Closer
	)

	switch cmd.String("installation-store") {
	case BackendEtcd:
		c, err := etcd.NewClient(cmd)
		if err != nil {
			return nil, nil, nil, err
		}
		s := NewEtcdStore(c, cmd.String("etcd-key-prefix"), stateExpiration)
		store, states, closer = s, s, c

	default:
		s, err := OpenSQLite(ctx, cmd.String("sqlite-dsn"), stateExpiration)
		if err != nil {
			return nil, nil, nil, err
		}
		store, states, closer = s, s, s
	}

	cached, err := NewCacheableStore(store, cmd.Duration("installation-cache-ttl"))
	if err != nil {
		_ = closer.Close()
		return nil, nil, nil, err
	}

	return cached, states, closer, nil
}
