package etcd

import (
	"fmt"

	"github.com/urfave/cli/v3"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// NewClient creates an etcd client based on the CLI flags defined in [Flags].
// The caller is responsible for closing the returned client.
func NewClient(cmd *cli.Command) (*clientv3.Client, error) {
	c, err := clientv3.New(config(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return c, nil
}

func config(cmd *cli.Command) clientv3.Config {
	return clientv3.Config{
		Endpoints:   cmd.StringSlice("etcd-endpoint-urls"),
		DialTimeout: cmd.Duration("etcd-dial-timeout"),
		Username:    cmd.String("etcd-username"),
		Password:    cmd.String("etcd-password"),
	}
}
