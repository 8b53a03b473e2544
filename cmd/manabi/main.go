package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/manabi/pkg/etcd"
	"github.com/tzrikka/manabi/pkg/http"
	"github.com/tzrikka/manabi/pkg/installations"
	"github.com/tzrikka/manabi/pkg/oauth"
	"github.com/tzrikka/manabi/pkg/otel"
	"github.com/tzrikka/manabi/pkg/thrippy"
	"github.com/tzrikka/xdg"
)

const (
	ConfigDirName  = "manabi"
	ConfigFileName = "config.toml"
)

func main() {
	buildInfo, _ := debug.ReadBuildInfo()
	configFilePath := configFile()

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "simple setup, but unsafe for production",
		},
	}
	flags = append(flags, http.Flags(configFilePath)...)
	flags = append(flags, oauth.Flags(configFilePath)...)
	flags = append(flags, installations.Flags(configFilePath)...)
	flags = append(flags, etcd.Flags(configFilePath)...)
	flags = append(flags, thrippy.Flags(configFilePath)...)
	flags = append(flags, otel.Flags(configFilePath)...)

	cmd := &cli.Command{
		Name:    "manabi",
		Usage:   "Interactive tutorial of the Slack platform's features, as a Slack app",
		Version: buildInfo.Main.Version,
		Flags:   flags,
		Action:  http.Start,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// configFile returns the path to the app's configuration file.
// It also creates an empty file if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, ConfigDirName, ConfigFileName)
	if err != nil {
		log.Fatal().Err(err).Caller().Send()
	}
	return altsrc.StringSourcer(path)
}
