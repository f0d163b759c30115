package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/delaneyj/bindparty/pkg/config"
	"github.com/delaneyj/bindparty/pkg/logging"
)

const (
	configKey   = "config"
	logLevelKey = "log-level"
)

func main() {
	cmd := &cli.Command{
		Name:  "bindparty",
		Usage: "Bindings and refreshable UI on a text page",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configKey,
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.StringFlag{
				Name:  logLevelKey,
				Usage: "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "demo",
				Usage:  "Run a scripted session and print every delivered frame",
				Action: demo,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: printConfig,
			},
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String(configKey))
	if err != nil {
		return cfg, err
	}
	if lvl := cmd.String(logLevelKey); lvl != "" {
		cfg.Log.Level = lvl
		if err := config.Validate(cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(
		logging.WithFormat(logging.Format(cfg.Log.Format)),
		logging.WithLevel(level),
	), nil
}

func printConfig(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
