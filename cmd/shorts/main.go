/*
DESCRIPTION
  shorts generates short videos from stock footage for configured YouTube
  channels and uploads them, once or on a schedule.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This file is part of Ocean Shorts. Ocean Shorts is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Ocean Shorts is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see <http://www.gnu.org/licenses/>.
*/

// Shorts is a YouTube Shorts automation tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ausocean/openfish/datastore"
	"github.com/ausocean/utils/logging"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/shorts/automation"
	"github.com/ausocean/shorts/channel"
	"github.com/ausocean/shorts/config"
	"github.com/ausocean/shorts/gauth"
	"github.com/ausocean/shorts/model"
	"github.com/ausocean/shorts/notify"
	"github.com/ausocean/shorts/pexels"
	"github.com/ausocean/shorts/script"
	"github.com/ausocean/shorts/video"
)

const (
	projectID = "shorts"
	version   = "v0.1.0"
)

// Logging configuration.
const (
	logMaxSize   = 50 // MB
	logMaxBackup = 10
	logMaxAge    = 30 // days
	logSuppress  = false
)

// Flag defaults.
const (
	defaultConfig      = "config.yaml"
	defaultChannels    = "config/channels.json"
	defaultCredentials = "credentials"
)

// Secret keys read from the secrets file.
const jwtSecretKey = "jwtSecret"

var registerOnce sync.Once

func main() {
	err := newCommand().Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", projectID, err)
		os.Exit(1)
	}
}

// newCommand returns the root command.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    projectID,
		Usage:   "Generate short videos and upload them to YouTube channels",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the application config file",
				Value:   defaultConfig,
				Sources: cli.EnvVars("SHORTS_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "channels",
				Usage:   "Path to the channels config file (JSON or YAML)",
				Value:   defaultChannels,
				Sources: cli.EnvVars("SHORTS_CHANNELS"),
			},
			&cli.StringFlag{
				Name:    "credentials-dir",
				Usage:   "Directory or gs:// prefix holding channel credentials",
				Value:   defaultCredentials,
				Sources: cli.EnvVars("SHORTS_CREDENTIALS_DIR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warning, error, fatal); overrides the config",
				Sources: cli.EnvVars("SHORTS_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			scheduleCommand(),
			channelsCommand(),
			authCommand(),
			ciCommand(),
		},
	}
}

// app holds what commands share, set up from the global flags.
type app struct {
	cfg      *config.Config
	log      logging.Logger
	store    datastore.Store
	channels *channel.Manager
	notifier *notify.Notifier
	creds    string // Credentials directory.
}

// setup loads the configuration and creates the logger, datastore,
// channel manager and notifier.
func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		if _, ok := config.Levels[lvl]; !ok {
			return nil, fmt.Errorf("unknown log level %q", lvl)
		}
		cfg.LogLevel = lvl
	}

	a := &app{cfg: cfg, creds: cmd.String("credentials-dir")}
	a.log = newLogger(cfg)

	a.store, err = model.NewStore(ctx, cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("could not set up datastore: %w", err)
	}
	registerOnce.Do(model.RegisterEntities)

	a.channels, err = channel.Load(cmd.String("channels"), a.store,
		channel.WithLocation(cfg.Location()),
		channel.WithLogger(a.log),
	)
	if err != nil {
		return nil, err
	}

	a.notifier, err = newNotifier(ctx, cfg, a.store, a.log)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newLogger returns a logger writing to stderr and, if configured, a
// rotated log file.
func newLogger(cfg *config.Config) logging.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not create log directory: %v\n", err)
		} else {
			fileLog := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    logMaxSize,
				MaxBackups: logMaxBackup,
				MaxAge:     logMaxAge,
			}
			w = io.MultiWriter(os.Stderr, fileLog)
		}
	}
	return logging.New(cfg.Level(), w, logSuppress)
}

// newNotifier returns a notifier for the configured recipient. Mail is
// only sent when mail secrets are available; otherwise notifications are
// logged.
func newNotifier(ctx context.Context, cfg *config.Config, store datastore.Store, log logging.Logger) (*notify.Notifier, error) {
	opts := []notify.Option{
		notify.WithLogger(log),
		notify.WithStore(notify.NewTimeStore(store)),
		notify.WithPeriod(cfg.Notify.Period),
	}
	if cfg.Notify.Recipient != "" {
		opts = append(opts, notify.WithRecipient(cfg.Notify.Recipient))
	}
	secrets, err := gauth.GetSecrets(ctx, projectID, nil)
	switch {
	case errors.Is(err, gauth.ErrNoSecrets):
		log.Debug("no secrets configured, notifications will only be logged")
	case err != nil:
		log.Warning("could not get secrets", "error", err)
	case secrets["mailjetPublicKey"] == "":
		log.Debug("no mail secrets, notifications will only be logged")
	default:
		opts = append(opts, notify.WithSecrets(secrets))
	}
	n, err := notify.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not set up notifier: %w", err)
	}
	return n, nil
}

// runner returns the generate and upload runner.
func (a *app) runner() (*automation.Runner, error) {
	w, err := script.New(a.cfg.LLMProvider, a.log)
	if err != nil {
		return nil, err
	}
	if len(a.cfg.PexelsAPIKeys) == 0 {
		a.log.Warning("no Pexels API key configured", "env", config.APIKeyEnv)
	}
	return &automation.Runner{
		Channels: a.channels,
		Generator: &video.Pipeline{
			Writer:  w,
			Source:  pexels.NewClient(a.cfg.PexelsAPIKeys, a.log),
			WorkDir: a.cfg.WorkDir,
			FFmpeg:  a.cfg.FFmpegPath,
			Log:     a.log,
		},
		Uploader: &automation.YouTube{Dir: a.creds, Log: a.log},
		Log:      a.log,
		Notifier: a.notifier,
	}, nil
}

// jwtSecret returns the secret for API tokens, or nil if none is
// configured.
func (a *app) jwtSecret(ctx context.Context) []byte {
	secret, err := gauth.GetHexSecret(ctx, projectID, jwtSecretKey)
	if err != nil {
		a.log.Debug("no JWT secret", "error", err)
		return nil
	}
	return secret
}
