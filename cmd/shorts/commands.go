/*
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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ausocean/shorts/automation"
	"github.com/ausocean/shorts/channel"
	"github.com/ausocean/shorts/ci"
	"github.com/ausocean/shorts/gauth"
	"github.com/ausocean/shorts/youtube"
)

func channelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "channels",
		Usage: "Manage channel configuration",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List configured channels",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tSCHEDULE\tLANGUAGE\tTOPICS\tDAILY LIMIT")
					for _, c := range a.channels.Channels() {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", c.Name, c.Schedule, c.Language, len(c.Topics), c.DailyVideoLimit)
					}
					return tw.Flush()
				},
			},
			{
				Name:  "init",
				Usage: "Write a sample channels file",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.String("channels")
					_, err := os.Stat(path)
					if err == nil && !cmd.Bool("force") {
						return fmt.Errorf("%s exists, use --force to overwrite", path)
					}
					err = channel.WriteSample(path)
					if err != nil {
						return err
					}
					fmt.Printf("wrote sample channels to %s\n", path)
					return nil
				},
			},
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage YouTube channel credentials",
		Commands: []*cli.Command{
			{
				Name:  "setup",
				Usage: "Authorise a channel through the OAuth consent flow",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "channel", Usage: "Channel name", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					name := cmd.String("channel")
					creds := gauth.NewCredentials(a.creds, name, a.log)
					fmt.Printf("Authorising %s; the client secret is read from %s\n", name, creds.ClientSecretPath())
					svc, err := youtube.NewService(ctx, creds, true)
					if err != nil {
						return err
					}
					info, err := youtube.GetChannelInfo(ctx, svc)
					if err != nil {
						return err
					}
					fmt.Printf("Authorised %s as %q (%d subscribers, %d videos)\nToken saved to %s\n",
						name, info.Title, info.Subscribers, info.Videos, creds.TokenPath())
					return nil
				},
			},
			{
				Name:  "verify",
				Usage: "Check stored credentials without prompting",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "channel", Usage: "Channel name; all authenticated channels if empty"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					names := []string{cmd.String("channel")}
					if names[0] == "" {
						chans, err := gauth.ListAuthenticated(a.creds)
						if err != nil {
							return err
						}
						names = names[:0]
						for _, c := range chans {
							names = append(names, c.Name)
						}
					}
					if len(names) == 0 {
						return fmt.Errorf("no authenticated channels in %s", a.creds)
					}

					y := &automation.YouTube{Dir: a.creds, Log: a.log}
					var errs []error
					for _, name := range names {
						info, err := y.Verify(ctx, name)
						if err != nil {
							fmt.Printf("%s: FAILED: %v\n", name, err)
							errs = append(errs, fmt.Errorf("%s: %w", name, err))
							continue
						}
						fmt.Printf("%s: OK: %q (%d subscribers, %d videos)\n", name, info.Title, info.Subscribers, info.Videos)
					}
					return errors.Join(errs...)
				},
			},
			{
				Name:  "list",
				Usage: "List channels with stored credentials",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					chans, err := gauth.ListAuthenticated(cmd.String("credentials-dir"))
					if err != nil {
						return err
					}
					for _, c := range chans {
						status := "ok"
						if !c.HasClientSecret {
							status = "missing client secret"
						}
						fmt.Printf("%s\t%s\n", c.Name, status)
					}
					return nil
				},
			},
			{
				Name:  "token",
				Usage: "Print a bearer token for the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Usage: "Token subject", Value: "operator"},
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime", Value: 24 * time.Hour},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					secret := a.jwtSecret(ctx)
					if secret == nil {
						return fmt.Errorf("no %s in %s_SECRETS", jwtSecretKey, strings.ToUpper(projectID))
					}
					tok, err := gauth.TriggerToken(cmd.String("subject"), cmd.Duration("ttl"), secret)
					if err != nil {
						return err
					}
					fmt.Println(tok)
					return nil
				},
			},
		},
	}
}

func ciCommand() *cli.Command {
	return &cli.Command{
		Name:  "ci",
		Usage: "Run under a hosted CI service",
		Commands: []*cli.Command{
			{
				Name:  "setup",
				Usage: "Write config and credentials from secrets in the environment",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "channel", Usage: "Channel the credentials belong to", Value: ci.DefaultChannel},
					&cli.StringFlag{Name: "root", Usage: "Directory to write below", Value: "."},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					files, err := ci.Materialise(os.LookupEnv, cmd.String("root"), cmd.String("channel"))
					for _, f := range files {
						fmt.Printf("created %s\n", f)
					}
					return err
				},
			},
			{
				Name:  "workflow",
				Usage: "Print the CI workflow definition",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "schedule", Usage: "Five-field cron expression, in UTC", Value: ci.DefaultSchedule},
					&cli.StringFlag{Name: "channel", Usage: "Default channel", Value: ci.DefaultChannel},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to a file instead of stdout"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					b, err := ci.Workflow(ci.WorkflowOptions{
						Schedule: cmd.String("schedule"),
						Channel:  cmd.String("channel"),
					})
					if err != nil {
						return err
					}
					out := cmd.String("output")
					if out == "" {
						_, err = os.Stdout.Write(b)
						return err
					}
					err = os.MkdirAll(filepath.Dir(out), 0755)
					if err != nil {
						return err
					}
					return os.WriteFile(out, b, 0644)
				},
			},
			{
				Name:  "secrets",
				Usage: "List the secrets to register with the CI service",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					err := ci.WriteSecretsTable(os.Stdout)
					if err != nil {
						return err
					}
					if missing := ci.MissingSecrets(os.LookupEnv); len(missing) != 0 {
						fmt.Printf("\nnot set in this environment: %s\n", strings.Join(missing, ", "))
					}
					return nil
				},
			},
		},
	}
}
