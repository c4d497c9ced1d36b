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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ausocean/shorts/api"
	"github.com/ausocean/shorts/automation"
	"github.com/ausocean/shorts/channel"
	"github.com/ausocean/shorts/notify"
	"github.com/ausocean/shorts/scheduler"
)

// Task directories older than this are removed by the cleanup job.
const taskRetention = 72 * time.Hour

// shutdownTimeout bounds how long running jobs are waited for on exit.
const shutdownTimeout = 5 * time.Minute

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Generate and upload one video",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Usage: "Channel to run; the first configured channel if empty"},
			&cli.StringFlag{Name: "topic", Usage: "Video topic; picked from the channel topics if empty"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Generate the video without uploading it"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(ctx, cmd)
			if err != nil {
				return err
			}

			if len(a.channels.List()) == 0 {
				a.log.Warning("no channels configured, writing sample", "path", a.channels.Path())
				err = channel.WriteSample(a.channels.Path())
				if err != nil {
					return fmt.Errorf("could not write sample channels: %w", err)
				}
				err = a.channels.Reload()
				if err != nil {
					return err
				}
			}

			name := cmd.String("channel")
			if name == "" {
				name = a.channels.List()[0]
			}
			r, err := a.runner()
			if err != nil {
				return err
			}
			out, err := r.GenerateAndUpload(ctx, name, cmd.String("topic"), cmd.Bool("dry-run"))
			if err != nil {
				a.log.Error("run failed", "channel", name, "error", err)
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Run all channels on their schedules until interrupted",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Generate videos without uploading them"},
			&cli.BoolFlag{Name: "http", Usage: "Serve the HTTP API"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP API listen address; from the config if empty"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			r, err := a.runner()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []scheduler.Option{
				scheduler.WithLocation(a.cfg.Location()),
				scheduler.WithLogger(a.log),
				scheduler.WithNotifier(a.notifier),
			}
			if a.cfg.Latitude != 0 || a.cfg.Longitude != 0 {
				opts = append(opts, scheduler.WithCoordinates(a.cfg.Latitude, a.cfg.Longitude))
			}
			sched := scheduler.New(opts...)

			dryRun := cmd.Bool("dry-run")
			a.installJobs(ctx, sched, r, dryRun)
			err = sched.AddIntervalJob("cleanup", 24*time.Hour, func(ctx context.Context) error {
				n, err := automation.CleanTasks(a.cfg.WorkDir, time.Now().Add(-taskRetention))
				a.log.Info("cleaned task directories", "removed", n)
				return err
			})
			if err != nil {
				return err
			}

			err = scheduler.WatchFile(ctx, a.channels.Path(), func() {
				err := a.channels.Reload()
				if err != nil {
					a.log.Error("could not reload channels", "error", err)
					return
				}
				a.installJobs(ctx, sched, r, dryRun)
			}, a.log)
			if err != nil {
				a.log.Warning("not watching channels file", "error", err)
			}

			var svc *api.Service
			if cmd.Bool("http") {
				addr := cmd.String("addr")
				if addr == "" {
					addr = a.cfg.HTTP.Addr
				}
				svc = &api.Service{
					Name:     projectID,
					Version:  version,
					Runner:   r,
					Channels: a.channels,
					Jobs:     sched,
					Secret:   a.jwtSecret(ctx),
					Log:      a.log,
				}
				app := api.NewApp(ctx, svc)
				go func() {
					a.log.Info("serving HTTP API", "addr", addr)
					err := app.Listen(addr)
					if err != nil {
						a.log.Error("HTTP API stopped", "error", err)
					}
				}()
				defer func() {
					err := app.ShutdownWithTimeout(shutdownTimeout)
					if err != nil {
						a.log.Warning("could not shut down HTTP API", "error", err)
					}
				}()
			}

			sched.Start()
			a.log.Info("scheduler running", "jobs", len(sched.Jobs()), "dry_run", dryRun)
			<-ctx.Done()

			a.log.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = sched.Stop(sctx)
			if err != nil {
				a.log.Warning("jobs still running at shutdown", "error", err)
			}
			if svc != nil {
				svc.Wait()
			}
			return nil
		},
	}
}

// installJobs sets a job for each configured channel and removes jobs of
// channels no longer configured.
func (a *app) installJobs(ctx context.Context, sched *scheduler.Scheduler, r *automation.Runner, dryRun bool) {
	want := make(map[string]bool)
	for _, c := range a.channels.Channels() {
		name := c.Name
		want[scheduler.ChannelPrefix+name] = true
		err := sched.AddChannelJob(name, c.Schedule, func(ctx context.Context) error {
			_, err := r.GenerateAndUpload(ctx, name, "", dryRun)
			if errors.Is(err, automation.ErrRateLimited) {
				a.log.Info("scheduled run skipped", "channel", name, "reason", err.Error())
				return nil
			}
			return err
		})
		if err != nil {
			a.log.Error("could not schedule channel", "channel", name, "error", err)
			nerr := a.notifier.Send(ctx, name, notify.KindSchedule, fmt.Sprintf("could not schedule channel %s: %v", name, err))
			if nerr != nil {
				a.log.Warning("could not send notification", "error", nerr)
			}
		}
	}
	for _, j := range sched.Jobs() {
		if strings.HasPrefix(j.ID, scheduler.ChannelPrefix) && !want[j.ID] {
			sched.Remove(j.ID)
		}
	}
}
