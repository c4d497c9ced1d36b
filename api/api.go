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

// Package api provides the HTTP API for triggering runs and inspecting
// scheduled jobs.
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/ausocean/shorts/automation"
	"github.com/ausocean/shorts/channel"
	"github.com/ausocean/shorts/gauth"
	"github.com/ausocean/shorts/scheduler"
)

// Run states.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// maxRuns is the number of finished runs remembered.
const maxRuns = 100

// Runner runs the generate and upload pipeline.
type Runner interface {
	GenerateAndUpload(ctx context.Context, name, topic string, dryRun bool) (*automation.Outcome, error)
}

// Channels provides the configured channels.
type Channels interface {
	List() []string
	Get(name string) (channel.Config, error)
}

// Jobs provides the scheduled jobs.
type Jobs interface {
	Jobs() []scheduler.JobInfo
}

// Run is the state of a triggered run.
type Run struct {
	ID      string              `json:"id"`
	Channel string              `json:"channel"`
	Topic   string              `json:"topic,omitempty"`
	DryRun  bool                `json:"dry_run"`
	Status  string              `json:"status"`
	Started time.Time           `json:"started"`
	Outcome *automation.Outcome `json:"outcome,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Service serves the API.
type Service struct {
	Name     string
	Version  string
	Runner   Runner
	Channels Channels
	Jobs     Jobs   // Optional.
	Secret   []byte // JWT secret; if nil, protected routes are refused.
	Log      logging.Logger

	ctx    context.Context // Context of triggered runs.
	wg     sync.WaitGroup
	mu     sync.Mutex
	runs   map[string]*Run
	finish []string // IDs of finished runs, oldest first.
}

// NewApp returns a fiber app serving s. Triggered runs use ctx, so
// cancelling it cancels them.
func NewApp(ctx context.Context, s *Service) *fiber.App {
	s.ctx = ctx
	s.runs = make(map[string]*Run)
	if s.Secret == nil {
		s.warning("no JWT secret configured, API routes are unauthenticated")
	}

	app := fiber.New(fiber.Config{ErrorHandler: s.errorHandler, DisableStartupMessage: true, Immutable: true})
	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		s.debug("request", "method", c.Method(), "path", c.Path())
		return c.Next()
	})

	app.Get("/", s.versionHandler)
	app.Get("/channels", s.channelsHandler)
	app.Get("/jobs", s.auth, s.jobsHandler)
	app.Post("/run/:channel", s.auth, s.runHandler)
	app.Get("/runs/:id", s.auth, s.runStatusHandler)
	return app
}

// Wait waits for triggered runs to finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) versionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"name": s.Name, "version": s.Version})
}

func (s *Service) channelsHandler(c *fiber.Ctx) error {
	names := s.Channels.List()
	if names == nil {
		names = []string{}
	}
	return c.JSON(names)
}

func (s *Service) jobsHandler(c *fiber.Ctx) error {
	if s.Jobs == nil {
		return c.JSON([]scheduler.JobInfo{})
	}
	return c.JSON(s.Jobs.Jobs())
}

// runHandler starts a run for a channel and responds without waiting for
// it to finish.
func (s *Service) runHandler(c *fiber.Ctx) error {
	name := c.Params("channel")
	_, err := s.Channels.Get(name)
	if errors.Is(err, channel.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "unknown channel "+name)
	}
	if err != nil {
		return err
	}

	run := &Run{
		ID:      uuid.NewString(),
		Channel: name,
		Topic:   c.Query("topic"),
		DryRun:  c.QueryBool("dry_run", false),
		Status:  StatusRunning,
		Started: time.Now(),
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	s.info("run triggered", "id", run.ID, "channel", name, "topic", run.Topic, "dry_run", run.DryRun)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		out, err := s.Runner.GenerateAndUpload(s.ctx, run.Channel, run.Topic, run.DryRun)
		s.finished(run.ID, out, err)
	}()

	c.Location("/runs/" + run.ID)
	return c.Status(fiber.StatusAccepted).JSON(s.snapshot(run))
}

func (s *Service) runStatusHandler(c *fiber.Ctx) error {
	s.mu.Lock()
	run, ok := s.runs[c.Params("id")]
	var r Run
	if ok {
		r = *run
	}
	s.mu.Unlock()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown run")
	}
	return c.JSON(r)
}

// finished records the result of a run, forgetting the oldest finished
// runs beyond maxRuns.
func (s *Service) finished(id string, out *automation.Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[id]
	run.Outcome = out
	run.Status = StatusDone
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		s.warning("run failed", "id", id, "channel", run.Channel, "error", err)
	} else {
		s.info("run finished", "id", id, "channel", run.Channel)
	}
	s.finish = append(s.finish, id)
	for len(s.finish) > maxRuns {
		delete(s.runs, s.finish[0])
		s.finish = s.finish[1:]
	}
}

func (s *Service) snapshot(run *Run) Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *run
}

// auth requires a valid bearer token signed with the service secret.
// Without a secret all requests pass.
func (s *Service) auth(c *fiber.Ctx) error {
	if s.Secret == nil {
		return c.Next()
	}
	claims, err := gauth.GetClaims(c.Get(fiber.HeaderAuthorization), s.Secret)
	if err != nil {
		s.debug("unauthorised request", "path", c.Path(), "error", err)
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or missing token")
	}
	if iss, _ := claims["iss"].(string); iss != gauth.Issuer {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token issuer")
	}
	c.Locals("subject", claims["sub"])
	return c.Next()
}

// errorHandler responds with the error as JSON.
func (s *Service) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logError("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Service) debug(msg string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Debug(msg, args...)
	}
}

func (s *Service) info(msg string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Info(msg, args...)
	}
}

func (s *Service) warning(msg string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Warning(msg, args...)
	}
}

func (s *Service) logError(msg string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Error(msg, args...)
	}
}
