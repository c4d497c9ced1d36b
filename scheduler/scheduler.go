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

// Package scheduler runs jobs on cron schedules, including solar
// schedules such as @sunrise when coordinates are known.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/kortschak/sun"
	cron "github.com/robfig/cron/v3"

	"github.com/ausocean/shorts/notify"
)

// ChannelPrefix prefixes the job ID of a channel job.
const ChannelPrefix = "channel_"

// Exported errors.
var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrStillRunning = errors.New("job still running")
	ErrNoLocation   = errors.New("invalid solar cron: no coordinates")
	ErrNoTimeSpec   = errors.New("no time spec specified for job")
)

// Func is the work of a job.
type Func func(ctx context.Context) error

// Notifier is notified of failed jobs.
type Notifier interface {
	Send(ctx context.Context, channel string, kind notify.Kind, msg string) error
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	Next    time.Time `json:"next_run"`
	Running bool      `json:"running"`
}

type job struct {
	id, name, spec string
	fn             Func
	entry          cron.EntryID
	mu             sync.Mutex // Held while running.
}

// Scheduler implements a scheduler based on robfig/cron. A job never
// runs concurrently with itself; a run due while the previous one is
// still going is skipped, so missed runs coalesce.
type Scheduler struct {
	cron     *cron.Cron
	loc      *time.Location
	lat, lon float64
	log      logging.Logger
	notifier Notifier

	ctx    context.Context // Context of scheduled runs.
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    map[string]*job
	running bool
}

// Option is a functional option for New.
type Option func(*Scheduler)

// WithLocation sets the time zone schedules are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// WithCoordinates sets the location used by solar schedules.
func WithCoordinates(lat, lon float64) Option {
	return func(s *Scheduler) { s.lat, s.lon = lat, lon }
}

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithNotifier sets the notifier for failed jobs.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// New returns a new, stopped scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		loc:  time.Local,
		lat:  math.NaN(),
		lon:  math.NaN(),
		jobs: make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	l := cronLogger{s.log}
	s.cron = cron.New(
		cron.WithParser(sun.Parser{}),
		cron.WithLocation(s.loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l)),
	)
	return s
}

// AddChannelJob schedules fn for the named channel, replacing any
// existing job for the channel.
func (s *Scheduler) AddChannelJob(name, schedule string, fn Func) error {
	return s.Add(ChannelPrefix+name, name, schedule, fn)
}

// AddIntervalJob schedules fn to run every d.
func (s *Scheduler) AddIntervalJob(id string, d time.Duration, fn Func) error {
	if d <= 0 {
		return fmt.Errorf("invalid interval: %v", d)
	}
	return s.Add(id, id, "@every "+d.String(), fn)
}

// Add schedules fn under id with the given cron spec, replacing any
// existing job with that id. Solar specs have the scheduler's coordinates
// appended.
func (s *Scheduler) Add(id, name, schedule string, fn Func) error {
	spec, err := Spec(schedule, s.lat, s.lon)
	if err != nil {
		return fmt.Errorf("could not get cron spec for job %s: %w", id, err)
	}
	_, err = (sun.Parser{}).Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for job %s: %w", spec, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[id]; ok {
		s.cron.Remove(old.entry)
		delete(s.jobs, id)
	}
	j := &job{id: id, name: name, spec: spec, fn: fn}
	j.entry, err = s.cron.AddFunc(spec, func() { s.run(s.ctx, j) })
	if err != nil {
		return fmt.Errorf("failed to add cron spec %s to the cron scheduler: %w", spec, err)
	}
	s.jobs[id] = j
	s.info("job scheduled", "id", id, "spec", spec)
	return nil
}

// Remove removes a job, returning false if there is no such job.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	s.cron.Remove(j.entry)
	delete(s.jobs, id)
	s.info("job removed", "id", id)
	return true
}

// Job returns information about a job.
func (s *Scheduler) Job(id string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return s.infoOf(j), true
}

// Jobs returns information about all jobs, sorted by ID.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, s.infoOf(j))
	}
	sort.Slice(infos, func(i, k int) bool { return infos[i].ID < infos[k].ID })
	return infos
}

func (s *Scheduler) infoOf(j *job) JobInfo {
	running := !j.mu.TryLock()
	if !running {
		j.mu.Unlock()
	}
	return JobInfo{ID: j.id, Name: j.name, Spec: j.spec, Next: s.cron.Entry(j.entry).Next, Running: running}
}

// RunNow runs a job immediately and waits for it to finish.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return s.run(ctx, j)
}

// Start starts running jobs on their schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.info("scheduler started", "jobs", len(s.jobs), "location", s.loc.String())
}

// Stop stops the scheduler and waits for running jobs to finish. If ctx
// is done first, running jobs are cancelled and ctx's error returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run runs j unless it is already running.
func (s *Scheduler) run(ctx context.Context, j *job) error {
	if !j.mu.TryLock() {
		s.warning("job still running, skipping", "id", j.id)
		return fmt.Errorf("%w: %s", ErrStillRunning, j.id)
	}
	defer j.mu.Unlock()

	s.debug("job started", "id", j.id)
	start := time.Now()
	err := j.fn(ctx)
	if err != nil {
		s.logAndNotify(ctx, j, err)
		return err
	}
	s.info("job executed", "id", j.id, "duration", time.Since(start).String())
	return nil
}

// logAndNotify logs a job failure and forwards it to the notifier.
func (s *Scheduler) logAndNotify(ctx context.Context, j *job, err error) {
	s.logError("job failed", "id", j.id, "error", err)
	if s.notifier == nil {
		return
	}
	msg := fmt.Sprintf("scheduled job %s failed at %s: %v", j.id, time.Now().In(s.loc).Format(time.RFC3339), err)
	nerr := s.notifier.Send(context.WithoutCancel(ctx), j.name, notify.KindUpload, msg)
	if nerr != nil {
		s.logError("could not send notification", "error", nerr)
	}
}

// Spec returns the cron spec line for schedule at the given geographic
// location. Solar schedules (@sunrise, @noon, @sunset, with an optional
// offset) need coordinates.
func Spec(schedule string, lat, lon float64) (string, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return "", ErrNoTimeSpec
	}
	if strings.HasPrefix(schedule, "@sunrise") || strings.HasPrefix(schedule, "@noon") || strings.HasPrefix(schedule, "@sunset") {
		if math.IsNaN(lat) || math.IsNaN(lon) {
			return "", ErrNoLocation
		}
		return fmt.Sprintf("%s %v %v", schedule, lat, lon), nil
	}
	return schedule, nil
}

// Validate reports whether schedule is a valid cron spec.
func Validate(schedule string) error {
	spec, err := Spec(schedule, 0, 0)
	if err != nil {
		return err
	}
	_, err = (sun.Parser{}).Parse(spec)
	return err
}

func (s *Scheduler) debug(msg string, args ...interface{}) {
	if s.log != nil {
		s.log.Debug(msg, args...)
	}
}

func (s *Scheduler) info(msg string, args ...interface{}) {
	if s.log != nil {
		s.log.Info(msg, args...)
	}
}

func (s *Scheduler) warning(msg string, args ...interface{}) {
	if s.log != nil {
		s.log.Warning(msg, args...)
	}
}

func (s *Scheduler) logError(msg string, args ...interface{}) {
	if s.log != nil {
		s.log.Error(msg, args...)
	}
}

// cronLogger adapts a logging.Logger to cron.Logger.
type cronLogger struct {
	log logging.Logger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	if l.log != nil {
		l.log.Debug("cron: "+msg, kv...)
	}
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	if l.log != nil {
		l.log.Error("cron: "+msg, append(kv, "error", err)...)
	}
}
