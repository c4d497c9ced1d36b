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

// Package automation generates short videos for configured channels and
// uploads them to YouTube, honouring each channel's upload limits.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/uuid"

	"github.com/ausocean/shorts/channel"
	"github.com/ausocean/shorts/notify"
	"github.com/ausocean/shorts/script"
	"github.com/ausocean/shorts/utils"
	"github.com/ausocean/shorts/video"
	"github.com/ausocean/shorts/youtube"
)

// Exported errors.
var (
	ErrRateLimited      = errors.New("channel rate limited")
	ErrNotFound         = errors.New("channel not found")
	ErrGenerationFailed = errors.New("video generation failed")
	ErrAuthFailed       = errors.New("youtube authentication failed")
	ErrUploadFailed     = errors.New("video upload failed")
	ErrInProgress       = errors.New("upload already in progress")
)

// Title and description limits applied before upload.
const (
	maxTitle   = 90 // Leaves room for the #Shorts suffix.
	maxSummary = 500
)

// Meta holds the metadata of a video to upload.
type Meta struct {
	Title             string
	Description       string
	Tags              []string
	Category          string
	Privacy           string
	Shorts            bool
	NotifySubscribers bool
}

// Uploader uploads videos to a channel.
type Uploader interface {
	// Upload uploads the video at path and returns its video ID.
	Upload(ctx context.Context, channel, path string, meta Meta) (string, error)

	// Verify checks that the channel credentials work.
	Verify(ctx context.Context, channel string) (*youtube.ChannelInfo, error)
}

// Notifier is notified of channels needing attention.
type Notifier interface {
	Send(ctx context.Context, channel string, kind notify.Kind, msg string) error
}

// Outcome describes a completed run.
type Outcome struct {
	Channel     string        `json:"channel"`
	Topic       string        `json:"topic"`
	TaskID      string        `json:"task_id"`
	Video       string        `json:"video"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	VideoID     string        `json:"video_id,omitempty"`
	URL         string        `json:"url,omitempty"`
	DryRun      bool          `json:"dry_run"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Runner generates and uploads videos.
type Runner struct {
	Channels  *channel.Manager
	Generator video.Generator
	Uploader  Uploader
	Log       logging.Logger
	Notifier  Notifier         // Optional.
	Now       func() time.Time // Defaults to time.Now.

	mu   sync.Mutex
	busy map[string]bool // Channels with an upload run in progress.
}

// GenerateAndUpload generates a video for the named channel and, unless
// dryRun is set, uploads it. An empty topic has one picked for the
// channel. Dry runs skip the rate limit checks and record nothing.
// Only one upload run per channel proceeds at a time; others fail with
// ErrRateLimited wrapping ErrInProgress.
func (r *Runner) GenerateAndUpload(ctx context.Context, name, topic string, dryRun bool) (*Outcome, error) {
	start := r.now()
	r.info("starting video generation", "channel", name, "topic", topic, "dry_run", dryRun)

	if !dryRun {
		if !r.acquire(name) {
			r.warning("upload already in progress, skipping", "channel", name)
			return nil, fmt.Errorf("%w: %s: %w", ErrRateLimited, name, ErrInProgress)
		}
		defer r.release(name)

		err := r.Channels.CanUpload(ctx, name, start)
		switch {
		case errors.Is(err, channel.ErrDailyLimit), errors.Is(err, channel.ErrTooSoon):
			r.warning("rate limit exceeded, skipping", "channel", name, "reason", err.Error())
			return nil, fmt.Errorf("%w: %s: %w", ErrRateLimited, name, err)
		case errors.Is(err, channel.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		case err != nil:
			return nil, fmt.Errorf("could not check upload limits: %w", err)
		}
	}

	cfg, err := r.Channels.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	params, err := r.Channels.VideoParams(ctx, name, topic)
	if err != nil {
		return nil, fmt.Errorf("could not get video params: %w", err)
	}
	r.info("video params", "channel", name, "subject", params.Subject, "aspect", params.Aspect, "clips", params.ClipCount())

	taskID := uuid.NewString()
	res, err := r.Generator.Generate(ctx, taskID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if len(res.Videos) == 0 {
		return nil, fmt.Errorf("%w: no video produced", ErrGenerationFailed)
	}

	out := &Outcome{
		Channel:     name,
		Topic:       params.Subject,
		TaskID:      taskID,
		Video:       res.Videos[0],
		Title:       utils.Truncate(params.Subject, maxTitle),
		Description: Description(cfg.DescriptionTemplate, res.Script),
		DryRun:      dryRun,
	}
	r.info("video generated", "channel", name, "path", out.Video)

	if dryRun {
		out.Elapsed = r.now().Sub(start)
		r.info("dry run, skipping upload", "channel", name, "path", out.Video)
		return out, nil
	}

	id, err := r.Uploader.Upload(ctx, name, out.Video, Meta{
		Title:             out.Title,
		Description:       out.Description,
		Tags:              cfg.Tags,
		Category:          cfg.Category,
		Privacy:           cfg.DefaultPrivacy,
		Shorts:            true,
		NotifySubscribers: cfg.NotifySubscribers,
	})
	if errors.Is(err, youtube.ErrNotAuthenticated) {
		r.notify(ctx, name, notify.KindAuth, fmt.Sprintf("channel %s could not authenticate with YouTube: %v", name, err))
		return nil, fmt.Errorf("%w: %s: %w", ErrAuthFailed, name, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	out.VideoID = id
	out.URL = youtube.VideoURL(id)

	err = r.Channels.RecordUpload(ctx, name, id, params.Subject, r.now())
	if err != nil {
		// The upload itself succeeded.
		r.logError("could not record upload", "channel", name, "id", id, "error", err)
	}
	out.Elapsed = r.now().Sub(start)
	r.info("video uploaded", "channel", name, "id", id, "url", out.URL, "elapsed", out.Elapsed.String())
	return out, nil
}

// Description returns the video description for a script from a channel
// description template.
func Description(template, text string) string {
	if template == "" {
		template = channel.DefaultDescription
	}
	return strings.ReplaceAll(template, channel.SummaryPlaceholder, script.Summary(text, maxSummary))
}

// acquire marks an upload run for the named channel as in progress,
// returning false if one already is.
func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[name] {
		return false
	}
	if r.busy == nil {
		r.busy = make(map[string]bool)
	}
	r.busy[name] = true
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.busy, name)
	r.mu.Unlock()
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) notify(ctx context.Context, name string, kind notify.Kind, msg string) {
	if r.Notifier == nil {
		return
	}
	err := r.Notifier.Send(ctx, name, kind, msg)
	if err != nil {
		r.logError("could not send notification", "channel", name, "error", err)
	}
}

func (r *Runner) info(msg string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Info(msg, args...)
	}
}

func (r *Runner) warning(msg string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Warning(msg, args...)
	}
}

func (r *Runner) logError(msg string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Error(msg, args...)
	}
}
