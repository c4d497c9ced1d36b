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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/shorts/automation"
	"github.com/ausocean/shorts/channel"
	"github.com/ausocean/shorts/gauth"
	"github.com/ausocean/shorts/scheduler"
)

var secret = []byte("trigger secret")

type fakeChannels []string

func (f fakeChannels) List() []string { return f }

func (f fakeChannels) Get(name string) (channel.Config, error) {
	for _, n := range f {
		if n == name {
			return channel.New(n, []string{"t"}, "@daily"), nil
		}
	}
	return channel.Config{}, channel.ErrNotFound
}

type fakeJobs []scheduler.JobInfo

func (f fakeJobs) Jobs() []scheduler.JobInfo { return f }

type call struct {
	name, topic string
	dryRun      bool
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	err   error
	wait  chan struct{}
}

func (r *fakeRunner) GenerateAndUpload(ctx context.Context, name, topic string, dryRun bool) (*automation.Outcome, error) {
	if r.wait != nil {
		<-r.wait
	}
	r.mu.Lock()
	r.calls = append(r.calls, call{name, topic, dryRun})
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &automation.Outcome{Channel: name, VideoID: "vid1", DryRun: dryRun}, nil
}

func newApp(t *testing.T, r Runner) (*fiber.App, *Service) {
	t.Helper()
	s := &Service{
		Name:     "shorts",
		Version:  "v0.1.0",
		Runner:   r,
		Channels: fakeChannels{"motivation_tr", "tech_en"},
		Jobs:     fakeJobs{{ID: "channel_tech_en", Name: "tech_en", Spec: "0 10,18 * * *"}},
		Secret:   secret,
		Log:      (*logging.TestLogger)(t),
	}
	return NewApp(context.Background(), s), s
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := gauth.TriggerToken("ops", time.Hour, secret)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, app *fiber.App, method, target, auth string, v interface{}) int {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestVersionAndChannels(t *testing.T) {
	app, _ := newApp(t, &fakeRunner{})

	var version map[string]string
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/", "", &version))
	assert.Equal(t, "shorts", version["name"])
	assert.Equal(t, "v0.1.0", version["version"])

	var names []string
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/channels", "", &names))
	assert.Equal(t, []string{"motivation_tr", "tech_en"}, names)
}

func TestAuth(t *testing.T) {
	app, s := newApp(t, &fakeRunner{})

	assert.Equal(t, http.StatusUnauthorized, do(t, app, http.MethodGet, "/jobs", "", nil))
	assert.Equal(t, http.StatusUnauthorized, do(t, app, http.MethodGet, "/jobs", "Bearer nonsense", nil))

	other, err := gauth.TriggerToken("ops", time.Hour, []byte("other"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, app, http.MethodPost, "/run/tech_en", "Bearer "+other, nil))

	foreign, err := gauth.PutClaims(map[string]interface{}{"iss": "someone"}, secret)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, app, http.MethodGet, "/jobs", "Bearer "+foreign, nil))

	var jobs []scheduler.JobInfo
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/jobs", token(t), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "channel_tech_en", jobs[0].ID)

	// Without a secret protected routes are open.
	s.Secret = nil
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/jobs", "", &jobs))
	var run Run
	assert.Equal(t, http.StatusAccepted, do(t, app, http.MethodPost, "/run/tech_en?dry_run=true", "", &run))
	assert.Equal(t, "tech_en", run.Channel)
	s.Wait()
}

func TestRun(t *testing.T) {
	r := &fakeRunner{wait: make(chan struct{})}
	app, s := newApp(t, r)

	var run Run
	assert.Equal(t, http.StatusAccepted, do(t, app, http.MethodPost, "/run/tech_en?dry_run=true&topic=Go%20generics", token(t), &run))
	assert.Equal(t, "tech_en", run.Channel)
	assert.Equal(t, "Go generics", run.Topic)
	assert.True(t, run.DryRun)
	assert.Equal(t, StatusRunning, run.Status)
	require.NotEmpty(t, run.ID)

	var got Run
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/runs/"+run.ID, token(t), &got))
	assert.Equal(t, StatusRunning, got.Status)

	close(r.wait)
	s.Wait()
	assert.Equal(t, []call{{"tech_en", "Go generics", true}}, r.calls)

	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/runs/"+run.ID, token(t), &got))
	assert.Equal(t, StatusDone, got.Status)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, "vid1", got.Outcome.VideoID)

	assert.Equal(t, http.StatusNotFound, do(t, app, http.MethodPost, "/run/missing", token(t), nil))
	assert.Equal(t, http.StatusNotFound, do(t, app, http.MethodGet, "/runs/missing", token(t), nil))
}

func TestRunFailed(t *testing.T) {
	r := &fakeRunner{err: automation.ErrRateLimited}
	app, s := newApp(t, r)

	var run Run
	assert.Equal(t, http.StatusAccepted, do(t, app, http.MethodPost, "/run/motivation_tr", token(t), &run))
	assert.False(t, run.DryRun)
	s.Wait()

	var got Run
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/runs/"+run.ID, token(t), &got))
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, automation.ErrRateLimited.Error(), got.Error)
	assert.True(t, errors.Is(r.err, automation.ErrRateLimited))
}

func TestFinishedRunsForgotten(t *testing.T) {
	_, s := newApp(t, &fakeRunner{})
	for i := 0; i < maxRuns+5; i++ {
		id := strconv.Itoa(i)
		s.runs[id] = &Run{ID: id, Status: StatusRunning}
		s.finished(id, nil, nil)
	}
	assert.Len(t, s.runs, maxRuns)
	assert.Len(t, s.finish, maxRuns)
}
