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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/shorts/notify"
)

var specTests = []struct {
	schedule string
	lat, lon float64
	want     string
	wantErr  error
}{
	{schedule: "", wantErr: ErrNoTimeSpec},
	{schedule: "@sunrise", lat: math.NaN(), lon: math.NaN(), wantErr: ErrNoLocation},
	{schedule: "@sunrise", lat: 1, lon: 1, want: "@sunrise 1 1"},
	{schedule: "@sunrise+1h", lat: 1, lon: 1, want: "@sunrise+1h 1 1"},
	{schedule: "@noon", lat: 41.01, lon: 28.97, want: "@noon 41.01 28.97"},
	{schedule: "@midnight", lat: 1, lon: 1, want: "@midnight"},
	{schedule: " 0 9,15,21 * * * ", lat: math.NaN(), lon: math.NaN(), want: "0 9,15,21 * * *"},
}

func TestSpec(t *testing.T) {
	for _, test := range specTests {
		got, err := Spec(test.schedule, test.lat, test.lon)
		if fmt.Sprint(err) != fmt.Sprint(test.wantErr) {
			t.Errorf("unexpected error: got:%v want:%v", err, test.wantErr)
		}
		if err != nil {
			continue
		}
		if got != test.want {
			t.Errorf("unexpected cron spec: got:%s want:%s", got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, s := range []string{"0 9,15,21 * * *", "@every 1h", "@daily", "@sunset"} {
		assert.NoError(t, Validate(s), s)
	}
	for _, s := range []string{"", "61 * * * *", "not a cron", "0 9 * *"} {
		assert.Error(t, Validate(s), s)
	}
}

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	opts = append([]Option{WithLogger((*logging.TestLogger)(t))}, opts...)
	s := New(opts...)
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func noop(context.Context) error { return nil }

func TestAddRemoveJobs(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddChannelJob("tech_en", "0 10,18 * * *", noop))
	require.NoError(t, s.AddChannelJob("motivation_tr", "0 9,15,21 * * *", noop))
	require.NoError(t, s.AddIntervalJob("cleanup", time.Hour, noop))
	assert.Error(t, s.AddChannelJob("bad", "every day", noop))
	assert.Error(t, s.AddChannelJob("solar", "@sunrise", noop))
	assert.Error(t, s.AddIntervalJob("never", 0, noop))

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "channel_motivation_tr", jobs[0].ID)
	assert.Equal(t, "motivation_tr", jobs[0].Name)
	assert.Equal(t, "channel_tech_en", jobs[1].ID)
	assert.Equal(t, "cleanup", jobs[2].ID)
	assert.Equal(t, "@every 1h0m0s", jobs[2].Spec)

	// Re-adding replaces.
	require.NoError(t, s.AddChannelJob("tech_en", "0 11 * * *", noop))
	info, ok := s.Job("channel_tech_en")
	require.True(t, ok)
	assert.Equal(t, "0 11 * * *", info.Spec)
	assert.Len(t, s.Jobs(), 3)

	assert.True(t, s.Remove("cleanup"))
	assert.False(t, s.Remove("cleanup"))
	_, ok = s.Job("cleanup")
	assert.False(t, ok)
}

func TestNextRun(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	s := newTestScheduler(t, WithLocation(loc))
	require.NoError(t, s.AddChannelJob("a", "0 9 * * *", noop))
	s.Start()
	assert.True(t, s.Running())

	var info JobInfo
	require.Eventually(t, func() bool {
		info, _ = s.Job("channel_a")
		return !info.Next.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
	next := info.Next.In(loc)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Running())
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Send(ctx context.Context, channel string, kind notify.Kind, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, channel+": "+msg)
	return nil
}

func TestRunNow(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestScheduler(t, WithNotifier(n))

	var runs int
	require.NoError(t, s.AddChannelJob("a", "@daily", func(context.Context) error {
		runs++
		return nil
	}))
	require.NoError(t, s.RunNow(context.Background(), "channel_a"))
	assert.Equal(t, 1, runs)

	assert.ErrorIs(t, s.RunNow(context.Background(), "channel_b"), ErrUnknownJob)

	failure := errors.New("quota exceeded")
	require.NoError(t, s.AddChannelJob("b", "@daily", func(context.Context) error { return failure }))
	assert.ErrorIs(t, s.RunNow(context.Background(), "channel_b"), failure)
	require.Len(t, n.msgs, 1)
	assert.Contains(t, n.msgs[0], "b: scheduled job channel_b failed")
	assert.Contains(t, n.msgs[0], "quota exceeded")
}

func TestSkipIfStillRunning(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.AddChannelJob("slow", "@daily", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan error)
	go func() { done <- s.RunNow(context.Background(), "channel_slow") }()
	<-started

	info, _ := s.Job("channel_slow")
	assert.True(t, info.Running)
	assert.ErrorIs(t, s.RunNow(context.Background(), "channel_slow"), ErrStillRunning)

	close(release)
	assert.NoError(t, <-done)
	info, _ = s.Job("channel_slow")
	assert.False(t, info.Running)
}

func TestScheduledRun(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{}, 10)
	require.NoError(t, s.AddIntervalJob("tick", time.Second, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}))
	s.Start()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("interval job did not run")
	}
	require.NoError(t, s.Stop(context.Background()))
}

func TestStopTimeout(t *testing.T) {
	// No test logger, since the cancelled job finishes after the test.
	s := New()

	started := make(chan struct{}, 1)
	require.NoError(t, s.AddIntervalJob("stuck", time.Second, func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}))
	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}
