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

package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadHistoryEncoding(t *testing.T) {
	ts := time.Unix(1767225600, 0).UTC()
	h := &UploadHistory{Channel: "tech_en", Uploads: []Upload{{Time: ts, VideoID: "abc", Topic: "programming tips"}}}

	var got UploadHistory
	require.NoError(t, got.Decode(h.Encode()))
	assert.Equal(t, "tech_en", got.Channel)
	require.Len(t, got.Uploads, 1)
	assert.True(t, got.Uploads[0].Time.Equal(ts))
	assert.Equal(t, "abc", got.Uploads[0].VideoID)

	assert.Error(t, got.Decode([]byte("no-tab")))
	assert.Error(t, got.Decode([]byte("tech_en\t{not json")))
}

func TestUploadHistoryQueries(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	h := &UploadHistory{Channel: "c", Uploads: []Upload{
		{Time: base.Add(-25 * time.Hour), VideoID: "old"},
		{Time: base.Add(6 * time.Hour), VideoID: "late"},
		{Time: base, VideoID: "early"},
	}}

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "late", last.VideoID)

	assert.Len(t, h.Since(base), 2)
	h.Prune(base.Add(-time.Hour))
	assert.Len(t, h.Uploads, 2)

	_, ok = (&UploadHistory{}).Last()
	assert.False(t, ok)
}

func TestUploadHistoryStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, t.TempDir())
	require.NoError(t, err)

	h, err := GetUploadHistory(ctx, store, "motivation_tr")
	require.NoError(t, err, "missing history should not be an error")
	assert.Empty(t, h.Uploads)

	now := time.Unix(1767258000, 0)
	require.NoError(t, AddUpload(ctx, store, "motivation_tr", Upload{Time: now.Add(-48 * time.Hour), VideoID: "v0"}, time.Time{}))
	require.NoError(t, AddUpload(ctx, store, "motivation_tr", Upload{Time: now, VideoID: "v1", Topic: "hayat dersleri"}, now.Add(-24*time.Hour)))

	h, err = GetUploadHistory(ctx, store, "motivation_tr")
	require.NoError(t, err)
	require.Len(t, h.Uploads, 1, "old upload should have been pruned")
	assert.Equal(t, "v1", h.Uploads[0].VideoID)
	assert.Equal(t, "hayat dersleri", h.Uploads[0].Topic)
}

func TestTopicUsageStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, t.TempDir())
	require.NoError(t, err)

	u, err := GetTopicUsage(ctx, store, "tech_en")
	require.NoError(t, err)
	assert.Equal(t, 0, u.Count("go"))

	now := time.Unix(1767258000, 0)
	u.Record("go", now)
	u.Record("go", now.Add(time.Hour))
	u.Record("rust", now)
	require.NoError(t, PutTopicUsage(ctx, store, u))

	got, err := GetTopicUsage(ctx, store, "tech_en")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count("go"))
	assert.Equal(t, 1, got.Count("rust"))
	assert.True(t, got.Topics["go"].Last.Equal(now.Add(time.Hour)))

	c, err := got.Copy(nil)
	require.NoError(t, err)
	c.(*TopicUsage).Record("go", now)
	assert.Equal(t, 2, got.Count("go"), "copy must not alias the original")
}

func TestNotificationStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, t.TempDir())
	require.NoError(t, err)

	_, err = GetNotification(ctx, store, "failure.ops")
	assert.True(t, IsNotFound(err), "expected not found, got %v", err)

	sent := time.Unix(1767258000, 0)
	require.NoError(t, PutNotification(ctx, store, "failure.ops", sent))
	n, err := GetNotification(ctx, store, "failure.ops")
	require.NoError(t, err)
	assert.True(t, n.Sent.Equal(sent))
}

func TestNewStoreCloudLocation(t *testing.T) {
	_, err := NewStore(context.Background(), "cloud:")
	assert.Error(t, err)
}
