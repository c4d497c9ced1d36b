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

package automation

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ausocean/utils/logging"
	"google.golang.org/api/option"

	"github.com/ausocean/shorts/gauth"
	"github.com/ausocean/shorts/youtube"
)

// YouTube uploads videos with per-channel credentials kept in a
// credentials directory or bucket.
type YouTube struct {
	Dir string // Credentials directory or gs:// prefix.
	Log logging.Logger

	// Options are extra client options, such as an endpoint.
	Options []option.ClientOption

	// Sleep waits between upload retries. Nil uses the default.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Upload uploads the video at path to the channel, without ever prompting
// for consent.
func (y *YouTube) Upload(ctx context.Context, channel, path string, meta Meta) (string, error) {
	svc, err := youtube.NewService(ctx, gauth.NewCredentials(y.Dir, channel, y.Log), false, y.Options...)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open video: %w", err)
	}
	defer f.Close()

	var last int64
	opts := []youtube.VideoUploadOption{
		youtube.WithTitle(meta.Title),
		youtube.WithDescription(meta.Description),
		youtube.WithTags(meta.Tags),
		youtube.WithPrivacy(meta.Privacy),
		youtube.WithShorts(meta.Shorts),
		youtube.WithNotifySubscribers(meta.NotifySubscribers),
		youtube.WithProgress(func(current, total int64) {
			if y.Log == nil || total <= 0 {
				return
			}
			pct := current * 100 / total
			if pct/10 != last/10 {
				y.Log.Debug("upload progress", "channel", channel, "percent", pct)
			}
			last = pct
		}),
	}
	if meta.Category != "" {
		opts = append(opts, youtube.WithCategory(meta.Category))
	}
	if y.Sleep != nil {
		opts = append(opts, youtube.WithRetry(youtube.DefaultRetries, y.Sleep))
	}

	vid, err := youtube.UploadVideo(ctx, svc, f, opts...)
	if err != nil {
		return "", err
	}
	return vid.Id, nil
}

// Verify checks the channel's stored credentials by fetching the channel
// they are authorised for.
func (y *YouTube) Verify(ctx context.Context, channel string) (*youtube.ChannelInfo, error) {
	svc, err := youtube.NewService(ctx, gauth.NewCredentials(y.Dir, channel, y.Log), false, y.Options...)
	if err != nil {
		return nil, err
	}
	return youtube.GetChannelInfo(ctx, svc)
}
