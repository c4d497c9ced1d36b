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

// Package youtube provides upload of short videos to YouTube channels
// using per-channel OAuth2 credentials.
package youtube

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/ausocean/shorts/gauth"
)

// ErrNotAuthenticated is returned when a channel has no usable credentials.
var ErrNotAuthenticated = errors.New("channel not authenticated")

// NewService returns a YouTube service authorised with the channel
// credentials in creds. If interactive is true and there is no usable
// token, the OAuth2 consent flow is run. Refreshed tokens are saved back
// to the credentials store.
func NewService(ctx context.Context, creds *gauth.Credentials, interactive bool, opts ...option.ClientOption) (*youtube.Service, error) {
	ts, err := creds.TokenSource(ctx, interactive)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create youtube service: %w", err)
	}
	return svc, nil
}

// ChannelInfo describes the authenticated channel.
type ChannelInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subscribers uint64 `json:"subscribers"`
	Videos      uint64 `json:"videos"`
}

// GetChannelInfo returns information about the channel svc is authorised for.
func GetChannelInfo(ctx context.Context, svc *youtube.Service) (*ChannelInfo, error) {
	resp, err := svc.Channels.List([]string{"snippet", "statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("could not list channels: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, errors.New("no channel for account")
	}
	ch := resp.Items[0]
	info := &ChannelInfo{ID: ch.Id}
	if ch.Snippet != nil {
		info.Title = ch.Snippet.Title
	}
	if ch.Statistics != nil {
		info.Subscribers = ch.Statistics.SubscriberCount
		info.Videos = ch.Statistics.VideoCount
	}
	return info, nil
}

// VideoURL returns the watch URL for a video.
func VideoURL(id string) string {
	return "https://youtube.com/watch?v=" + id
}
