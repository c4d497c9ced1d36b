/*
DESCRIPTION
  upload.go provides uploading of short videos to a YouTube channel, with
  retry of transient server errors.

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

package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"

	"github.com/ausocean/shorts/utils"
)

// YouTube limits, in characters.
const (
	MaxTitle       = 100
	MaxDescription = 5000
)

// Upload defaults.
const (
	DefaultCategory = "22" // People & Blogs.
	DefaultPrivacy  = "private"
	DefaultRetries  = 10
	chunkSize       = 1 << 20
	maxBackoff      = 60 * time.Second
	shortsTag       = "#Shorts"
)

var ErrUnknownStatus = errors.New("unknown video status")

// upload holds the video resource being uploaded and how to upload it.
type upload struct {
	video    *youtube.Video
	shorts   bool
	notify   bool
	progress googleapi.ProgressUpdater
	retries  int
	sleep    func(context.Context, time.Duration) error
}

// VideoUploadOption is a functional option type for configuring YouTube video uploads.
type VideoUploadOption func(*upload) error

// WithTitle sets the title of the video being uploaded.
// It returns an error if the title is empty.
func WithTitle(title string) VideoUploadOption {
	return func(u *upload) error {
		if strings.TrimSpace(title) == "" {
			return errors.New("title cannot be empty")
		}
		u.video.Snippet.Title = title
		return nil
	}
}

// WithDescription sets the description of the video being uploaded.
func WithDescription(description string) VideoUploadOption {
	return func(u *upload) error {
		u.video.Snippet.Description = description
		return nil
	}
}

// WithCategory sets the category of the video being uploaded, by ID or
// by name, e.g. "22" or "People & Blogs". It returns an error if the
// category is not known.
func WithCategory(category string) VideoUploadOption {
	return func(u *upload) error {
		id := sanitiseCategory(category)
		if id == "" {
			return fmt.Errorf("invalid category ID or name: %s", category)
		}
		u.video.Snippet.CategoryId = id
		return nil
	}
}

// WithPrivacy sets the privacy status of the video being uploaded.
// It accepts "public", "unlisted", or "private".
func WithPrivacy(privacy string) VideoUploadOption {
	return func(u *upload) error {
		if !ValidPrivacy(privacy) {
			return fmt.Errorf("invalid privacy status: %s", privacy)
		}
		u.video.Status.PrivacyStatus = privacy
		return nil
	}
}

// WithTags sets the tags for the video being uploaded. Empty tags are dropped.
func WithTags(tags []string) VideoUploadOption {
	return func(u *upload) error {
		var keep []string
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t != "" {
				keep = append(keep, t)
			}
		}
		u.video.Snippet.Tags = keep
		return nil
	}
}

// WithShorts marks the video as a YouTube Short by tagging its title.
func WithShorts(shorts bool) VideoUploadOption {
	return func(u *upload) error {
		u.shorts = shorts
		return nil
	}
}

// WithNotifySubscribers sets whether channel subscribers are notified.
func WithNotifySubscribers(notify bool) VideoUploadOption {
	return func(u *upload) error {
		u.notify = notify
		return nil
	}
}

// WithMadeForKids sets the self-declared made-for-kids status.
func WithMadeForKids(kids bool) VideoUploadOption {
	return func(u *upload) error {
		u.video.Status.SelfDeclaredMadeForKids = kids
		u.video.Status.ForceSendFields = append(u.video.Status.ForceSendFields, "SelfDeclaredMadeForKids")
		return nil
	}
}

// WithProgress sets a function that is called as media is uploaded.
func WithProgress(fn func(current, total int64)) VideoUploadOption {
	return func(u *upload) error {
		u.progress = fn
		return nil
	}
}

// WithRetry sets the maximum number of retries after the first attempt
// and the function used to wait between them. A nil sleep waits on a timer.
func WithRetry(retries int, sleep func(context.Context, time.Duration) error) VideoUploadOption {
	return func(u *upload) error {
		if retries < 0 {
			return fmt.Errorf("invalid retries: %d", retries)
		}
		u.retries = retries
		if sleep != nil {
			u.sleep = sleep
		}
		return nil
	}
}

// Upload Status constants.
const (
	UploadStatusUploaded  = "uploaded"
	UploadStatusProcessed = "processed"
	UploadStatusFailed    = "failed"
	UploadStatusRejected  = "rejected"
	UploadStatusDeleted   = "deleted"
)

// UploadVideo uploads media to the channel svc is authorised for.
// Defaults are:
// - Title: "Uploaded at <current time>"
// - Category: People & Blogs (ID: 22)
// - Privacy: "private"
// - Made for kids: false
// - Notify subscribers: true
//
// Shorts titles end in #Shorts. Titles are limited to 100 characters and
// descriptions to 5000. Server errors and transport failures are retried
// with exponential backoff; media is rewound before each attempt.
func UploadVideo(ctx context.Context, svc *youtube.Service, media io.ReadSeeker, opts ...VideoUploadOption) (*youtube.Video, error) {
	u := &upload{
		video: &youtube.Video{
			Snippet: &youtube.VideoSnippet{
				Title:      "Uploaded at " + time.Now().Format("2006-01-02 15:04:05"),
				CategoryId: DefaultCategory,
			},
			Status: &youtube.VideoStatus{
				PrivacyStatus:   DefaultPrivacy,
				ForceSendFields: []string{"SelfDeclaredMadeForKids"},
			},
		},
		notify:  true,
		retries: DefaultRetries,
		sleep:   sleep,
	}

	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	u.video.Snippet.Title = FormatTitle(u.video.Snippet.Title, u.shorts)
	u.video.Snippet.Description = utils.Truncate(u.video.Snippet.Description, MaxDescription)

	for retry := 0; ; retry++ {
		_, err := media.Seek(0, io.SeekStart)
		if err != nil {
			return nil, fmt.Errorf("could not rewind media: %w", err)
		}
		call := svc.Videos.Insert([]string{"snippet", "status"}, u.video).
			NotifySubscribers(u.notify).
			Media(media, googleapi.ChunkSize(chunkSize)).
			Context(ctx)
		if u.progress != nil {
			call = call.ProgressUpdater(u.progress)
		}
		vid, err := call.Do()
		if err == nil {
			return vid, nil
		}
		if !retryable(ctx, err) || retry >= u.retries {
			return nil, fmt.Errorf("failed to insert video after %d attempt(s): %w", retry+1, err)
		}
		err = u.sleep(ctx, Backoff(retry+1))
		if err != nil {
			return nil, err
		}
	}
}

// FormatTitle returns title limited to the YouTube maximum. Shorts titles
// are given a trailing #Shorts tag unless they already carry one.
func FormatTitle(title string, shorts bool) string {
	if !shorts || strings.Contains(strings.ToLower(title), strings.ToLower(shortsTag)) {
		return utils.Truncate(title, MaxTitle)
	}
	suffix := " " + shortsTag
	return utils.Truncate(title, MaxTitle-len(suffix)) + suffix
}

// Backoff returns the wait before retry n (from one), 2^n seconds capped at a minute.
func Backoff(n int) time.Duration {
	if n > 6 {
		return maxBackoff
	}
	return min(time.Second<<n, maxBackoff)
}

// retryable reports whether err is a transient failure.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Anything else failed in transport.
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckUploadStatus checks the status for the video with the associated videoID.
// The returned status will be one of:
// - UploadStatusUploaded
// - UploadStatusProcessed
// - UploadStatusFailed
// - UploadStatusRejected
// - UploadStatusDeleted
func CheckUploadStatus(ctx context.Context, svc *youtube.Service, videoID string) (string, error) {
	resp, err := svc.Videos.List([]string{"status"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get video status: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Status == nil {
		return "", fmt.Errorf("video not found: %s", videoID)
	}

	switch s := resp.Items[0].Status.UploadStatus; s {
	case UploadStatusProcessed, UploadStatusFailed, UploadStatusRejected, UploadStatusDeleted, UploadStatusUploaded:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// categories maps YouTube video category IDs to names.
var categories = map[string]string{
	"1":  "Film & Animation",
	"2":  "Autos & Vehicles",
	"10": "Music",
	"15": "Pets & Animals",
	"17": "Sports",
	"19": "Travel & Events",
	"20": "Gaming",
	"22": "People & Blogs",
	"23": "Comedy",
	"24": "Entertainment",
	"25": "News & Politics",
	"26": "Howto & Style",
	"27": "Education",
	"28": "Science & Technology",
	"29": "Nonprofits & Activism",
}

// sanitiseCategory returns the ID of the category with the given ID or
// name, or the empty string if there is none.
func sanitiseCategory(cat string) string {
	if _, ok := categories[cat]; ok {
		return cat
	}
	for id, name := range categories {
		if strings.EqualFold(name, cat) {
			return id
		}
	}
	return ""
}

// ValidPrivacy reports whether privacy is a YouTube privacy status.
func ValidPrivacy(privacy string) bool {
	switch privacy {
	case "public", "unlisted", "private":
		return true
	}
	return false
}
