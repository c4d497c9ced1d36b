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

// Package pexels provides a client for the Pexels stock video API.
package pexels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Pexels API root.
const DefaultBaseURL = "https://api.pexels.com"

// Free tier request allowance.
const (
	requestsPerHour = 200
	burst           = 20
)

// Orientations accepted by SearchVideos.
const (
	Portrait  = "portrait"
	Landscape = "landscape"
	Square    = "square"
)

// Exported errors.
var (
	ErrNoAPIKey    = errors.New("no pexels API key configured")
	ErrRateLimited = errors.New("pexels rate limit exceeded")
)

// VideoFile is one rendition of a video.
type VideoFile struct {
	ID       int    `json:"id"`
	Quality  string `json:"quality"`
	FileType string `json:"file_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Link     string `json:"link"`
}

// Video is a search result.
type Video struct {
	ID         int         `json:"id"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Duration   int         `json:"duration"`
	URL        string      `json:"url"`
	VideoFiles []VideoFile `json:"video_files"`
}

type searchResponse struct {
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	TotalResults int     `json:"total_results"`
	Videos       []Video `json:"videos"`
}

// Client calls the Pexels API. Keys are used in turn, and a key that
// hits its rate limit is skipped for the rest of the request. All
// requests share one limiter. An empty BaseURL means DefaultBaseURL, a nil
// HTTP means http.DefaultClient and a nil Limiter means no limit.
type Client struct {
	Keys    []string
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Log     logging.Logger

	next atomic.Uint32
}

// NewClient returns a client using the given API keys. Blank keys are
// ignored.
func NewClient(keys []string, log logging.Logger) *Client {
	var ks []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			ks = append(ks, k)
		}
	}
	return &Client{
		Keys:    ks,
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Limiter: rate.NewLimiter(rate.Every(time.Hour/requestsPerHour), burst),
		Log:     log,
	}
}

// SearchVideos searches for videos matching query with the given
// orientation, returning at most perPage results.
func (c *Client) SearchVideos(ctx context.Context, query, orientation string, perPage int) ([]Video, error) {
	if len(c.Keys) == 0 {
		return nil, ErrNoAPIKey
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(perPage))
	if orientation != "" {
		q.Set("orientation", orientation)
	}
	u := strings.TrimSuffix(c.baseURL(), "/") + "/videos/search?" + q.Encode()

	for range c.Keys {
		key := c.Keys[int(c.next.Add(1)-1)%len(c.Keys)]
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		videos, err := c.search(ctx, u, key)
		if errors.Is(err, ErrRateLimited) {
			c.debug("pexels key rate limited, trying next", "query", query)
			continue
		}
		return videos, err
	}
	return nil, ErrRateLimited
}

func (c *Client) search(ctx context.Context, u, key string) ([]Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", key)

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels search failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pexels search returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var sr searchResponse
	err = json.NewDecoder(resp.Body).Decode(&sr)
	if err != nil {
		return nil, fmt.Errorf("could not decode pexels response: %w", err)
	}
	return sr.Videos, nil
}

// BestFile chooses the rendition of v to download. The smallest MP4 file
// at least minWidth by minHeight is preferred, else the largest. It
// returns false if v has no MP4 files.
func BestFile(v Video, minWidth, minHeight int) (VideoFile, bool) {
	var best, largest VideoFile
	var found bool
	for _, f := range v.VideoFiles {
		if f.FileType != "" && f.FileType != "video/mp4" {
			continue
		}
		if f.Width*f.Height > largest.Width*largest.Height || largest.Link == "" {
			largest = f
		}
		if f.Width < minWidth || f.Height < minHeight {
			continue
		}
		if !found || f.Width*f.Height < best.Width*best.Height {
			best = f
			found = true
		}
	}
	if found {
		return best, true
	}
	return largest, largest.Link != ""
}

// Download saves the file at u to path. The file is written under a
// temporary name and renamed once complete. An existing non-empty file
// at path is kept.
func (c *Client) Download(ctx context.Context, u, path string) error {
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		c.debug("using cached clip", "path", path)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.downloader().Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s returned %s", u, resp.Status)
	}

	err = os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.BaseURL
}

func (c *Client) client() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

// downloader returns a client without the API request timeout, since
// clips can be large.
func (c *Client) downloader() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	cl := *c.HTTP
	cl.Timeout = 0
	return &cl
}

func (c *Client) debug(msg string, args ...interface{}) {
	if c.Log != nil {
		c.Log.Debug(msg, args...)
	}
}
