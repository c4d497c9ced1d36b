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

package pexels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchJSON = `{"page":1,"per_page":2,"total_results":2,"videos":[
 {"id":1,"width":1080,"height":1920,"duration":12,"url":"https://www.pexels.com/video/1/",
  "video_files":[
   {"id":11,"quality":"hd","file_type":"video/mp4","width":1080,"height":1920,"link":"%[1]s/files/11.mp4"},
   {"id":12,"quality":"sd","file_type":"video/mp4","width":540,"height":960,"link":"%[1]s/files/12.mp4"}]},
 {"id":2,"width":720,"height":1280,"duration":8,"url":"https://www.pexels.com/video/2/","video_files":[]}]}`

func newServer(t *testing.T, limited map[string]bool, keys *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos/search":
			key := r.Header.Get("Authorization")
			mu.Lock()
			*keys = append(*keys, key)
			mu.Unlock()
			if limited[key] {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			if r.URL.Query().Get("orientation") != Portrait || r.URL.Query().Get("per_page") != "5" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			fmt.Fprintf(w, searchJSON, srv.URL)
		case "/files/11.mp4":
			w.Write([]byte("clip eleven"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, srv *httptest.Server, keys ...string) *Client {
	c := NewClient(keys, (*logging.TestLogger)(t))
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()
	return c
}

func TestSearchVideos(t *testing.T) {
	var used []string
	srv := newServer(t, nil, &used)
	c := testClient(t, srv, "k1", " ", "k2")

	for i := 0; i < 3; i++ {
		videos, err := c.SearchVideos(context.Background(), "ocean", Portrait, 5)
		require.NoError(t, err)
		require.Len(t, videos, 2)
		assert.Equal(t, 1, videos[0].ID)
		assert.Len(t, videos[0].VideoFiles, 2)
	}
	assert.Equal(t, []string{"k1", "k2", "k1"}, used)
}

func TestSearchVideosRateLimited(t *testing.T) {
	var used []string
	srv := newServer(t, map[string]bool{"k1": true}, &used)
	c := testClient(t, srv, "k1", "k2")

	_, err := c.SearchVideos(context.Background(), "ocean", Portrait, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, used)

	srv = newServer(t, map[string]bool{"k1": true, "k2": true}, &used)
	c = testClient(t, srv, "k1", "k2")
	_, err = c.SearchVideos(context.Background(), "ocean", Portrait, 5)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSearchVideosNoKey(t *testing.T) {
	c := NewClient([]string{""}, nil)
	_, err := c.SearchVideos(context.Background(), "ocean", Portrait, 5)
	assert.True(t, errors.Is(err, ErrNoAPIKey))
}

func TestZeroClient(t *testing.T) {
	var c Client
	assert.Equal(t, DefaultBaseURL, c.baseURL())
	assert.Same(t, http.DefaultClient, c.client())
	_, err := c.SearchVideos(context.Background(), "ocean", Portrait, 5)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	// Only keys and an endpoint are needed.
	var used []string
	srv := newServer(t, nil, &used)
	c2 := &Client{Keys: []string{"k1"}, BaseURL: srv.URL}
	videos, err := c2.SearchVideos(context.Background(), "ocean", Portrait, 5)
	require.NoError(t, err)
	assert.Len(t, videos, 2)
	assert.Equal(t, []string{"k1"}, used)
}

func TestSearchVideosBadStatus(t *testing.T) {
	var used []string
	srv := newServer(t, nil, &used)
	c := testClient(t, srv, "k1")
	_, err := c.SearchVideos(context.Background(), "ocean", Landscape, 5)
	assert.ErrorContains(t, err, "400")
}

func TestBestFile(t *testing.T) {
	v := Video{VideoFiles: []VideoFile{
		{ID: 1, FileType: "video/mp4", Width: 2160, Height: 3840, Link: "a"},
		{ID: 2, FileType: "video/mp4", Width: 1080, Height: 1920, Link: "b"},
		{ID: 3, FileType: "video/mp4", Width: 540, Height: 960, Link: "c"},
		{ID: 4, FileType: "video/webm", Width: 1080, Height: 1920, Link: "d"},
	}}

	tests := []struct {
		w, h int
		want int
		ok   bool
	}{
		{w: 1080, h: 1920, want: 2, ok: true},
		{w: 500, h: 900, want: 3, ok: true},
		{w: 4000, h: 8000, want: 1, ok: true},
	}
	for i, test := range tests {
		got, ok := BestFile(v, test.w, test.h)
		if ok != test.ok || got.ID != test.want {
			t.Errorf("BestFile test %d: got:%d,%v want:%d,%v", i, got.ID, ok, test.want, test.ok)
		}
	}

	_, ok := BestFile(Video{VideoFiles: []VideoFile{{FileType: "video/webm", Link: "x"}}}, 1, 1)
	assert.False(t, ok)
}

func TestDownload(t *testing.T) {
	var used []string
	srv := newServer(t, nil, &used)
	c := testClient(t, srv, "k1")
	dir := t.TempDir()
	path := filepath.Join(dir, "clips", "11.mp4")

	err := c.Download(context.Background(), srv.URL+"/files/11.mp4", path)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "clip eleven", string(b))

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// A cached file is not fetched again.
	err = c.Download(context.Background(), srv.URL+"/files/missing.mp4", path)
	assert.NoError(t, err)

	err = c.Download(context.Background(), srv.URL+"/files/missing.mp4", filepath.Join(dir, "other.mp4"))
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(dir, "other.mp4"))
	assert.True(t, os.IsNotExist(err))
}
