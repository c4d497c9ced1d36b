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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ausocean/openfish/datastore"
)

const typeUploadHistory = "UploadHistory" // UploadHistory datastore type.

var errWrongType = errors.New("wrong entity type")

// Upload records a single successful upload.
type Upload struct {
	Time    time.Time `json:"time"`
	VideoID string    `json:"video_id"`
	Topic   string    `json:"topic"`
}

// UploadHistory holds the uploads made for a channel. The uploads are
// kept JSON encoded in Data so that the entity remains a flat record for
// both the file and cloud datastores.
type UploadHistory struct {
	Channel string
	Data    string   `datastore:",noindex"`
	Uploads []Upload `datastore:"-"`
}

// Encode serializes an UploadHistory into tab-separated values.
func (h *UploadHistory) Encode() []byte {
	h.sync()
	return []byte(h.Channel + "\t" + h.Data)
}

// Decode deserializes an UploadHistory from tab-separated values.
func (h *UploadHistory) Decode(b []byte) error {
	p := strings.SplitN(string(b), "\t", 2)
	if len(p) != 2 {
		return datastore.ErrDecoding
	}
	h.Channel = p[0]
	h.Data = p[1]
	return h.unpack()
}

// Copy copies an UploadHistory to dst, or returns a copy if dst is nil.
func (h *UploadHistory) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var c *UploadHistory
	if dst == nil {
		c = new(UploadHistory)
	} else {
		var ok bool
		c, ok = dst.(*UploadHistory)
		if !ok {
			return nil, errWrongType
		}
	}
	c.Channel = h.Channel
	c.Data = h.Data
	c.Uploads = append([]Upload(nil), h.Uploads...)
	return c, nil
}

// GetCache returns nil, indicating no caching.
func (h *UploadHistory) GetCache() datastore.Cache {
	return nil
}

// Since returns the uploads made at or after t.
func (h *UploadHistory) Since(t time.Time) []Upload {
	var recent []Upload
	for _, u := range h.Uploads {
		if !u.Time.Before(t) {
			recent = append(recent, u)
		}
	}
	return recent
}

// Last returns the most recent upload, or false if there have been none.
func (h *UploadHistory) Last() (Upload, bool) {
	var last Upload
	found := false
	for _, u := range h.Uploads {
		if !found || u.Time.After(last.Time) {
			last = u
			found = true
		}
	}
	return last, found
}

// Prune drops uploads made before t.
func (h *UploadHistory) Prune(t time.Time) {
	h.Uploads = h.Since(t)
}

func (h *UploadHistory) sync() {
	b, _ := json.Marshal(h.Uploads) // Plain structs cannot fail to marshal.
	h.Data = string(b)
}

func (h *UploadHistory) unpack() error {
	h.Uploads = nil
	if h.Data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(h.Data), &h.Uploads); err != nil {
		return datastore.ErrDecoding
	}
	return nil
}

// GetUploadHistory returns the upload history for a channel. A channel
// without history yields an empty history rather than an error.
func GetUploadHistory(ctx context.Context, store datastore.Store, channel string) (*UploadHistory, error) {
	key := store.NameKey(typeUploadHistory, channel)
	h := &UploadHistory{}
	err := store.Get(ctx, key, h)
	switch {
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return &UploadHistory{Channel: channel}, nil
	case err != nil:
		return nil, fmt.Errorf("could not get upload history for %s: %w", channel, err)
	}
	if err := h.unpack(); err != nil {
		return nil, fmt.Errorf("could not decode upload history for %s: %w", channel, err)
	}
	return h, nil
}

// PutUploadHistory creates or updates the upload history for a channel.
func PutUploadHistory(ctx context.Context, store datastore.Store, h *UploadHistory) error {
	h.sync()
	key := store.NameKey(typeUploadHistory, h.Channel)
	_, err := store.Put(ctx, key, h)
	return err
}

// AddUpload appends an upload to a channel's history, dropping entries
// older than keepSince.
func AddUpload(ctx context.Context, store datastore.Store, channel string, u Upload, keepSince time.Time) error {
	h, err := GetUploadHistory(ctx, store, channel)
	if err != nil {
		return err
	}
	h.Prune(keepSince)
	h.Uploads = append(h.Uploads, u)
	return PutUploadHistory(ctx, store, h)
}
