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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/openfish/datastore"
)

const typeNotification = "Notification" // Notification datastore type.

// Notification records when a kind of notification was last sent, which
// allows repeated notifications to be suppressed across runs.
type Notification struct {
	Key  string    // Notification key, e.g., failure.ops@ausocean.org
	Sent time.Time // Time last sent.
}

// Encode serializes a Notification into tab-separated values.
func (n *Notification) Encode() []byte {
	return []byte(fmt.Sprintf("%s\t%d", n.Key, n.Sent.Unix()))
}

// Decode deserializes a Notification from tab-separated values.
func (n *Notification) Decode(b []byte) error {
	p := strings.Split(string(b), "\t")
	if len(p) != 2 {
		return datastore.ErrDecoding
	}
	n.Key = p[0]
	ts, err := strconv.ParseInt(p[1], 10, 64)
	if err != nil {
		return datastore.ErrDecoding
	}
	n.Sent = time.Unix(ts, 0)
	return nil
}

// Copy is not currently implemented.
func (n *Notification) Copy(datastore.Entity) (datastore.Entity, error) {
	return nil, datastore.ErrUnimplemented
}

// GetCache returns nil, indicating no caching.
func (n *Notification) GetCache() datastore.Cache {
	return nil
}

// GetNotification gets the notification record for the given key.
func GetNotification(ctx context.Context, store datastore.Store, key string) (*Notification, error) {
	n := new(Notification)
	err := store.Get(ctx, store.NameKey(typeNotification, key), n)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// PutNotification records that the notification with the given key was sent at t.
func PutNotification(ctx context.Context, store datastore.Store, key string, t time.Time) error {
	_, err := store.Put(ctx, store.NameKey(typeNotification, key), &Notification{Key: key, Sent: t})
	return err
}

// IsNotFound reports whether err denotes a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, datastore.ErrNoSuchEntity)
}
