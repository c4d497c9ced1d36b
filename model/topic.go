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

const typeTopicUsage = "TopicUsage" // TopicUsage datastore type.

// Usage records how often and how recently a topic was used.
type Usage struct {
	Count int       `json:"count"`
	Last  time.Time `json:"last"`
}

// TopicUsage holds per-topic usage for a channel, JSON encoded in Data.
type TopicUsage struct {
	Channel string
	Data    string           `datastore:",noindex"`
	Topics  map[string]Usage `datastore:"-"`
}

// Encode serializes a TopicUsage into tab-separated values.
func (u *TopicUsage) Encode() []byte {
	u.sync()
	return []byte(u.Channel + "\t" + u.Data)
}

// Decode deserializes a TopicUsage from tab-separated values.
func (u *TopicUsage) Decode(b []byte) error {
	p := strings.SplitN(string(b), "\t", 2)
	if len(p) != 2 {
		return datastore.ErrDecoding
	}
	u.Channel = p[0]
	u.Data = p[1]
	return u.unpack()
}

// Copy copies a TopicUsage to dst, or returns a copy if dst is nil.
func (u *TopicUsage) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var c *TopicUsage
	if dst == nil {
		c = new(TopicUsage)
	} else {
		var ok bool
		c, ok = dst.(*TopicUsage)
		if !ok {
			return nil, errWrongType
		}
	}
	c.Channel = u.Channel
	c.Data = u.Data
	c.Topics = make(map[string]Usage, len(u.Topics))
	for k, v := range u.Topics {
		c.Topics[k] = v
	}
	return c, nil
}

// GetCache returns nil, indicating no caching.
func (u *TopicUsage) GetCache() datastore.Cache {
	return nil
}

// Count returns the number of times topic has been used.
func (u *TopicUsage) Count(topic string) int {
	return u.Topics[topic].Count
}

// Record notes a use of topic at time t.
func (u *TopicUsage) Record(topic string, t time.Time) {
	if u.Topics == nil {
		u.Topics = make(map[string]Usage)
	}
	v := u.Topics[topic]
	v.Count++
	v.Last = t
	u.Topics[topic] = v
}

func (u *TopicUsage) sync() {
	b, _ := json.Marshal(u.Topics) // Plain structs cannot fail to marshal.
	u.Data = string(b)
}

func (u *TopicUsage) unpack() error {
	u.Topics = make(map[string]Usage)
	if u.Data == "" || u.Data == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(u.Data), &u.Topics); err != nil {
		return datastore.ErrDecoding
	}
	return nil
}

// GetTopicUsage returns the topic usage for a channel. A channel without
// recorded usage yields an empty TopicUsage.
func GetTopicUsage(ctx context.Context, store datastore.Store, channel string) (*TopicUsage, error) {
	key := store.NameKey(typeTopicUsage, channel)
	u := &TopicUsage{}
	err := store.Get(ctx, key, u)
	switch {
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return &TopicUsage{Channel: channel, Topics: make(map[string]Usage)}, nil
	case err != nil:
		return nil, fmt.Errorf("could not get topic usage for %s: %w", channel, err)
	}
	if err := u.unpack(); err != nil {
		return nil, fmt.Errorf("could not decode topic usage for %s: %w", channel, err)
	}
	return u, nil
}

// PutTopicUsage creates or updates the topic usage for a channel.
func PutTopicUsage(ctx context.Context, store datastore.Store, u *TopicUsage) error {
	u.sync()
	key := store.NameKey(typeTopicUsage, u.Channel)
	_, err := store.Put(ctx, key, u)
	return err
}
