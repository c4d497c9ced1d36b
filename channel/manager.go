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

// Package channel manages the configuration of YouTube channels, their
// topics and their upload rate limits.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/openfish/datastore"
	"github.com/ausocean/utils/logging"
	"gopkg.in/yaml.v3"

	"github.com/ausocean/shorts/model"
	"github.com/ausocean/shorts/utils"
	"github.com/ausocean/shorts/video"
)

// Exported errors.
var (
	ErrNotFound     = errors.New("channel not found")
	ErrExists       = errors.New("channel already exists")
	ErrNoTopics     = errors.New("no topics configured")
	ErrDailyLimit   = errors.New("daily video limit reached")
	ErrTooSoon      = errors.New("minimum upload interval not met")
	ErrBadExtension = errors.New("unsupported channels file extension")
)

// Upload history older than this is dropped.
const historyRetention = 7 * 24 * time.Hour

// Manager holds the channel configurations read from a file, in file
// order. Upload history and topic usage are kept in a datastore so that
// limits hold across processes. It is safe for concurrent use.
type Manager struct {
	path  string
	store datastore.Store
	loc   *time.Location
	log   logging.Logger
	rand  func(n int) int

	mu       sync.RWMutex
	channels []Config

	storeMu sync.Mutex // Held across datastore read-modify-writes.
}

// Option is a functional option for a Manager.
type Option func(*Manager)

// WithLocation sets the time zone that defines the day for daily limits.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) { m.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithRand sets the source of random choices among equally used topics.
func WithRand(fn func(n int) int) Option {
	return func(m *Manager) { m.rand = fn }
}

// Load returns a Manager for the channels file at path, which may be JSON
// or YAML by extension. A missing file gives a manager with no channels.
func Load(path string, store datastore.Store, opts ...Option) (*Manager, error) {
	m := &Manager{path: path, store: store, loc: time.Local, rand: rand.IntN}
	for _, opt := range opts {
		opt(m)
	}
	err := m.Reload()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Reload rereads the channels file.
func (m *Manager) Reload() error {
	chans, err := readFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		m.warning("channel config not found", "path", m.path)
		chans = nil
	} else if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, c := range chans {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid channel %q: %w", c.Name, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: %s", ErrExists, c.Name)
		}
		seen[c.Name] = true
	}

	m.mu.Lock()
	m.channels = chans
	m.mu.Unlock()
	m.info("loaded channel configurations", "count", len(chans), "path", m.path)
	return nil
}

// Store returns the datastore holding upload history and topic usage.
func (m *Manager) Store() datastore.Store { return m.store }

// Path returns the channels file path.
func (m *Manager) Path() string { return m.path }

// Save writes the channels back to the file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return writeFile(m.path, m.channels)
}

// Add adds a channel and saves the file.
func (m *Manager) Add(c Config) error {
	c.fill()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid channel %q: %w", c.Name, err)
	}
	m.mu.Lock()
	if m.index(c.Name) >= 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrExists, c.Name)
	}
	m.channels = append(m.channels, c)
	m.mu.Unlock()
	m.info("added channel", "channel", c.Name)
	return m.Save()
}

// Remove removes a channel and saves the file.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	i := m.index(name)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	m.channels = append(m.channels[:i], m.channels[i+1:]...)
	m.mu.Unlock()
	m.info("removed channel", "channel", name)
	return m.Save()
}

// Get returns the configuration of the named channel.
func (m *Manager) Get(name string) (Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.index(name)
	if i < 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return m.channels[i], nil
}

// List returns the channel names in file order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.channels))
	for i, c := range m.channels {
		names[i] = c.Name
	}
	return names
}

// Channels returns all channel configurations in file order.
func (m *Manager) Channels() []Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Config(nil), m.channels...)
}

func (m *Manager) index(name string) int {
	for i, c := range m.channels {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// VideoParams returns the generation parameters for a video on the named
// channel. If topic is empty one is chosen with PickTopic.
func (m *Manager) VideoParams(ctx context.Context, name, topic string) (video.Params, error) {
	c, err := m.Get(name)
	if err != nil {
		return video.Params{}, err
	}
	if topic == "" {
		topic, err = m.PickTopic(ctx, name, time.Now())
		if err != nil {
			return video.Params{}, err
		}
	}
	return video.Params{
		Subject:          topic,
		Language:         c.Language,
		Voice:            c.Voice,
		Aspect:           c.VideoAspect,
		ClipDuration:     c.VideoClipDuration,
		Paragraphs:       c.ParagraphNumber,
		SubtitleEnabled:  c.SubtitleEnabled,
		SubtitlePosition: c.SubtitlePosition,
	}, nil
}

// PickTopic chooses a topic for the named channel and records its use.
// Topics never used are preferred; otherwise the choice is uniform among
// the least used.
func (m *Manager) PickTopic(ctx context.Context, name string, now time.Time) (string, error) {
	c, err := m.Get(name)
	if err != nil {
		return "", err
	}
	if len(c.Topics) == 0 {
		return "", fmt.Errorf("%w for channel %s", ErrNoTopics, name)
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	usage, err := model.GetTopicUsage(ctx, m.store, name)
	if err != nil {
		return "", err
	}
	least := -1
	var candidates []string
	for _, t := range c.Topics {
		n := usage.Count(t)
		switch {
		case least < 0 || n < least:
			least = n
			candidates = []string{t}
		case n == least:
			candidates = append(candidates, t)
		}
	}
	topic := candidates[m.rand(len(candidates))]

	usage.Record(topic, now)
	err = model.PutTopicUsage(ctx, m.store, usage)
	if err != nil {
		return "", fmt.Errorf("could not record topic usage: %w", err)
	}
	m.debug("picked topic", "channel", name, "topic", topic, "uses", least)
	return topic, nil
}

// CanUpload returns nil if the named channel may upload at now. Only
// uploads since the start of the local day count towards the daily limit.
func (m *Manager) CanUpload(ctx context.Context, name string, now time.Time) error {
	c, err := m.Get(name)
	if err != nil {
		return err
	}
	h, err := model.GetUploadHistory(ctx, m.store, name)
	if err != nil {
		return err
	}

	today := h.Since(utils.StartOfDay(now.In(m.loc)))
	if len(today) >= c.DailyVideoLimit {
		m.warning("daily limit reached", "channel", name, "uploads", len(today), "limit", c.DailyVideoLimit)
		return fmt.Errorf("%w: %d/%d", ErrDailyLimit, len(today), c.DailyVideoLimit)
	}

	last, ok := h.Last()
	if !ok {
		return nil
	}
	since := now.Sub(last.Time)
	if since < time.Duration(c.MinUploadInterval)*time.Minute {
		m.warning("upload interval not met", "channel", name, "minutes", since.Minutes(), "min", c.MinUploadInterval)
		return fmt.Errorf("%w: %.1f/%d min", ErrTooSoon, since.Minutes(), c.MinUploadInterval)
	}
	return nil
}

// RecordUpload records an upload for rate limiting.
func (m *Manager) RecordUpload(ctx context.Context, name, videoID, topic string, now time.Time) error {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	err := model.AddUpload(ctx, m.store, name, model.Upload{Time: now, VideoID: videoID, Topic: topic}, now.Add(-historyRetention))
	if err != nil {
		return fmt.Errorf("could not record upload for %s: %w", name, err)
	}
	return nil
}

// WriteSample writes a sample channels file with two channels to path.
func WriteSample(path string) error {
	tr := New("motivation_tr", []string{
		"başarı hikayeleri",
		"motivasyon sözleri",
		"kişisel gelişim",
		"hayat dersleri",
		"pozitif düşünce",
	}, "0 9,15,21 * * *")
	tr.Language = "tr"
	tr.Voice = "tr-TR-EmelNeural-Female"
	tr.Tags = []string{"motivasyon", "başarı", "kişisel gelişim", "türkçe"}

	en := New("tech_en", []string{
		"artificial intelligence future",
		"technology trends",
		"programming tips",
		"tech innovations",
		"digital transformation",
	}, "0 10,18 * * *")
	en.Tags = []string{"tech", "technology", "AI", "programming"}
	en.DailyVideoLimit = 2

	return writeFile(path, []Config{tr, en})
}

func readFile(path string) ([]Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	switch ext(path) {
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBadExtension, path)
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return f.Channels, nil
}

func writeFile(path string, chans []Config) error {
	f := file{Channels: chans}
	if f.Channels == nil {
		f.Channels = []Config{}
	}
	var b []byte
	switch ext(path) {
	case ".json":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(f); err != nil {
			return err
		}
		b = buf.Bytes()
	case ".yaml", ".yml":
		var err error
		b, err = yaml.Marshal(f)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrBadExtension, path)
	}
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func (m *Manager) debug(msg string, args ...interface{}) {
	if m.log != nil {
		m.log.Debug(msg, args...)
	}
}

func (m *Manager) info(msg string, args ...interface{}) {
	if m.log != nil {
		m.log.Info(msg, args...)
	}
}

func (m *Manager) warning(msg string, args ...interface{}) {
	if m.log != nil {
		m.log.Warning(msg, args...)
	}
}
