/*
DESCRIPTION
  config.go defines the per-channel configuration and its file formats.

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

package channel

import (
	"encoding/json"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Channel defaults.
const (
	DefaultLanguage         = "en"
	DefaultVoice            = "en-US-JennyNeural-Female"
	DefaultAspect           = "9:16"
	DefaultClipDuration     = 5
	DefaultParagraphs       = 2
	DefaultSubtitlePosition = "top"
	DefaultPrivacy          = "public"
	DefaultCategory         = "22"
	DefaultMinInterval      = 30
	DefaultDailyLimit       = 3
)

// SummaryPlaceholder is replaced by the start of the script in descriptions.
const SummaryPlaceholder = "{script_summary}"

// DefaultDescription is the description template used when none is set.
const DefaultDescription = SummaryPlaceholder + "\n\n---\n🎬 Bu video otomatik olarak oluşturulmuştur.\n#Shorts #Video"

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config is the configuration of one channel.
type Config struct {
	Name                string   `json:"name" yaml:"name"`
	CredentialsFile     string   `json:"credentials_file" yaml:"credentials_file"`
	Topics              []string `json:"topics" yaml:"topics"`
	Schedule            string   `json:"schedule" yaml:"schedule"`
	Language            string   `json:"language" yaml:"language"`
	Voice               string   `json:"voice" yaml:"voice"`
	VideoAspect         string   `json:"video_aspect" yaml:"video_aspect"`
	VideoClipDuration   int      `json:"video_clip_duration" yaml:"video_clip_duration"`
	ParagraphNumber     int      `json:"paragraph_number" yaml:"paragraph_number"`
	SubtitleEnabled     bool     `json:"subtitle_enabled" yaml:"subtitle_enabled"`
	SubtitlePosition    string   `json:"subtitle_position" yaml:"subtitle_position"`
	DefaultPrivacy      string   `json:"default_privacy" yaml:"default_privacy"`
	NotifySubscribers   bool     `json:"notify_subscribers" yaml:"notify_subscribers"`
	Tags                []string `json:"tags" yaml:"tags"`
	DescriptionTemplate string   `json:"description_template" yaml:"description_template"`
	Category            string   `json:"category" yaml:"category"`
	MinUploadInterval   int      `json:"min_upload_interval_minutes" yaml:"min_upload_interval_minutes"`
	DailyVideoLimit     int      `json:"daily_video_limit" yaml:"daily_video_limit"`
}

// New returns a channel configuration with defaults for everything but
// the name, topics and schedule.
func New(name string, topics []string, schedule string) Config {
	c := defaults()
	c.Name = name
	c.CredentialsFile = name + "_client_secret.json"
	c.Topics = topics
	c.Schedule = schedule
	return c
}

func defaults() Config {
	return Config{
		Language:            DefaultLanguage,
		Voice:               DefaultVoice,
		VideoAspect:         DefaultAspect,
		VideoClipDuration:   DefaultClipDuration,
		ParagraphNumber:     DefaultParagraphs,
		SubtitleEnabled:     true,
		SubtitlePosition:    DefaultSubtitlePosition,
		DefaultPrivacy:      DefaultPrivacy,
		NotifySubscribers:   true,
		Tags:                []string{},
		DescriptionTemplate: DefaultDescription,
		Category:            DefaultCategory,
		MinUploadInterval:   DefaultMinInterval,
		DailyVideoLimit:     DefaultDailyLimit,
	}
}

// config has the fields of Config without its decoding methods.
type config Config

// UnmarshalJSON decodes c, applying defaults to absent fields.
func (c *Config) UnmarshalJSON(b []byte) error {
	v := config(defaults())
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}
	*c = Config(v)
	c.fill()
	return nil
}

// UnmarshalYAML decodes c, applying defaults to absent fields.
func (c *Config) UnmarshalYAML(n *yaml.Node) error {
	v := config(defaults())
	err := n.Decode(&v)
	if err != nil {
		return err
	}
	*c = Config(v)
	c.fill()
	return nil
}

// fill replaces blank strings with their defaults.
func (c *Config) fill() {
	d := defaults()
	for _, f := range []struct{ v, def *string }{
		{&c.Language, &d.Language},
		{&c.Voice, &d.Voice},
		{&c.VideoAspect, &d.VideoAspect},
		{&c.SubtitlePosition, &d.SubtitlePosition},
		{&c.DefaultPrivacy, &d.DefaultPrivacy},
		{&c.DescriptionTemplate, &d.DescriptionTemplate},
		{&c.Category, &d.Category},
	} {
		if *f.v == "" {
			*f.v = *f.def
		}
	}
	if c.CredentialsFile == "" && c.Name != "" {
		c.CredentialsFile = c.Name + "_client_secret.json"
	}
}

// Validate validates the channel configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Match(validName)),
		validation.Field(&c.Schedule, validation.Required),
		validation.Field(&c.VideoAspect, validation.In("9:16", "16:9", "1:1")),
		validation.Field(&c.VideoClipDuration, validation.Min(1)),
		validation.Field(&c.ParagraphNumber, validation.Min(1)),
		validation.Field(&c.SubtitlePosition, validation.In("top", "bottom", "center")),
		validation.Field(&c.DefaultPrivacy, validation.In("public", "unlisted", "private")),
		validation.Field(&c.MinUploadInterval, validation.Min(0)),
		validation.Field(&c.DailyVideoLimit, validation.Min(0)),
	)
}

// file is the layout of a channels file.
type file struct {
	Channels []Config `json:"channels" yaml:"channels"`
}
