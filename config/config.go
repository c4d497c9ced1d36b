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

// Package config loads the Ocean Shorts application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Script providers.
const (
	ProviderPollinations = "pollinations"
	ProviderNone         = "none"
)

// Defaults.
const (
	DefaultFile     = "config.yaml"
	DefaultTimezone = "Europe/Istanbul"
	DefaultLogFile  = "logs/shorts.log"
	DefaultWorkDir  = "storage"
	DefaultStoreDir = "store"
	DefaultAddr     = ":8080"
	DefaultPeriod   = time.Hour
)

// APIKeyEnv names the environment variable holding a Pexels API key.
const APIKeyEnv = "PEXELS_API_KEY"

// Levels maps log level names to logging levels.
var Levels = map[string]int8{
	"debug":   logging.Debug,
	"info":    logging.Info,
	"warning": logging.Warning,
	"error":   logging.Error,
	"fatal":   logging.Fatal,
}

// Config is the application configuration.
type Config struct {
	PexelsAPIKeys []string     `yaml:"pexels_api_keys"`
	LLMProvider   string       `yaml:"llm_provider"`
	VideoSource   string       `yaml:"video_source"`
	LogLevel      string       `yaml:"log_level"`
	LogFile       string       `yaml:"log_file"`
	Timezone      string       `yaml:"timezone"`
	WorkDir       string       `yaml:"work_dir"`
	StoreDir      string       `yaml:"store_dir"`
	FFmpegPath    string       `yaml:"ffmpeg_path"`
	Latitude      float64      `yaml:"latitude"`
	Longitude     float64      `yaml:"longitude"`
	HTTP          HTTPConfig   `yaml:"http"`
	Notify        NotifyConfig `yaml:"notify"`
}

// HTTPConfig configures the trigger API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// NotifyConfig configures failure notifications.
type NotifyConfig struct {
	Recipient string        `yaml:"recipient"`
	Period    time.Duration `yaml:"period"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LLMProvider: ProviderPollinations,
		VideoSource: "pexels",
		LogLevel:    "info",
		LogFile:     DefaultLogFile,
		Timezone:    DefaultTimezone,
		WorkDir:     DefaultWorkDir,
		StoreDir:    DefaultStoreDir,
		FFmpegPath:  "ffmpeg",
		HTTP:        HTTPConfig{Addr: DefaultAddr},
		Notify:      NotifyConfig{Period: DefaultPeriod},
	}
}

// Load reads the configuration from path over the defaults. Environment
// variables referenced as $VAR or ${VAR} are expanded. A missing file
// yields the defaults. The PEXELS_API_KEY environment variable, when set,
// adds to the configured keys.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	var keys []string
	for _, k := range cfg.PexelsAPIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if k := strings.TrimSpace(os.Getenv(APIKeyEnv)); k != "" && !slices.Contains(keys, k) {
		keys = append(keys, k)
	}
	cfg.PexelsAPIKeys = keys

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LLMProvider, validation.Required, validation.In(ProviderPollinations, ProviderNone)),
		validation.Field(&c.VideoSource, validation.Required, validation.In("pexels")),
		validation.Field(&c.LogLevel, validation.Required, validation.By(validLevel)),
		validation.Field(&c.Timezone, validation.Required, validation.By(validTimezone)),
		validation.Field(&c.WorkDir, validation.Required),
		validation.Field(&c.StoreDir, validation.Required),
		validation.Field(&c.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&c.Longitude, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&c.Notify, validation.By(func(interface{}) error {
			if c.Notify.Period < 0 {
				return errors.New("period must not be negative")
			}
			return nil
		})),
	)
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Level returns the configured logging level.
func (c *Config) Level() int8 {
	return Levels[c.LogLevel]
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

func validLevel(v interface{}) error {
	if _, ok := Levels[v.(string)]; !ok {
		return fmt.Errorf("unknown level %q", v)
	}
	return nil
}

func validTimezone(v interface{}) error {
	_, err := time.LoadLocation(v.(string))
	return err
}
