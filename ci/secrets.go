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

// Package ci wires the application into a hosted CI service: it writes
// configuration and credentials from secrets injected into the job
// environment, and renders the workflow that runs the job on a schedule.
package ci

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ausocean/shorts/config"
	"github.com/ausocean/shorts/gauth"
	"github.com/ausocean/shorts/utils"
)

// Secret names.
const (
	SecretAPIKey       = config.APIKeyEnv
	SecretClientSecret = "CLIENT_SECRET_JSON"
	SecretToken        = "TOKEN_JSON"
	SecretChannels     = "CHANNELS_CONFIG"
)

// DefaultChannel is the channel credentials are written for when none is
// given.
const DefaultChannel = "motivation_en"

// Paths written below the repository root.
const (
	ConfigFile     = "config.yaml"
	CredentialsDir = "credentials"
	ChannelsFile   = "config/channels.json"
)

// ErrMissingSecret is returned when a required secret is not set.
var ErrMissingSecret = errors.New("missing required secret")

// Secret describes a secret the workflow expects.
type Secret struct {
	Name        string
	Content     string
	Required    bool
	Destination string
}

// Secrets lists the secrets to register with the CI service.
var Secrets = []Secret{
	{
		Name:        SecretAPIKey,
		Content:     "Pexels API key",
		Required:    true,
		Destination: ConfigFile,
	},
	{
		Name:        SecretClientSecret,
		Content:     "full contents of the OAuth client secret JSON file",
		Required:    true,
		Destination: filepath.Join(CredentialsDir, "<channel>_client_secret.json"),
	},
	{
		Name:        SecretToken,
		Content:     "full contents of the OAuth token JSON file",
		Required:    true,
		Destination: filepath.Join(CredentialsDir, "<channel>_token.json"),
	},
	{
		Name:        SecretChannels,
		Content:     "channels configuration JSON",
		Destination: ChannelsFile,
	},
}

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// MissingSecrets returns the names of required secrets that are unset or
// blank.
func MissingSecrets(lookup LookupFunc) []string {
	var missing []string
	for _, s := range Secrets {
		if !s.Required {
			continue
		}
		v, ok := lookup(s.Name)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

// Materialise writes the application config, the channel's credentials
// and, if given, the channels configuration from secrets, below root. It
// returns the paths written.
func Materialise(lookup LookupFunc, root, channel string) ([]string, error) {
	if missing := MissingSecrets(lookup); len(missing) != 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSecret, strings.Join(missing, ", "))
	}
	if channel == "" {
		channel = DefaultChannel
	}
	get := func(name string) string {
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}

	var written []string
	cfg := config.Default()
	cfg.LLMProvider = config.ProviderPollinations
	cfg.PexelsAPIKeys = []string{get(SecretAPIKey)}
	path := filepath.Join(root, ConfigFile)
	err := cfg.Save(path)
	if err != nil {
		return nil, fmt.Errorf("could not write config: %w", err)
	}
	written = append(written, path)

	secret := get(SecretClientSecret)
	if !json.Valid([]byte(secret)) {
		return written, fmt.Errorf("%s is not valid JSON", SecretClientSecret)
	}
	token := get(SecretToken)
	_, err = gauth.DecodeToken([]byte(token))
	if err != nil {
		return written, fmt.Errorf("%s is not a valid token: %w", SecretToken, err)
	}

	dir := filepath.Join(root, CredentialsDir)
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return written, err
	}
	for _, f := range []struct{ kind, content string }{
		{gauth.KindClientSecret, secret},
		{gauth.KindToken, token},
	} {
		path := filepath.Join(dir, utils.CredentialName(channel, f.kind))
		err = os.WriteFile(path, []byte(f.content), 0600)
		if err != nil {
			return written, fmt.Errorf("could not write %s: %w", path, err)
		}
		written = append(written, path)
	}

	channels := get(SecretChannels)
	if channels == "" {
		return written, nil
	}
	if !json.Valid([]byte(channels)) {
		return written, fmt.Errorf("%s is not valid JSON", SecretChannels)
	}
	path = filepath.Join(root, ChannelsFile)
	err = os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return written, err
	}
	err = os.WriteFile(path, []byte(channels), 0644)
	if err != nil {
		return written, fmt.Errorf("could not write %s: %w", path, err)
	}
	return append(written, path), nil
}

// WriteSecretsTable writes the secrets table to w.
func WriteSecretsTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREQUIRED\tCONTENT\tWRITTEN TO")
	for _, s := range Secrets {
		req := "no"
		if s.Required {
			req = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, req, s.Content, s.Destination)
	}
	return tw.Flush()
}
