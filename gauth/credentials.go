/*
DESCRIPTION
  credentials.go provides per-channel OAuth2 credential storage. Client
  secrets and tokens are kept either as files in a local directory or as
  objects in a Google Storage bucket.

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

package gauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"github.com/ausocean/shorts/utils"
)

// Credential file kinds.
const (
	KindClientSecret = "client_secret"
	KindToken        = "token"
)

// Exported errors.
var (
	ErrNoToken        = errors.New("no valid token and interactive mode is disabled")
	ErrNoClientSecret = errors.New("client secret not found")
)

// Scopes are the OAuth2 scopes needed to upload videos and read channel info.
var Scopes = []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope}

// Credentials locates the OAuth2 client secret and token for a channel.
// Dir is either a local directory or a gs://<bucket>/<prefix> URL.
type Credentials struct {
	Dir     string
	Channel string
	Log     logging.Logger // Optional.

	// authorise runs the interactive consent flow. It defaults to Authorise
	// and is replaced in tests.
	authorise func(context.Context, *oauth2.Config) (*oauth2.Token, error)
}

// NewCredentials returns the credentials for channel stored in dir.
func NewCredentials(dir, channel string, log logging.Logger) *Credentials {
	return &Credentials{Dir: dir, Channel: channel, Log: log}
}

// ClientSecretPath returns the location of the channel's client secret.
func (c *Credentials) ClientSecretPath() string {
	return c.join(utils.CredentialName(c.Channel, KindClientSecret))
}

// TokenPath returns the location of the channel's token.
func (c *Credentials) TokenPath() string {
	return c.join(utils.CredentialName(c.Channel, KindToken))
}

func (c *Credentials) join(name string) string {
	if c.remote() {
		return strings.TrimSuffix(c.Dir, "/") + "/" + name
	}
	return filepath.Join(c.Dir, name)
}

func (c *Credentials) remote() bool {
	return strings.HasPrefix(c.Dir, gsbScheme)
}

func (c *Credentials) read(ctx context.Context, loc string) ([]byte, error) {
	if c.remote() {
		return ReadGoogleStorageBucket(ctx, loc)
	}
	return os.ReadFile(loc)
}

func (c *Credentials) write(ctx context.Context, loc string, data []byte) error {
	if c.remote() {
		return WriteGoogleStorageBucket(ctx, loc, data)
	}
	if err := os.MkdirAll(filepath.Dir(loc), 0700); err != nil {
		return err
	}
	return os.WriteFile(loc, data, 0600)
}

// Config creates and returns an oauth2.Config from the channel's client
// secret and the provided scopes.
func (c *Credentials) Config(ctx context.Context, scopes ...string) (*oauth2.Config, error) {
	if len(scopes) == 0 {
		scopes = Scopes
	}
	secret, err := c.read(ctx, c.ClientSecretPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoClientSecret, c.ClientSecretPath(), err)
	}
	cfg, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("could not create config from client secrets: %w", err)
	}
	return cfg, nil
}

// LoadToken loads the channel's stored token.
func (c *Credentials) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	b, err := c.read(ctx, c.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("could not read token %s: %w", c.TokenPath(), err)
	}
	tok, err := DecodeToken(b)
	if err != nil {
		return nil, fmt.Errorf("could not decode token %s: %w", c.TokenPath(), err)
	}
	return tok, nil
}

// SaveToken stores the channel's token. Local token files are only
// readable by their owner.
func (c *Credentials) SaveToken(ctx context.Context, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("could not encode token: %w", err)
	}
	err = c.write(ctx, c.TokenPath(), b)
	if err != nil {
		return fmt.Errorf("could not save token %s: %w", c.TokenPath(), err)
	}
	if c.Log != nil {
		c.Log.Info("token saved", "channel", c.Channel, "path", c.TokenPath())
	}
	return nil
}

// TokenSource returns a token source for the channel which persists
// refreshed tokens. A stored token is used when present, and refreshed
// when expired if it carries a refresh token. Otherwise, if interactive is
// true, the user is asked to grant access through the installed-app
// consent flow; if not, ErrNoToken is returned.
func (c *Credentials) TokenSource(ctx context.Context, interactive bool) (oauth2.TokenSource, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := c.LoadToken(ctx)
	if err != nil && c.Log != nil {
		c.Log.Debug("no stored token", "channel", c.Channel, "error", err)
	}

	if tok == nil || (!tok.Valid() && tok.RefreshToken == "") {
		if !interactive {
			return nil, fmt.Errorf("%s: %w", c.Channel, ErrNoToken)
		}
		if c.Log != nil {
			c.Log.Info("starting OAuth flow", "channel", c.Channel)
		}
		authorise := c.authorise
		if authorise == nil {
			authorise = func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
				return Authorise(ctx, cfg, os.Stdout)
			}
		}
		tok, err = authorise(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("could not authorise %s: %w", c.Channel, err)
		}
		err = c.SaveToken(ctx, tok)
		if err != nil {
			return nil, err
		}
	}

	save := func(t *oauth2.Token) error { return c.SaveToken(context.Background(), t) }
	ts := NewSmartTokenSource(ctx, cfg, tok, save, c.Log)

	// Force a refresh now so authentication failures surface here rather
	// than mid-upload.
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("could not refresh token for %s: %w", c.Channel, err)
	}
	return ts, nil
}

// tokenJSON covers both the oauth2.Token layout and the authorized-user
// layout written by google-auth tooling.
type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry"`
	Token        string `json:"token"`
}

// DecodeToken decodes a JSON token. Both the golang.org/x/oauth2 layout
// and the google-auth layout (with "token" in place of "access_token")
// are accepted. A token with a refresh token but no usable expiry is
// marked expired so that it is refreshed before use.
func DecodeToken(b []byte) (*oauth2.Token, error) {
	var pt tokenJSON
	if err := json.Unmarshal(b, &pt); err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken:  pt.AccessToken,
		TokenType:    pt.TokenType,
		RefreshToken: pt.RefreshToken,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = pt.Token
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token has neither access nor refresh token")
	}
	if pt.Expiry != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
			t, err := time.Parse(layout, pt.Expiry)
			if err == nil {
				tok.Expiry = t
				break
			}
		}
	}
	if tok.Expiry.IsZero() && tok.RefreshToken != "" {
		tok.Expiry = time.Unix(1, 0)
	}
	return tok, nil
}

// Channel is a channel with a stored token, as reported by ListAuthenticated.
type Channel struct {
	Name            string
	HasClientSecret bool
}

// ListAuthenticated lists the channels that have a stored token in the
// local directory dir, and whether their client secret is also present.
func ListAuthenticated(dir string) ([]Channel, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	present := make(map[string]bool)
	for _, e := range entries {
		present[e.Name()] = true
	}
	var chans []Channel
	for _, e := range entries {
		name, ok := utils.ChannelFromCredential(e.Name(), KindToken)
		if !ok || e.IsDir() {
			continue
		}
		chans = append(chans, Channel{
			Name:            name,
			HasClientSecret: present[utils.CredentialName(name, KindClientSecret)],
		})
	}
	sort.Slice(chans, func(i, j int) bool { return chans[i].Name < chans[j].Name })
	return chans, nil
}
