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

// Package script writes narration scripts for short videos.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/shorts/utils"
)

// PollinationsURL is the Pollinations text generation endpoint.
const PollinationsURL = "https://text.pollinations.ai/"

// ErrEmptyScript is returned when a writer produces no usable text.
var ErrEmptyScript = errors.New("empty script")

// Request describes the script to write.
type Request struct {
	Subject    string
	Language   string
	Paragraphs int
}

// Writer writes a narration script.
type Writer interface {
	Write(ctx context.Context, req Request) (string, error)
}

// New returns the writer for the named provider, "pollinations" or
// "none". Provider failures fall back to the subject itself.
func New(provider string, log logging.Logger) (Writer, error) {
	switch provider {
	case "", "none":
		return Static{}, nil
	case "pollinations":
		return &Fallback{Primary: NewPollinations(), Secondary: Static{}, Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown script provider: %s", provider)
	}
}

// Pollinations writes scripts using the Pollinations text API.
type Pollinations struct {
	BaseURL string
	HTTP    *http.Client
}

// NewPollinations returns a Pollinations writer using the public endpoint.
func NewPollinations() *Pollinations {
	return &Pollinations{BaseURL: PollinationsURL, HTTP: &http.Client{Timeout: 60 * time.Second}}
}

// Write implements Writer.
func (p *Pollinations) Write(ctx context.Context, req Request) (string, error) {
	u := strings.TrimSuffix(p.BaseURL, "/") + "/" + url.PathEscape(Prompt(req))
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.HTTP.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("script request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("could not read script response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("script request returned %s", resp.Status)
	}
	s := Clean(string(body), req.Paragraphs)
	if s == "" {
		return "", ErrEmptyScript
	}
	return s, nil
}

// Prompt returns the text generation prompt for req.
func Prompt(req Request) string {
	n := max(req.Paragraphs, 1)
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf("Write a script for a short video about: %s.\n"+
		"Write exactly %d short paragraphs in the language with code %q.\n"+
		"Return only the narration text. Do not use markdown, headings, titles, "+
		"speaker names, stage directions or emojis.", req.Subject, n, lang)
}

// Static returns the subject itself as the script.
type Static struct{}

// Write implements Writer.
func (Static) Write(_ context.Context, req Request) (string, error) {
	s := strings.TrimSpace(req.Subject)
	if s == "" {
		return "", ErrEmptyScript
	}
	if !strings.ContainsAny(s[len(s)-1:], ".!?") {
		s += "."
	}
	return s, nil
}

// Fallback uses Secondary when Primary fails.
type Fallback struct {
	Primary   Writer
	Secondary Writer
	Log       logging.Logger
}

// Write implements Writer.
func (f *Fallback) Write(ctx context.Context, req Request) (string, error) {
	s, err := f.Primary.Write(ctx, req)
	if err == nil {
		return s, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	if f.Log != nil {
		f.Log.Warning("script writer failed, using fallback", "subject", req.Subject, "error", err)
	}
	return f.Secondary.Write(ctx, req)
}

var (
	fence     = regexp.MustCompile("(?m)^```.*$")
	heading   = regexp.MustCompile(`(?m)^\s*#+\s*`)
	label     = regexp.MustCompile(`(?mi)^\s*(title|script|narrator|paragraph \d+)\s*:\s*`)
	emphasis  = regexp.MustCompile(`[*_]{1,3}`)
	blankLine = regexp.MustCompile(`\n\s*\n`)
)

// Clean removes markdown markers and labels from generated text and keeps
// at most n paragraphs. Paragraphs are separated by a blank line.
func Clean(s string, n int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = fence.ReplaceAllString(s, "")
	s = heading.ReplaceAllString(s, "")
	s = label.ReplaceAllString(s, "")
	s = emphasis.ReplaceAllString(s, "")

	var paras []string
	for _, p := range blankLine.Split(s, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			paras = append(paras, p)
		}
	}
	if n > 0 && len(paras) > n {
		paras = paras[:n]
	}
	return strings.Join(paras, "\n\n")
}

// Summary returns the first n characters of script.
func Summary(script string, n int) string {
	return utils.Truncate(strings.TrimSpace(script), n)
}
