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

package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ausocean/utils/logging"
	"golang.org/x/sync/errgroup"

	"github.com/ausocean/shorts/pexels"
	"github.com/ausocean/shorts/script"
)

// Source finds and fetches stock clips. It is satisfied by *pexels.Client.
type Source interface {
	SearchVideos(ctx context.Context, query, orientation string, perPage int) ([]pexels.Video, error)
	Download(ctx context.Context, url, path string) error
}

// Pipeline generates videos by writing a script, fetching stock clips
// for terms drawn from it and rendering them with ffmpeg.
type Pipeline struct {
	Writer      script.Writer
	Source      Source
	WorkDir     string
	FFmpeg      string // Path to ffmpeg; "ffmpeg" if empty.
	Concurrency int    // Parallel downloads; 4 if zero.
	Log         logging.Logger

	// render runs ffmpeg; replaced in tests.
	render func(ctx context.Context, ffmpeg string, args ...string) error
}

// Number of search terms used per video.
const maxTerms = 5

// Generate implements Generator.
func (p *Pipeline) Generate(ctx context.Context, taskID string, params Params) (*Result, error) {
	w, h, err := Resolution(params.Aspect)
	if err != nil {
		return nil, err
	}
	if params.ClipDuration <= 0 {
		return nil, fmt.Errorf("invalid clip duration: %d", params.ClipDuration)
	}
	dir := TaskDir(p.WorkDir, taskID)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("could not create task dir: %w", err)
	}

	text, err := p.Writer.Write(ctx, script.Request{Subject: params.Subject, Language: params.Language, Paragraphs: params.Paragraphs})
	if err != nil {
		return nil, fmt.Errorf("could not write script: %w", err)
	}
	err = os.WriteFile(filepath.Join(dir, "script.txt"), []byte(text), 0644)
	if err != nil {
		return nil, err
	}

	terms := Terms(params.Subject, text, maxTerms)
	p.info("generating video", "task", taskID, "subject", params.Subject, "terms", strings.Join(terms, ","))

	clips, err := p.fetchClips(ctx, dir, terms, params.Aspect, w, h, params.ClipCount())
	if err != nil {
		return nil, err
	}

	comp := Composition{
		Clips:        clips,
		ClipDuration: time.Duration(params.ClipDuration) * time.Second,
		Width:        w,
		Height:       h,
		Alignment:    Alignment(params.SubtitlePosition),
		Output:       OutputPath(p.WorkDir, taskID),
	}
	if params.SubtitleEnabled {
		comp.Subtitles = filepath.Join(dir, "subtitles.srt")
		err = WriteSRT(comp.Subtitles, text, params.Duration())
		if err != nil {
			return nil, fmt.Errorf("could not write subtitles: %w", err)
		}
	}

	render := p.render
	if render == nil {
		render = runFFmpeg
	}
	ffmpeg := p.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	err = render(ctx, ffmpeg, BuildFFmpegArgs(comp)...)
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(comp.Output)
	if err != nil {
		return nil, fmt.Errorf("no video produced: %w", err)
	}

	return &Result{TaskID: taskID, Videos: []string{comp.Output}, Script: text, Terms: terms}, nil
}

// fetchClips downloads n clips for terms into dir. Clips are repeated if
// fewer are found.
func (p *Pipeline) fetchClips(ctx context.Context, dir string, terms []string, aspect string, w, h, n int) ([]string, error) {
	type pick struct {
		id  int
		url string
	}
	var picks []pick
	seen := make(map[int]bool)
	for _, term := range terms {
		if len(picks) >= n {
			break
		}
		videos, err := p.Source.SearchVideos(ctx, term, Orientation(aspect), n)
		if errors.Is(err, pexels.ErrRateLimited) || errors.Is(err, pexels.ErrNoAPIKey) {
			return nil, err
		}
		if err != nil {
			p.warning("clip search failed", "term", term, "error", err)
			continue
		}
		for _, v := range videos {
			f, ok := pexels.BestFile(v, w, h)
			if !ok || seen[v.ID] {
				continue
			}
			seen[v.ID] = true
			picks = append(picks, pick{id: v.ID, url: f.Link})
			if len(picks) >= n {
				break
			}
		}
	}
	if len(picks) == 0 {
		return nil, fmt.Errorf("%w for %v", ErrNoClips, terms)
	}

	conc := p.Concurrency
	if conc <= 0 {
		conc = 4
	}
	paths := make([]string, len(picks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for i, pk := range picks {
		paths[i] = filepath.Join(dir, "clips", strconv.Itoa(pk.id)+".mp4")
		g.Go(func() error {
			err := p.Source.Download(gctx, pk.url, paths[i])
			if err != nil {
				return fmt.Errorf("could not download clip %d: %w", pk.id, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return nil, err
	}

	clips := make([]string, n)
	for i := range clips {
		clips[i] = paths[i%len(paths)]
	}
	return clips, nil
}

// Terms returns up to n stock footage search terms: the subject, then the
// most frequent longer words of the script.
func Terms(subject, text string, n int) []string {
	terms := []string{strings.TrimSpace(subject)}
	if terms[0] == "" {
		terms = nil
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if utf8.RuneCountInString(w) < 5 || stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	for _, w := range order {
		if len(terms) >= n {
			break
		}
		if strings.EqualFold(w, subject) {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "their": true, "there": true,
	"these": true, "those": true, "which": true, "while": true, "would": true,
	"could": true, "should": true, "every": true, "where": true, "because": true,
	"being": true, "other": true, "through": true, "before": true, "never": true,
}

func (p *Pipeline) info(msg string, args ...interface{}) {
	if p.Log != nil {
		p.Log.Info(msg, args...)
	}
}

func (p *Pipeline) warning(msg string, args ...interface{}) {
	if p.Log != nil {
		p.Log.Warning(msg, args...)
	}
}
