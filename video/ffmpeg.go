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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Encoding settings.
const (
	VideoCodec    = "libx264"
	VideoPreset   = "veryfast"
	VideoCRF      = "23"
	PixelFormat   = "yuv420p"
	FrameRate     = "30"
	AudioCodec    = "aac"
	AudioBitrate  = "128k"
	FastStartFlag = "+faststart"
	SubtitleFont  = "FontSize=14,Outline=2,Shadow=0,MarginV=40"
)

// Composition describes an ffmpeg render.
type Composition struct {
	Clips        []string
	ClipDuration time.Duration
	Width        int
	Height       int
	Subtitles    string // SRT path; empty for none.
	Alignment    int
	Output       string
}

// BuildFFmpegArgs returns the ffmpeg arguments that render c. Each clip is
// trimmed to the clip duration, scaled to cover the frame and cropped.
// The clips are concatenated, subtitles burned in, and a silent stereo
// track added so the output plays everywhere.
func BuildFFmpegArgs(c Composition) []string {
	dur := seconds(c.ClipDuration)
	total := seconds(c.ClipDuration * time.Duration(len(c.Clips)))

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, clip := range c.Clips {
		args = append(args, "-t", dur, "-i", clip)
	}
	audio := len(c.Clips)
	args = append(args, "-f", "lavfi", "-t", total, "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")

	var f strings.Builder
	for i := range c.Clips {
		fmt.Fprintf(&f, "[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%s[v%d];",
			i, c.Width, c.Height, c.Width, c.Height, FrameRate, i)
	}
	for i := range c.Clips {
		fmt.Fprintf(&f, "[v%d]", i)
	}
	fmt.Fprintf(&f, "concat=n=%d:v=1:a=0", len(c.Clips))
	if c.Subtitles != "" {
		fmt.Fprintf(&f, "[cat];[cat]subtitles=filename='%s':force_style='Alignment=%d,%s'",
			escapeFilterValue(c.Subtitles), c.Alignment, SubtitleFont)
	}
	f.WriteString("[out]")

	args = append(args,
		"-filter_complex", f.String(),
		"-map", "[out]",
		"-map", strconv.Itoa(audio)+":a",
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", VideoCRF,
		"-pix_fmt", PixelFormat,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-shortest",
		"-movflags", FastStartFlag,
		c.Output,
	)
	return args
}

// escapeFilterValue escapes a filter option value for use between single
// quotes in a filtergraph. The value is unquoted twice, first by the graph
// parser and then by the option parser. Quotes cannot be escaped inside
// quotes, so each is emitted by closing and reopening the quoted run.
func escapeFilterValue(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`).Replace(s)
	return strings.ReplaceAll(s, `'`, `'\''`)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// runFFmpeg runs ffmpeg with args, returning its output on failure.
func runFFmpeg(ctx context.Context, ffmpeg string, args ...string) error {
	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
