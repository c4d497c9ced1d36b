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

// Package video composes short videos from stock footage and a narration
// script.
package video

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Subtitle positions.
const (
	PositionTop    = "top"
	PositionCenter = "center"
	PositionBottom = "bottom"
)

// Exported errors.
var (
	ErrBadAspect = errors.New("unsupported video aspect")
	ErrNoClips   = errors.New("no stock clips found")
)

// Params are the generation parameters for one video.
type Params struct {
	Subject          string `json:"video_subject"`
	Language         string `json:"video_language"`
	Voice            string `json:"voice_name"`
	Aspect           string `json:"video_aspect"`
	ClipDuration     int    `json:"video_clip_duration"` // Seconds.
	Paragraphs       int    `json:"paragraph_number"`
	SubtitleEnabled  bool   `json:"subtitle_enabled"`
	SubtitlePosition string `json:"subtitle_position"`
}

// ClipCount returns the number of clips used for the video.
func (p Params) ClipCount() int {
	return max(3, p.Paragraphs*2)
}

// Duration returns the total length of the video.
func (p Params) Duration() time.Duration {
	return time.Duration(p.ClipDuration*p.ClipCount()) * time.Second
}

// Result is the outcome of generating a video.
type Result struct {
	TaskID string   `json:"task_id"`
	Videos []string `json:"videos"`
	Script string   `json:"script"`
	Terms  []string `json:"terms"`
}

// Generator generates videos.
type Generator interface {
	Generate(ctx context.Context, taskID string, p Params) (*Result, error)
}

// Resolution returns the output frame size for an aspect ratio.
func Resolution(aspect string) (width, height int, err error) {
	switch aspect {
	case "9:16":
		return 1080, 1920, nil
	case "16:9":
		return 1920, 1080, nil
	case "1:1":
		return 1080, 1080, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrBadAspect, aspect)
	}
}

// Orientation returns the stock footage orientation matching an aspect ratio.
func Orientation(aspect string) string {
	switch aspect {
	case "16:9":
		return "landscape"
	case "1:1":
		return "square"
	default:
		return "portrait"
	}
}

// Alignment returns the subtitle alignment, in numpad layout, for a position.
func Alignment(position string) int {
	switch position {
	case PositionCenter:
		return 5
	case PositionBottom:
		return 2
	default:
		return 8
	}
}

// TaskDir returns the working directory for a task.
func TaskDir(workDir, taskID string) string {
	return filepath.Join(workDir, "tasks", taskID)
}

// OutputPath returns the path of the final video for a task.
func OutputPath(workDir, taskID string) string {
	return filepath.Join(TaskDir(workDir, taskID), "final-1.mp4")
}
