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
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Cue is one subtitle.
type Cue struct {
	Start, End time.Duration
	Text       string
}

var sentenceEnd = regexp.MustCompile(`([.!?…]+)\s+`)

// Sentences splits text into sentences.
func Sentences(text string) []string {
	text = sentenceEnd.ReplaceAllString(text, "$1\n")
	var out []string
	for _, s := range strings.Split(text, "\n") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Cues spreads the sentences of text over total, giving each sentence
// time in proportion to its length.
func Cues(text string, total time.Duration) []Cue {
	sentences := Sentences(text)
	var chars int
	for _, s := range sentences {
		chars += utf8.RuneCountInString(s)
	}
	if chars == 0 {
		return nil
	}

	cues := make([]Cue, 0, len(sentences))
	var start time.Duration
	var seen int
	for i, s := range sentences {
		seen += utf8.RuneCountInString(s)
		end := time.Duration(int64(total) * int64(seen) / int64(chars)).Round(time.Millisecond)
		if i == len(sentences)-1 {
			end = total
		}
		cues = append(cues, Cue{Start: start, End: end, Text: s})
		start = end
	}
	return cues
}

// FormatSRT renders cues in SubRip format.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(c.Start), srtTime(c.End), c.Text)
	}
	return b.String()
}

// WriteSRT writes subtitles for text spread over total to path.
func WriteSRT(path, text string, total time.Duration) error {
	return os.WriteFile(path, []byte(FormatSRT(Cues(text, total))), 0644)
}

func srtTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
