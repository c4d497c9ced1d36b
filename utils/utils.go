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

// Package utils provides small helpers shared by the Ocean Shorts packages.
package utils

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Truncate returns s cut to at most n runes. YouTube counts title and
// description limits in characters, not bytes, so multi-byte text must
// never be split mid-rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}

// StartOfDay returns midnight of the day containing t, in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CredentialName forms the name of a per-channel credentials file, e.g.
// motivation_tr_token.json.
func CredentialName(channel, kind string) string {
	return channel + "_" + kind + ".json"
}

// ChannelFromCredential is the inverse of CredentialName. It returns false
// if name is not a credentials file of the given kind.
func ChannelFromCredential(name, kind string) (string, bool) {
	suffix := "_" + kind + ".json"
	if !strings.HasSuffix(name, suffix) {
		return "", false
	}
	ch := strings.TrimSuffix(name, suffix)
	return ch, ch != ""
}
