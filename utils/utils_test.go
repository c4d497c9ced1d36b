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

package utils

import (
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "hello", n: 10, want: "hello"},
		{in: "hello", n: 5, want: "hello"},
		{in: "hello", n: 3, want: "hel"},
		{in: "hello", n: 0, want: ""},
		{in: "başarı hikayeleri", n: 6, want: "başarı"},
		{in: "ğüşöç", n: 2, want: "ğü"},
		{in: "", n: 2, want: ""},
	}
	for _, test := range tests {
		got := Truncate(test.in, test.n)
		if got != test.want {
			t.Errorf("Truncate(%q, %d): got:%q want:%q", test.in, test.n, got, test.want)
		}
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("TRT", 3*60*60)
	in := time.Date(2026, 3, 14, 22, 45, 10, 5, loc)
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	if got := StartOfDay(in); !got.Equal(want) {
		t.Errorf("unexpected start of day: got:%v want:%v", got, want)
	}
}

func TestCredentialName(t *testing.T) {
	name := CredentialName("tech_en", "token")
	if name != "tech_en_token.json" {
		t.Fatalf("unexpected credential name: %s", name)
	}
	ch, ok := ChannelFromCredential(name, "token")
	if !ok || ch != "tech_en" {
		t.Errorf("unexpected channel: got:%s,%t want:tech_en,true", ch, ok)
	}
	if _, ok := ChannelFromCredential("tech_en_client_secret.json", "token"); ok {
		t.Errorf("client secret file reported as token")
	}
	if _, ok := ChannelFromCredential("_token.json", "token"); ok {
		t.Errorf("empty channel name reported as valid")
	}
}
