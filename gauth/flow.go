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

package gauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Timeout for the user to complete the consent flow.
const authTimeout = 5 * time.Minute

// Authorise runs the installed-app OAuth2 consent flow. A loopback HTTP
// server receives the authorisation code, which is exchanged for a token
// using PKCE. The consent URL is written to out for the user to open.
func Authorise(ctx context.Context, cfg *oauth2.Config, out io.Writer) (*oauth2.Token, error) {
	return authorise(ctx, cfg, func(url string) {
		fmt.Fprintf(out, "Open the following URL in a browser to authorise access:\n\n%s\n\n", url)
	})
}

// authorise performs the flow, calling prompt with the consent URL once
// the loopback listener is ready.
func authorise(ctx context.Context, cfg *oauth2.Config, prompt func(string)) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("could not listen for redirect: %w", err)
	}
	defer ln.Close()

	c := *cfg
	c.RedirectURL = "http://" + ln.Addr().String() + "/"

	state, err := randomState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	type result struct {
		code string
		err  error
	}
	ch := make(chan result, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			var res result
			switch {
			case q.Get("error") != "":
				res.err = fmt.Errorf("authorisation denied: %s", q.Get("error"))
			case q.Get("state") != state:
				res.err = errors.New("state mismatch")
			case q.Get("code") == "":
				res.err = errors.New("missing authorisation code")
			default:
				res.code = q.Get("code")
			}
			if res.err != nil {
				http.Error(w, res.err.Error(), http.StatusBadRequest)
			} else {
				fmt.Fprintln(w, "Authorisation complete. You may close this window.")
			}
			select {
			case ch <- res:
			default:
			}
		}),
	}
	go srv.Serve(ln)
	defer srv.Close()

	prompt(c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier)))

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("authorisation not completed: %w", ctx.Err())
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := c.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("could not exchange authorisation code: %w", err)
	}
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("could not generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
