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

// Package gauth provides Google OAuth2 credential handling for Ocean
// Shorts, along with access to secrets stored in files or Google Storage
// buckets and signing of JSON Web Tokens.
package gauth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/ausocean/utils/filemap"
)

// The URL scheme that represents a Google Storage Bucket.
const gsbScheme = "gs://"

// ErrNoSecrets is returned when the secrets environment variable is not defined.
var ErrNoSecrets = errors.New("secrets environment variable not defined")

// GetSecrets looks up secrets from either a file or Google Storage
// bucket specified by the <PROJECTID>_SECRETS environment variable.
// Each line is a colon-separated key and value.
// The keys argument specifies required keys.
func GetSecrets(ctx context.Context, projectID string, keys []string) (map[string]string, error) {
	var m map[string]string
	ev := strings.ToUpper(projectID) + "_SECRETS"
	url := os.Getenv(ev)
	if url == "" {
		return m, fmt.Errorf("%s: %w", ev, ErrNoSecrets)
	}

	var bytes []byte
	var err error
	if strings.HasPrefix(url, gsbScheme) {
		bytes, err = ReadGoogleStorageBucket(ctx, url)
	} else {
		bytes, err = os.ReadFile(url)
	}
	if err != nil {
		return m, err
	}

	// Strip carriage returns, if any.
	s := strings.ReplaceAll(string(bytes), "\r", "")

	// There is one colon-separated secret per line.
	m = filemap.Split(s, "\n", ":")
	for _, k := range keys {
		v := m[k]
		if v == "" {
			return m, fmt.Errorf("missing key %s", k)
		}
	}
	return m, nil
}

// ReadGoogleStorageBucket read the contents of the Google Storage
// bucket specified by the URL.  The URL must take the form:
// gs://<bucket_name>/<object_name>
func ReadGoogleStorageBucket(ctx context.Context, url string) ([]byte, error) {
	bkt, obj, err := googleStorageAddr(url)
	if err != nil {
		return nil, err
	}

	clt, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create GSB client: %w", err)
	}
	defer clt.Close()

	r, err := clt.Bucket(bkt).Object(obj).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create GSB reader: %w", err)
	}
	defer r.Close()

	bytes, err := io.ReadAll(r)
	if err != nil {
		return bytes, fmt.Errorf("cannot read GSB: %w", err)
	}
	return bytes, nil
}

// WriteGoogleStorageBucket writes data to the Google Storage object
// specified by the URL, replacing any existing contents.
func WriteGoogleStorageBucket(ctx context.Context, url string, data []byte) error {
	bkt, obj, err := googleStorageAddr(url)
	if err != nil {
		return err
	}

	clt, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("cannot create GSB client: %w", err)
	}
	defer clt.Close()

	w := clt.Bucket(bkt).Object(obj).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("cannot write GSB: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("could not close written object: %w", err)
	}
	return nil
}

// GetSecret gets a single secret from either a file or Google Storage
// bucket specified by the <PROJECTID>_SECRETS environment variable.
func GetSecret(ctx context.Context, projectID, key string) (string, error) {
	secrets, err := GetSecrets(ctx, projectID, []string{key})
	if err != nil {
		return "", err
	}
	return secrets[key], nil
}

// GetHexSecret gets a single hex-encoded secret and returns the decoded bytes.
func GetHexSecret(ctx context.Context, projectID, key string) ([]byte, error) {
	v, err := GetSecret(ctx, projectID, key)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(v)
}

// googleStorageAddr splits a gs://<bucket>/<object> URL into its bucket
// and object names.
func googleStorageAddr(addr string) (bucket, object string, err error) {
	if !strings.HasPrefix(addr, gsbScheme) {
		return "", "", fmt.Errorf("invalid GSB URL %s", addr)
	}
	rest := addr[len(gsbScheme):]
	sep := strings.IndexByte(rest, '/')
	if sep <= 0 || sep == len(rest)-1 {
		return "", "", fmt.Errorf("invalid GSB URL %s", addr)
	}
	return rest[:sep], rest[sep+1:], nil
}
