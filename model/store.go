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

// Package model defines the entities Ocean Shorts persists between runs,
// namely per-channel upload history, topic usage and notification times.
package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/ausocean/openfish/datastore"
)

// cloudPrefix denotes a Google Cloud datastore rather than a local directory.
const cloudPrefix = "cloud:"

// storeID is the datastore ID used by the file store.
const storeID = "shorts"

// NewStore returns a datastore. A location of the form cloud:<project>
// selects the Google Cloud datastore of that project, anything else is
// interpreted as a directory for the file datastore.
func NewStore(ctx context.Context, location string) (datastore.Store, error) {
	if strings.HasPrefix(location, cloudPrefix) {
		project := strings.TrimPrefix(location, cloudPrefix)
		if project == "" {
			return nil, fmt.Errorf("missing cloud project in store location %q", location)
		}
		return datastore.NewStore(ctx, "cloud", project, "")
	}
	if location == "" {
		location = "store"
	}
	return datastore.NewStore(ctx, "file", storeID, location)
}
