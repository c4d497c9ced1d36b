/*
DESCRIPTION
  watcher.go provides a tool for watching a file for modifications and
  performing an action when the file is modified.

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

package scheduler

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ausocean/utils/logging"
	"github.com/fsnotify/fsnotify"
)

// WatchFile watches a file for modifications and calls onWrite when the
// file is written or replaced, until ctx is done. The directory is
// watched instead of the file, since editors and atomic writes replace
// the file rather than modify it.
// See https://godocs.io/github.com/fsnotify/fsnotify#hdr-Watching_files
func WatchFile(ctx context.Context, file string, onWrite func(), l logging.Logger) error {
	file = filepath.Clean(file)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}

	err = watcher.Add(filepath.Dir(file))
	if err != nil {
		watcher.Close()
		return fmt.Errorf("could not add file %s to watcher: %w", file, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					l.Warning("watcher events chan closed, terminating")
					return
				}
				if filepath.Clean(event.Name) == file && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					l.Info("file modification event", "file", file, "op", event.Op.String())
					onWrite()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					l.Warning("watcher error chan closed, terminating")
					return
				}
				l.Error("file watcher error", "error", err)
			}
		}
	}()
	return nil
}
