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

package model

import "github.com/ausocean/openfish/datastore"

// RegisterEntities registers the datastore entities in one go. It must be
// called before queries that return entities by kind.
func RegisterEntities() {
	datastore.RegisterEntity(typeUploadHistory, func() datastore.Entity { return new(UploadHistory) })
	datastore.RegisterEntity(typeTopicUsage, func() datastore.Entity { return new(TopicUsage) })
	datastore.RegisterEntity(typeNotification, func() datastore.Entity { return new(Notification) })
}
