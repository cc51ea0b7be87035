// data.go
//
// A persistence core for headless content types and their relations
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of contentdb.
// contentdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// contentdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with contentdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package helpers

import (
	"context"
	"testing"

	"github.com/localnerve/contentdb/internal/services"
	"github.com/localnerve/contentdb/internal/types"
)

// CreateTestEntries creates one entry of uid per document and returns the
// created documents in order
func CreateTestEntries(t *testing.T, svc *services.EntityService, uid string, docs ...map[string]any) []services.Document {
	t.Helper()
	out := make([]services.Document, 0, len(docs))
	for _, doc := range docs {
		created, err := svc.Create(context.Background(), uid, doc)
		if err != nil {
			t.Fatalf("Failed to create %s entry: %v", uid, err)
		}
		out = append(out, created)
	}
	return out
}

// EntryID reads the id of a populated document
func EntryID(t *testing.T, doc services.Document) uint64 {
	t.Helper()
	id, err := types.ToID(doc["id"])
	if err != nil {
		t.Fatalf("Document has no usable id: %v", err)
	}
	return id
}
