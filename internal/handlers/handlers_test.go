// handlers_test.go
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

package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/contentdb/internal/config"
	"github.com/localnerve/contentdb/internal/handlers"
	"github.com/localnerve/contentdb/internal/registry/registrytest"
	"github.com/localnerve/contentdb/internal/schema/schematest"
	"github.com/localnerve/contentdb/internal/services"
	"github.com/localnerve/contentdb/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) *fiber.App {
	r := registrytest.Memory(t)
	cfg := &config.Config{DBType: "memory", PrivateAttributes: []string{"metaDescription"}}
	return handlers.NewApp(handlers.AppOptions{
		Config:  cfg,
		Service: services.NewEntityService(r, 32),
	})
}

func call(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	helpers.ParseJSON(t, resp, &out)
	return out
}

func entries(uid string) string {
	return "/api/entries/" + uid
}

func TestCreateAndGet(t *testing.T) {
	app := setupApp(t)

	resp := call(t, app, "POST", entries(schematest.Article), map[string]any{
		"title":    "hello",
		"secret":   "hidden",
		"password": "hunter2",
		"seo":      map[string]any{"metaTitle": "m", "metaDescription": "internal"},
		"sections": []any{map[string]any{"heading": "a"}, map[string]any{"heading": "b"}},
	})
	helpers.AssertStatus(t, resp, fiber.StatusCreated)
	created := decode(t, resp)
	assert.Equal(t, "hello", created["title"])
	assert.NotContains(t, created, "secret")
	assert.NotContains(t, created, "password")
	seo := created["seo"].(map[string]any)
	assert.Equal(t, "m", seo["metaTitle"])
	assert.NotContains(t, seo, "metaDescription")
	assert.Len(t, created["sections"], 2)

	resp = call(t, app, "GET", fmt.Sprintf("%s/%v", entries(schematest.Article), created["id"]), nil)
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	got := decode(t, resp)
	assert.Equal(t, created["id"], got["id"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestErrorMapping(t *testing.T) {
	app := setupApp(t)
	resp := call(t, app, "POST", entries(schematest.Article), map[string]any{
		"title": "a", "sections": []any{map[string]any{"heading": "a"}},
	})
	helpers.AssertStatus(t, resp, fiber.StatusCreated)
	created := decode(t, resp)
	path := fmt.Sprintf("%s/%v", entries(schematest.Article), created["id"])

	tests := []struct {
		name      string
		method    string
		path      string
		body      any
		status    int
		errorType string
	}{
		{"missing entry", "GET", entries(schematest.Article) + "/9999", nil, fiber.StatusNotFound, "notFound"},
		{"unknown model", "GET", entries("api::nope.nope") + "/1", nil, fiber.StatusNotFound, "notFound"},
		{"bad id", "GET", entries(schematest.Article) + "/abc", nil, fiber.StatusBadRequest, "validation"},
		{"bad json", "POST", entries(schematest.Article), "{", fiber.StatusBadRequest, "validation"},
		{"missing required", "POST", entries(schematest.Article), map[string]any{"slug": "x"}, fiber.StatusBadRequest, "validation"},
		{"foreign component", "PUT", path, map[string]any{"sections": []any{map[string]any{"id": 4242}}}, fiber.StatusBadRequest, "validation"},
		{"bad limit", "GET", entries(schematest.Article) + "?limit=-1", nil, fiber.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, app, tt.method, tt.path, tt.body)
			helpers.AssertErrorType(t, resp, tt.status, tt.errorType)
		})
	}
}

func TestListAndSearch(t *testing.T) {
	app := setupApp(t)
	for _, title := range []string{"Go tips", "Rust notes", "More Go"} {
		resp := call(t, app, "POST", entries(schematest.Article), map[string]any{"title": title, "slug": title})
		helpers.AssertStatus(t, resp, fiber.StatusCreated)
	}

	tests := []struct {
		query string
		total float64
		count int
	}{
		{"", 3, 3},
		{"?limit=2", 3, 2},
		{"?q=go", 2, 2},
		{"?q=go&limit=1", 2, 1},
		{"?where.slug=Rust%20notes", 1, 1},
		{"?ids=1,3&ids=3", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := call(t, app, "GET", entries(schematest.Article)+tt.query, nil)
			helpers.AssertStatus(t, resp, fiber.StatusOK)
			body := decode(t, resp)
			assert.Len(t, body["data"], tt.count)
			meta := body["meta"].(map[string]any)
			assert.Equal(t, tt.total, meta["total"])
		})
	}
}

func TestUpdateCloneAndPublish(t *testing.T) {
	app := setupApp(t)
	resp := call(t, app, "POST", entries(schematest.Article), map[string]any{"title": "v1", "slug": "s"})
	created := decode(t, resp)
	path := fmt.Sprintf("%s/%v", entries(schematest.Article), created["id"])

	resp = call(t, app, "PUT", path, map[string]any{"title": "v2"})
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	assert.Equal(t, "v2", decode(t, resp)["title"])

	resp = call(t, app, "POST", path+"/clone", map[string]any{"title": "copy"})
	helpers.AssertStatus(t, resp, fiber.StatusCreated)
	clone := decode(t, resp)
	assert.Equal(t, "copy", clone["title"])
	assert.Equal(t, "s", clone["slug"])
	assert.NotEqual(t, created["id"], clone["id"])

	resp = call(t, app, "POST", path+"/publish", nil)
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	assert.NotEmpty(t, decode(t, resp)[services.PublishedAtField])

	resp = call(t, app, "DELETE", path+"/publish", nil)
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	assert.Nil(t, decode(t, resp)[services.PublishedAtField])
}

func TestDelete(t *testing.T) {
	app := setupApp(t)
	var ids []any
	for i := 0; i < 3; i++ {
		resp := call(t, app, "POST", entries(schematest.Article), map[string]any{"title": fmt.Sprint(i)})
		ids = append(ids, decode(t, resp)["id"])
	}

	resp := call(t, app, "DELETE", fmt.Sprintf("%s/%v", entries(schematest.Article), ids[0]), nil)
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	assert.Equal(t, "0", decode(t, resp)["title"])

	// ids may be numbers or numeric strings
	resp = call(t, app, "DELETE", entries(schematest.Article), map[string]any{"ids": []any{ids[1], fmt.Sprint(ids[2])}})
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	body := decode(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(2), body["affectedRows"])

	resp = call(t, app, "DELETE", entries(schematest.Article), map[string]any{"ids": []any{}})
	helpers.AssertStatus(t, resp, fiber.StatusBadRequest)

	resp = call(t, app, "GET", entries(schematest.Article), nil)
	assert.Empty(t, decode(t, resp)["data"])
}

func TestMetaAndHealth(t *testing.T) {
	app := setupApp(t)

	resp := call(t, app, "GET", "/api/meta", nil)
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	var models []handlers.ModelSummary
	helpers.ParseJSON(t, resp, &models)
	assert.Len(t, models, len(schematest.Models()))
	assert.Equal(t, schematest.Article, models[0].UID)
	assert.Equal(t, "articles", models[0].Collection)

	resp = call(t, app, "GET", "/api/meta/"+schematest.SEO, nil)
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	seo := decode(t, resp)
	assert.Equal(t, schematest.SEO, seo["uid"])
	assert.NotEmpty(t, seo["attributes"])

	resp = call(t, app, "GET", "/health", nil)
	helpers.AssertStatus(t, resp, fiber.StatusOK)
	health := decode(t, resp)
	assert.Equal(t, "healthy", health["status"])

	resp = call(t, app, "GET", "/nowhere", nil)
	helpers.AssertStatus(t, resp, fiber.StatusNotFound)
}
