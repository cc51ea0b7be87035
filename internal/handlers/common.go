// common.go
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

package handlers

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
)

// wherePrefix marks query arguments that filter on an attribute value
const wherePrefix = "where."

// ErrorHandler renders errors in the service's error shape. CustomError codes
// and types are passed through; anything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	var fe *fiber.Error
	var ce *types.CustomError
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.As(err, &ce):
		code = ce.Code
		message = ce.Message
		errorType = ce.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// NotFound answers unmatched routes
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   "[404] Resource Not Found",
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// uidParam reads a model uid path parameter, which clients may percent-encode
func uidParam(c *fiber.Ctx) (string, error) {
	uid, err := url.PathUnescape(c.Params("uid"))
	if err != nil || uid == "" {
		return "", types.NewValidationError("invalid model uid %q", c.Params("uid"))
	}
	return uid, nil
}

func idParam(c *fiber.Ctx) (uint64, error) {
	return types.ParseID(c.Params("id"))
}

// parseCriteria builds criteria from query parameters. ids may repeat and
// hold comma-separated values; where.<attribute>=<value> filters on a value,
// decoded as JSON when it parses.
func parseCriteria(c *fiber.Ctx) (storage.Criteria, error) {
	var crit storage.Criteria
	seen := make(map[uint64]struct{})

	args := c.Context().QueryArgs()
	for key, value := range args.All() {
		k := string(key)
		switch {
		case k == "ids":
			for _, v := range strings.Split(string(value), ",") {
				v = strings.TrimSpace(v)
				if v == "" {
					continue
				}
				id, err := types.ParseID(v)
				if err != nil {
					return crit, err
				}
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					crit.IDs = append(crit.IDs, id)
				}
			}
		case k == "limit":
			n, err := strconv.Atoi(string(value))
			if err != nil || n < 0 {
				return crit, types.NewValidationError("invalid limit %q", string(value))
			}
			crit.Limit = n
		case strings.HasPrefix(k, wherePrefix):
			field := strings.TrimPrefix(k, wherePrefix)
			if field == "" {
				continue
			}
			if crit.Where == nil {
				crit.Where = make(map[string]any)
			}
			crit.Where[field] = queryValue(string(value))
		}
	}
	return crit, nil
}

func queryValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// bodyMap decodes a JSON object body. An empty body is an empty object.
func bodyMap(c *fiber.Ctx) (map[string]any, error) {
	data := map[string]any{}
	if len(c.Body()) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(c.Body(), &data); err != nil {
		return nil, types.NewValidationError("Invalid input").Wrap(err)
	}
	return data, nil
}
