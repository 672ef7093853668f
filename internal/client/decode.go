package client

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/spec-kit/service-portal/internal/api/dto"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/feed"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// listKeys are the object keys under which a page of entities may arrive.
var listKeys = []string{"items", "tickets", "requests", "serviceRequests"}

// DecodeList normalizes every accepted list response shape into a Page:
// a bare array, or an object carrying the array under one of listKeys with an
// optional hasMore flag. When the server gives no hint, a full page implies more.
// Any other shape is a decode error, never an empty page.
func DecodeList(body []byte, kind domain.Kind, limit int) (feed.Page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return feed.Page{}, apperrors.NewDecodeError("empty list response", nil)
	}

	switch trimmed[0] {
	case '[':
		var items []dto.Entity
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return feed.Page{}, apperrors.NewDecodeError("malformed list response", err)
		}
		return toPage(items, kind, len(items) >= limit && limit > 0), nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return feed.Page{}, apperrors.NewDecodeError("malformed list response", err)
		}
		for _, key := range listKeys {
			raw, ok := fields[key]
			if !ok {
				continue
			}
			var items []dto.Entity
			if err := json.Unmarshal(raw, &items); err != nil {
				return feed.Page{}, apperrors.NewDecodeError("malformed "+key+" in list response", err)
			}
			hasMore := len(items) >= limit && limit > 0
			if rawMore, ok := fields["hasMore"]; ok {
				if err := json.Unmarshal(rawMore, &hasMore); err != nil {
					return feed.Page{}, apperrors.NewDecodeError("malformed hasMore in list response", err)
				}
			}
			return toPage(items, kind, hasMore), nil
		}
	}
	return feed.Page{}, apperrors.NewDecodeError("unrecognised list response shape", errors.New(truncate(string(trimmed), 80)))
}

func toPage(items []dto.Entity, kind domain.Kind, hasMore bool) feed.Page {
	out := make([]domain.Entity, 0, len(items))
	for _, item := range items {
		out = append(out, item.ToEntity(kind))
	}
	return feed.Page{Items: out, HasMore: hasMore}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
