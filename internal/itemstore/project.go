package itemstore

import (
	"fmt"
	"time"

	"github.com/shirokuma-go/kb/internal/kbtypes"
	"github.com/shirokuma-go/kb/internal/markdown"
)

// toDocument projects an Item onto the front-matter map shape the
// markdown codec round-trips (spec §4.1). Extra carries through
// unchanged so unknown keys survive a read-modify-write cycle.
func toDocument(item kbtypes.Item) *markdown.Document {
	meta := map[string]any{}
	for k, v := range item.Extra {
		meta[k] = v
	}

	meta["id"] = item.ID
	meta["title"] = item.Title
	if item.Description != "" {
		meta["description"] = item.Description
	}
	meta["priority"] = string(item.Priority)
	meta["status"] = item.StatusName
	if len(item.Tags) > 0 {
		meta["tags"] = item.Tags
	}
	if len(item.Related) > 0 {
		refs := make([]string, len(item.Related))
		for i, r := range item.Related {
			refs[i] = r.String()
		}
		meta["related"] = refs
	}
	if item.StartDate != nil {
		meta["start_date"] = item.StartDate.String()
	}
	if item.EndDate != nil {
		meta["end_date"] = item.EndDate.String()
	}
	if item.StartTime != nil {
		meta["start_time"] = item.StartTime.String()
	}
	meta["created_at"] = item.CreatedAt.UTC().Format(timestampLayout)
	meta["updated_at"] = item.UpdatedAt.UTC().Format(timestampLayout)

	return &markdown.Document{Meta: meta, Body: item.Content}
}

// timestampLayout is millisecond-precision UTC (spec §4.6.1: "stamp
// created_at = updated_at = now (UTC, millisecond precision)").
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ReconstructForRebuild exposes fromDocument to the rebuild engine, which
// reads files directly off disk rather than through a live Store (spec
// §4.10 step 2).
func ReconstructForRebuild(itemType, id string, doc *markdown.Document) (kbtypes.Item, error) {
	return fromDocument(itemType, id, doc)
}

// fromDocument reconstructs an Item from a parsed Document. itemType and
// fallbackID come from the caller (path-derived), since frontmatter id
// can be absent on hand-authored files.
func fromDocument(itemType, fallbackID string, doc *markdown.Document) (kbtypes.Item, error) {
	item := kbtypes.Item{Type: itemType, Extra: map[string]any{}}

	for k, v := range doc.Meta {
		switch k {
		case "id", "title", "description", "priority", "status", "tags", "related",
			"start_date", "end_date", "start_time", "created_at", "updated_at":
			// handled explicitly below
		default:
			item.Extra[k] = v
		}
	}

	item.ID = stringField(doc.Meta, "id", fallbackID)
	item.Title = stringField(doc.Meta, "title", "")
	item.Description = stringField(doc.Meta, "description", "")
	item.Priority = kbtypes.Priority(stringField(doc.Meta, "priority", "")).NormalizedOrDefault()
	item.StatusName = stringField(doc.Meta, "status", "")
	item.Content = doc.Body

	if raw, ok := doc.Meta["tags"]; ok {
		tags, err := stringSlice(raw)
		if err != nil {
			return kbtypes.Item{}, fmt.Errorf("tags: %w", err)
		}
		item.Tags = tags
	}

	if raw, ok := doc.Meta["related"]; ok {
		refStrs, err := stringSlice(raw)
		if err != nil {
			return kbtypes.Item{}, fmt.Errorf("related: %w", err)
		}
		for _, s := range refStrs {
			ref, err := kbtypes.ParseRef(s)
			if err != nil {
				return kbtypes.Item{}, fmt.Errorf("related: %w", err)
			}
			item.Related = append(item.Related, ref)
		}
	}

	if raw := stringField(doc.Meta, "start_date", ""); raw != "" {
		d, err := kbtypes.ParseDate(raw)
		if err != nil {
			return kbtypes.Item{}, fmt.Errorf("start_date: %w", err)
		}
		item.StartDate = &d
	}
	if raw := stringField(doc.Meta, "end_date", ""); raw != "" {
		d, err := kbtypes.ParseDate(raw)
		if err != nil {
			return kbtypes.Item{}, fmt.Errorf("end_date: %w", err)
		}
		item.EndDate = &d
	}
	if raw := stringField(doc.Meta, "start_time", ""); raw != "" {
		t, err := kbtypes.ParseClockTime(raw)
		if err != nil {
			return kbtypes.Item{}, fmt.Errorf("start_time: %w", err)
		}
		item.StartTime = &t
	}

	if raw := stringField(doc.Meta, "created_at", ""); raw != "" {
		ts, err := time.Parse(timestampLayout, raw)
		if err != nil {
			return kbtypes.Item{}, fmt.Errorf("created_at: %w", err)
		}
		item.CreatedAt = ts
	}
	if raw := stringField(doc.Meta, "updated_at", ""); raw != "" {
		ts, err := time.Parse(timestampLayout, raw)
		if err != nil {
			return kbtypes.Item{}, fmt.Errorf("updated_at: %w", err)
		}
		item.UpdatedAt = ts
	}

	return item, nil
}

func stringField(meta map[string]any, key, def string) string {
	v, ok := meta[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	return s
}

func stringSlice(v any) ([]string, error) {
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []any:
		out := make([]string, len(vv))
		for i, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}
