package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"hdx/internal/entity"
	"hdx/internal/hdxpath"
	"hdx/internal/mavis"
	"hdx/internal/services"
)

// resolveKind returns the kind named by flag, or infers it from the category
// of the final pair of raw.
func resolveKind(parser *hdxpath.Parser, raw, flag string) (entity.Kind, error) {
	if strings.TrimSpace(flag) != "" {
		return entity.ParseKind(flag)
	}
	parsed, err := parser.Parse(raw, "")
	if err != nil {
		return entity.KindPath, err
	}
	kind, ok := entity.KindForType(parsed.Type)
	if !ok {
		return entity.KindPath, services.Wrap(services.ErrValidation, "cli", "resolve kind",
			fmt.Sprintf("no entity kind for category %q; pass --kind", parsed.Type), nil)
	}
	return kind, nil
}

func openEntity(ctx context.Context, s session, raw, kindFlag string) (*entity.Entity, error) {
	kind, err := resolveKind(s.parser, raw, kindFlag)
	if err != nil {
		return nil, err
	}
	return entity.Open(ctx, s.remote, kind, raw, "", s.opts...)
}

// parseFields turns key=value arguments into a record. Values that parse as
// JSON keep their JSON type; anything else is a string.
func parseFields(pairs []string) (mavis.Record, error) {
	rec := mavis.Record{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, services.Wrap(services.ErrValidation, "cli", "parse fields", fmt.Sprintf("expected key=value, got %q", pair), nil)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			rec[key] = decoded
		} else {
			rec[key] = value
		}
	}
	return rec, nil
}

func parseParams(pairs []string) (mavis.Params, error) {
	params := mavis.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, services.Wrap(services.ErrValidation, "cli", "parse params", fmt.Sprintf("expected key=value, got %q", pair), nil)
		}
		params[key] = value
	}
	return params, nil
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	case map[string]any, []any:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	default:
		return fmt.Sprint(value)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type entityView struct {
	Kind         string         `json:"kind"`
	Type         string         `json:"type"`
	Name         string         `json:"name"`
	FileName     string         `json:"file_name,omitempty"`
	Path         string         `json:"path"`
	PhysicalPath string         `json:"physical_path"`
	Exists       bool           `json:"exists"`
	ID           string         `json:"id,omitempty"`
	Dirty        []string       `json:"dirty,omitempty"`
	Metadata     mavis.Metadata `json:"metadata,omitempty"`
}

func viewOf(e *entity.Entity) entityView {
	return entityView{
		Kind:         e.Kind().String(),
		Type:         e.Type(),
		Name:         e.Name(),
		FileName:     e.FileName(),
		Path:         e.Path(),
		PhysicalPath: e.PhysicalPath(),
		Exists:       e.Exists(""),
		ID:           e.ID(),
		Dirty:        e.Dirty(""),
		Metadata:     e.Snapshot(),
	}
}
