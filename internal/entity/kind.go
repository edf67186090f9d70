package entity

import (
	"fmt"
	"strings"

	"hdx/internal/services"
)

// Kind selects an entity's pinned category and behaviour.
type Kind int

const (
	// KindPath is an untyped, parse-only entity with no remote.
	KindPath Kind = iota
	KindProject
	KindShot
	KindAsset
	KindOffline
	KindReference
	KindAttribute
	KindAttributeVersion
	KindDaily
	KindTask
	KindNote
)

var kindInfo = map[Kind]struct {
	name     string
	category string
}{
	KindPath:             {"path", ""},
	KindProject:          {"project", "projects"},
	KindShot:             {"shot", "shots"},
	KindAsset:            {"asset", "assets"},
	KindOffline:          {"offline", "offlines"},
	KindReference:        {"reference", "references"},
	KindAttribute:        {"attribute", "attributes"},
	KindAttributeVersion: {"version", "versions"},
	KindDaily:            {"daily", "dailies"},
	KindTask:             {"task", "tasks"},
	KindNote:             {"note", "notes"},
}

// Kinds lists every typed kind in hierarchy order.
func Kinds() []Kind {
	return []Kind{
		KindProject, KindShot, KindAsset, KindOffline, KindReference,
		KindAttribute, KindAttributeVersion, KindDaily, KindTask, KindNote,
	}
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Type returns the category segment the kind pins, or "" for KindPath.
func (k Kind) Type() string {
	return kindInfo[k].category
}

// Virtual reports whether the kind exists only in Mavis.
func (k Kind) Virtual() bool {
	switch k {
	case KindTask, KindNote:
		return true
	default:
		return false
	}
}

// Container reports whether the kind is the top of the hierarchy. Containers
// are created from their mount path rather than the canonical path.
func (k Kind) Container() bool {
	return k == KindProject
}

// FileBearing reports whether the kind may end in a file or sequence name.
func (k Kind) FileBearing() bool {
	switch k {
	case KindAttribute, KindAttributeVersion, KindDaily:
		return true
	default:
		return false
	}
}

// KindForType maps a category segment to its kind.
func KindForType(category string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.Type() == category {
			return k, true
		}
	}
	return KindPath, false
}

// ParseKind accepts a kind name ("shot") or its category ("shots").
func ParseKind(value string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "path" {
		return KindPath, nil
	}
	for _, k := range Kinds() {
		if k.String() == v || k.Type() == v {
			return k, nil
		}
	}
	return KindPath, services.Wrap(services.ErrValidation, "entity", "parse kind", fmt.Sprintf("unknown kind %q", value), nil)
}
