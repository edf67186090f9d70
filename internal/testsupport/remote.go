package testsupport

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"hdx/internal/mavis"
)

// FakeCall records one call against FakeRemote.
type FakeCall struct {
	Verb    string
	Path    string
	Target  string
	Iterate bool
	Entity  string
	Name    string
	Record  mavis.Record
	Params  mavis.Params
}

// FakeRemote is an in-memory Mavis used by entity and media tests. Lookups
// are answered from Entities (physical) or Virtual (keyed by VirtualKey).
type FakeRemote struct {
	mu sync.Mutex

	Entities map[string]mavis.Metadata
	Virtual  map[string]mavis.Metadata
	Listings map[string]map[string][]mavis.Record
	ByID     map[string]mavis.Record

	// Err, when set, fails every call.
	Err error
	// MoveResult overrides the record returned by Move and Copy.
	MoveResult mavis.Record

	Calls  []FakeCall
	nextID int
}

// NewFakeRemote returns an empty fake.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		Entities: map[string]mavis.Metadata{},
		Virtual:  map[string]mavis.Metadata{},
		Listings: map[string]map[string][]mavis.Record{},
		ByID:     map[string]mavis.Record{},
	}
}

// VirtualKey addresses a virtual entity below container.
func VirtualKey(container, entity, name string) string {
	return container + "#" + entity + "/" + name
}

// Count returns how many calls used verb.
func (f *FakeRemote) Count(verb string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Verb == verb {
			n++
		}
	}
	return n
}

// Lookups counts lookups by mode.
func (f *FakeRemote) Lookups() (narrow, full int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c.Verb != "lookup" {
			continue
		}
		if c.Iterate {
			full++
		} else {
			narrow++
		}
	}
	return narrow, full
}

// Last returns the most recent call, or a zero value.
func (f *FakeRemote) Last() FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return FakeCall{}
	}
	return f.Calls[len(f.Calls)-1]
}

// Reset forgets recorded calls.
func (f *FakeRemote) Reset() {
	f.mu.Lock()
	f.Calls = nil
	f.mu.Unlock()
}

func (f *FakeRemote) record(c FakeCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, c)
	return f.Err
}

func (f *FakeRemote) Lookup(_ context.Context, p string, opts mavis.LookupOptions) (mavis.Metadata, bool, error) {
	if err := f.record(FakeCall{Verb: "lookup", Path: p, Iterate: opts.Iterate, Entity: opts.Entity, Name: opts.Name}); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var md mavis.Metadata
	var ok bool
	if opts.Entity != "" {
		md, ok = f.Virtual[VirtualKey(p, opts.Entity, opts.Name)]
	} else {
		md, ok = f.Entities[p]
	}
	if !ok {
		return nil, false, nil
	}
	return md.Clone(), true, nil
}

func (f *FakeRemote) Make(_ context.Context, p string, rec mavis.Record, params mavis.Params) (mavis.Record, error) {
	if err := f.record(FakeCall{Verb: "make", Path: p, Record: rec.Clone(), Params: params}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	out := rec.Clone()
	if out == nil {
		out = mavis.Record{}
	}
	out["id"] = float64(f.nextID)
	out["path"] = p
	if entity := params["entity"]; entity != "" {
		key := VirtualKey(p, entity, params["name"])
		f.Virtual[key] = mavis.Metadata{entity: out.Clone()}
		return out, nil
	}
	md := f.Entities[p]
	if md == nil {
		md = mavis.Metadata{}
		f.Entities[p] = md
	}
	md[categoryOf(p)] = out.Clone()
	return out, nil
}

func (f *FakeRemote) Update(_ context.Context, p string, rec mavis.Record, params mavis.Params) (mavis.Record, error) {
	if err := f.record(FakeCall{Verb: "update", Path: p, Record: rec.Clone(), Params: params}); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (f *FakeRemote) Move(_ context.Context, from, to string) (mavis.Record, error) {
	return f.relocate("move", from, to)
}

func (f *FakeRemote) Copy(_ context.Context, from, to string) (mavis.Record, error) {
	return f.relocate("copy", from, to)
}

func (f *FakeRemote) relocate(verb, from, to string) (mavis.Record, error) {
	if err := f.record(FakeCall{Verb: verb, Path: from, Target: to}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MoveResult != nil {
		return f.MoveResult.Clone(), nil
	}
	return mavis.Record{"path": to, "name": path.Base(to)}, nil
}

func (f *FakeRemote) Remove(_ context.Context, p string) (bool, error) {
	if err := f.record(FakeCall{Verb: "remove", Path: p}); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FakeRemote) List(_ context.Context, address, directory, linkTable string) (map[string][]mavis.Record, bool, error) {
	if err := f.record(FakeCall{Verb: "list", Path: address, Target: directory, Params: mavis.Params{"linkTable": linkTable}}); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dirs, ok := f.Listings[address]
	if !ok {
		return nil, false, nil
	}
	if directory == "all" {
		out := make(map[string][]mavis.Record, len(dirs))
		for k, v := range dirs {
			out[k] = v
		}
		return out, true, nil
	}
	records, ok := dirs[directory]
	if !ok {
		return nil, false, nil
	}
	return map[string][]mavis.Record{directory: records}, true, nil
}

func (f *FakeRemote) Submit(_ context.Context, title string, job mavis.Record) (string, error) {
	rec := job.Clone()
	if rec == nil {
		rec = mavis.Record{}
	}
	rec["title"] = title
	if err := f.record(FakeCall{Verb: "submit", Record: rec}); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("job-%d", f.nextID), nil
}

func (f *FakeRemote) EntityByID(_ context.Context, id string) (mavis.Record, bool, error) {
	if err := f.record(FakeCall{Verb: "entity_by_id", Path: id}); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.ByID[id]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// Paths returns the paths of every recorded call with verb, in order.
func (f *FakeRemote) Paths(verb string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		if c.Verb == verb {
			out = append(out, c.Path)
		}
	}
	return out
}

// Verbs returns the distinct verbs called so far, sorted.
func (f *FakeRemote) Verbs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]struct{}{}
	for _, c := range f.Calls {
		seen[c.Verb] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func categoryOf(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	if n := len(segments); n > 0 && path.Ext(segments[n-1]) != "" {
		segments = segments[:n-1]
	}
	if n := len(segments); n >= 2 {
		return segments[n-2]
	}
	return ""
}
