package mavis

import (
	"context"
	"encoding/json"
	"path"
	"strconv"
	"strings"

	"hdx/internal/services"
)

// Record is one remote entity record.
type Record map[string]any

// String returns field as a string, or "" when absent or not a string.
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Int returns field as an int. JSON numbers and numeric strings are accepted.
func (r Record) Int(field string) (int, bool) {
	switch v := r[field].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Metadata maps a category to the record for that category.
type Metadata map[string]Record

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// RecordPath extracts the entity path from a record. The server reports it
// either as a string or as {root, directory, name, file} parts.
func RecordPath(r Record) (string, bool) {
	switch v := r["path"].(type) {
	case string:
		if v != "" {
			return v, true
		}
	case map[string]any:
		parts := make([]string, 0, 4)
		for _, key := range []string{"root", "directory", "name", "file"} {
			if s, ok := v[key].(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			joined := path.Join(parts...)
			if !strings.HasPrefix(joined, "/") {
				joined = "/" + joined
			}
			return joined, true
		}
	}
	return "", false
}

// LookupOptions selects what a Lookup returns.
type LookupOptions struct {
	// Iterate includes every ancestor category, not just the entity's own.
	Iterate bool
	// Entity and Name address a virtual entity under the path.
	Entity string
	Name   string
}

func (o LookupOptions) params() Params {
	p := Params{}
	if o.Iterate {
		p["iterate"] = "true"
	}
	if o.Entity != "" {
		p["entity"] = o.Entity
	}
	if o.Name != "" {
		p["name"] = o.Name
	}
	return p
}

// Lookup fetches metadata for the entity at p. found is false on 404.
func (c *Client) Lookup(ctx context.Context, p string, opts LookupOptions) (Metadata, bool, error) {
	resp, err := c.Get(ctx, p, opts.params())
	if err != nil {
		return nil, false, err
	}
	if resp.NotFound() {
		return nil, false, nil
	}
	md := Metadata{}
	if err := resp.Decode(&md); err != nil {
		return nil, false, err
	}
	return md, true, nil
}

// Make creates the entity at p and returns the created record.
func (c *Client) Make(ctx context.Context, p string, rec Record, params Params) (Record, error) {
	return c.recordCall(ctx, "make", c.Post, p, rec, params)
}

// Update sends fields to the entity at p.
func (c *Client) Update(ctx context.Context, p string, rec Record, params Params) (Record, error) {
	return c.recordCall(ctx, "update", c.Put, p, rec, params)
}

// Move relocates the entity at from to to.
func (c *Client) Move(ctx context.Context, from, to string) (Record, error) {
	return c.action(ctx, "mv", from, to)
}

// Copy duplicates the entity at from to to.
func (c *Client) Copy(ctx context.Context, from, to string) (Record, error) {
	return c.action(ctx, "cp", from, to)
}

func (c *Client) action(ctx context.Context, verb, from, to string) (Record, error) {
	target := "/action/" + verb + "/" + strings.TrimLeft(from, "/")
	return c.recordCall(ctx, verb, c.Put, target, to, nil)
}

func (c *Client) recordCall(ctx context.Context, op string, call func(context.Context, string, any, Params) (*Response, error), p string, body any, params Params) (Record, error) {
	if body == nil {
		body = Record{}
	}
	resp, err := call(ctx, p, body, params)
	if err != nil {
		return nil, err
	}
	if resp.NotFound() {
		return nil, services.Wrap(services.ErrNotFound, "mavis", op, p, nil)
	}
	rec := Record{}
	if err := resp.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes the entity at p and returns the server's verdict. An empty
// success body counts as removed.
func (c *Client) Remove(ctx context.Context, p string) (bool, error) {
	resp, err := c.Delete(ctx, p, nil)
	if err != nil {
		return false, err
	}
	if resp.NotFound() {
		return false, services.Wrap(services.ErrNotFound, "mavis", "remove", p, nil)
	}
	removed := true
	if err := resp.Decode(&removed); err != nil {
		return false, err
	}
	return removed, nil
}

// List fetches the virtual directory beneath address. Asking for "all"
// returns every directory; any other name returns a single entry. found is
// false on 404.
func (c *Client) List(ctx context.Context, address, directory, linkTable string) (map[string][]Record, bool, error) {
	var params Params
	if linkTable != "" {
		params = Params{"linkTable": linkTable}
	}
	resp, err := c.Get(ctx, strings.TrimRight(address, "/")+"/"+directory, params)
	if err != nil {
		return nil, false, err
	}
	if resp.NotFound() {
		return nil, false, nil
	}
	if directory == "all" {
		out := map[string][]Record{}
		if err := resp.Decode(&out); err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
	var records []Record
	if err := resp.Decode(&records); err != nil {
		return nil, false, err
	}
	return map[string][]Record{directory: records}, true, nil
}

// Submit hands a render job to the job service through Mavis and returns the
// job id. Completion is not tracked.
func (c *Client) Submit(ctx context.Context, title string, job Record) (string, error) {
	payload := job.Clone()
	if payload == nil {
		payload = Record{}
	}
	payload["title"] = title
	resp, err := c.Post(ctx, "lucy/jobs", payload, nil)
	if err != nil {
		return "", err
	}
	if resp.NotFound() {
		return "", services.Wrap(services.ErrNotFound, "mavis", "submit job", "job service not found", nil)
	}
	var body any
	if err := resp.Decode(&body); err != nil {
		return "", err
	}
	switch v := body.(type) {
	case map[string]any:
		if id := tokenString(v["id"]); id != "" {
			return id, nil
		}
	case string, float64:
		if id := tokenString(v); id != "" {
			return id, nil
		}
	}
	return "", services.Wrap(services.ErrTransport, "mavis", "submit job", "response carried no job id", nil)
}

// EntityByID fetches an entity record with its publishes.
func (c *Client) EntityByID(ctx context.Context, id string) (Record, bool, error) {
	return c.findRecord(ctx, "api/Entities/"+strings.TrimSpace(id), Params{"filter[include]": "publishes"})
}

// FindProject fetches the project entity called name.
func (c *Client) FindProject(ctx context.Context, name string) (Record, bool, error) {
	return c.findRecord(ctx, "api/Entities/findOne", Params{
		"filter[where][templateType]": "project",
		"filter[where][name]":         name,
	})
}

// EntityForPath fetches the entity record registered at p.
func (c *Client) EntityForPath(ctx context.Context, p string) (Record, bool, error) {
	return c.findRecord(ctx, "api/Entities/findOne", Params{"filter[where][path]": p})
}

func (c *Client) findRecord(ctx context.Context, p string, params Params) (Record, bool, error) {
	resp, err := c.Get(ctx, p, params)
	if err != nil {
		return nil, false, err
	}
	if resp.NotFound() {
		return nil, false, nil
	}
	rec := Record{}
	if err := resp.Decode(&rec); err != nil {
		return nil, false, err
	}
	if len(rec) == 0 {
		return nil, false, nil
	}
	return rec, true, nil
}
