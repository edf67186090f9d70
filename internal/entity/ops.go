package entity

import (
	"context"
	"fmt"
	"path"

	"hdx/internal/fileutil"
	"hdx/internal/logging"
	"hdx/internal/mavis"
	"hdx/internal/services"
)

// Make registers the entity with Mavis. It fails without a remote call when
// the entity already exists.
func (e *Entity) Make(ctx context.Context, metadata mavis.Record, params mavis.Params) error {
	if e.kind == KindPath {
		return services.Wrap(services.ErrValidation, "entity", "make", "an untyped path cannot be created", nil)
	}
	if e.Exists("") {
		return services.Wrap(services.ErrAlreadyExists, "entity", "make", fmt.Sprintf("%s %s already exists", e.kind, e.physical), nil)
	}
	if err := e.requireRemote("make"); err != nil {
		return err
	}

	rec := metadata.Clone()
	if rec == nil {
		rec = mavis.Record{}
	}
	params = cloneParams(params)
	target := e.path
	fileName := e.fileName

	switch {
	case e.kind.Container():
		if err := e.validateMount(); err != nil {
			return err
		}
		target = e.source
	case e.kind == KindAttributeVersion:
		if params["copySource"] == "true" && fileName == "" {
			if src := rec.String("source"); src != "" {
				fileName = path.Base(src)
			}
		}
	case e.kind.Virtual():
		params["entity"] = e.typ
		params["name"] = e.name
	}
	if fileName != "" {
		if _, ok := rec["fileName"]; !ok {
			rec["fileName"] = fileName
		}
	}

	created, err := e.remote.Make(ctx, target, rec, params)
	if err != nil {
		return err
	}
	if created == nil {
		created = rec
	}
	e.metadata[e.typ] = created
	e.fileName = fileName
	delete(e.dirty, e.typ)
	if e.kind.Virtual() {
		e.remoteExists = true
	}
	e.log(ctx).Info("entity created", logging.String("kind", e.kind.String()), logging.String("id", e.ID()))
	return nil
}

// validateMount requires a container's supplied path to sit under a live
// facility mount.
func (e *Entity) validateMount() error {
	prefix, ok := e.opts.parser.MountPrefix(e.source)
	if !ok {
		return services.Wrap(services.ErrValidation, "entity", "make",
			fmt.Sprintf("%s must be created through a facility mount", e.source), nil)
	}
	mounted, err := fileutil.IsMount(prefix)
	if err != nil {
		return services.Wrap(services.ErrValidation, "entity", "make", fmt.Sprintf("inspect mount %s", prefix), err)
	}
	if !mounted {
		return services.Wrap(services.ErrValidation, "entity", "make", fmt.Sprintf("%s is not a mounted volume", prefix), nil)
	}
	return nil
}

// Update merges metadata into the entity's own record, then sends it to Mavis.
// The local merge is not rolled back when the remote call fails; the merged
// fields stay dirty until a successful Update or Reload.
func (e *Entity) Update(ctx context.Context, metadata mavis.Record, params mavis.Params) error {
	if e.kind == KindPath {
		return services.Wrap(services.ErrValidation, "entity", "update", "an untyped path has no record", nil)
	}
	if err := e.requireRemote("update"); err != nil {
		return err
	}
	params = cloneParams(params)
	if e.kind.Virtual() {
		params["entity"] = e.typ
		params["name"] = e.name
	}

	rec, ok := e.metadata[e.typ]
	if !ok || rec == nil {
		rec = mavis.Record{}
		e.metadata[e.typ] = rec
	}
	fields := make([]string, 0, len(metadata))
	for k, v := range metadata.Clone() {
		rec[k] = v
		fields = append(fields, k)
	}
	e.MarkDirty(e.typ, fields...)

	if _, err := e.remote.Update(ctx, e.path, metadata.Clone(), params); err != nil {
		return err
	}
	set := e.dirty[e.typ]
	for _, k := range fields {
		delete(set, k)
	}
	e.log(ctx).Info("entity updated", logging.Int("fields", len(metadata)))
	return nil
}

// Move renames the entity to dest. On success the entity describes the new
// location; on failure it is unchanged.
func (e *Entity) Move(ctx context.Context, dest string) error {
	dst, err := NewPath(dest, WithParser(e.opts.parser))
	if err != nil {
		return err
	}
	return e.relocate(ctx, "move", dst)
}

// MoveTo is Move with an already parsed destination.
func (e *Entity) MoveTo(ctx context.Context, dst *Entity) error {
	return e.relocate(ctx, "move", dst)
}

// Copy duplicates the entity at dest. Like Move, the entity then describes
// the copy.
func (e *Entity) Copy(ctx context.Context, dest string) error {
	dst, err := NewPath(dest, WithParser(e.opts.parser))
	if err != nil {
		return err
	}
	return e.relocate(ctx, "copy", dst)
}

// CopyTo is Copy with an already parsed destination.
func (e *Entity) CopyTo(ctx context.Context, dst *Entity) error {
	return e.relocate(ctx, "copy", dst)
}

func (e *Entity) relocate(ctx context.Context, verb string, dst *Entity) error {
	if e.kind == KindPath {
		return services.Wrap(services.ErrValidation, "entity", verb, "an untyped path cannot be relocated", nil)
	}
	if dst == nil {
		return services.Wrap(services.ErrValidation, "entity", verb, "destination is required", nil)
	}
	if dst.Exists("") {
		return services.Wrap(services.ErrAlreadyExists, "entity", verb, fmt.Sprintf("%s already exists", dst.physical), nil)
	}
	if dst.typ != e.typ {
		return services.Wrap(services.ErrValidation, "entity", verb,
			fmt.Sprintf("cannot turn %s into %s", e.typ, dst.typ), nil)
	}
	if err := e.requireRemote(verb); err != nil {
		return err
	}

	call := e.remote.Move
	if verb == "copy" {
		call = e.remote.Copy
	}
	from, to := e.path, dst.path
	if e.kind.Virtual() {
		from, to = e.physical, dst.physical
	}
	rec, err := call(ctx, from, to)
	if err != nil {
		return err
	}

	newPath := dst.physical
	if p, ok := mavis.RecordPath(rec); ok && !e.kind.Virtual() {
		newPath = p
	}
	parsed, err := e.opts.parser.Parse(newPath, e.kind.Type())
	if err != nil {
		return services.Wrap(services.ErrIntegrity, "entity", verb,
			fmt.Sprintf("mavis reported unusable path %q", newPath), err)
	}

	old := e.physical
	e.apply(parsed)
	if len(rec) > 0 {
		e.metadata[e.typ] = rec
	}
	e.listings = map[string][]mavis.Record{}
	e.log(ctx).Info("entity relocated", logging.String("verb", verb), logging.String("from", old))
	return nil
}

// Remove deletes the entity from Mavis. useSource addresses the path as
// originally supplied instead of the canonical one. An entity that does not
// exist is reported as removed without a remote call.
func (e *Entity) Remove(ctx context.Context, useSource bool) (bool, error) {
	if e.kind == KindPath {
		return false, services.Wrap(services.ErrValidation, "entity", "remove", "an untyped path has no record", nil)
	}
	if e.kind.Virtual() {
		if !e.remoteExists {
			return true, nil
		}
		if err := e.requireRemote("remove"); err != nil {
			return false, err
		}
		id := e.ID()
		if id == "" {
			return false, services.Wrap(services.ErrNotFound, "entity", "remove", fmt.Sprintf("%s has no mavis id", e.physical), nil)
		}
		removed, err := e.remote.Remove(ctx, e.typ+"/"+id)
		if err != nil {
			return false, err
		}
		if removed {
			e.remoteExists = false
		}
		return removed, nil
	}

	target := e.path
	exists := e.Exists("")
	if useSource {
		target = e.source
		exists = fileutil.Exists(target)
	}
	if !exists {
		return true, nil
	}
	if err := e.requireRemote("remove"); err != nil {
		return false, err
	}
	removed, err := e.remote.Remove(ctx, target)
	if err != nil {
		return false, err
	}
	e.log(ctx).Info("entity removed", logging.Bool("removed", removed), logging.String("target", target))
	return removed, nil
}

// ListAll requests every link directory in one call.
const ListAll = "all"

// List fetches the records linked under directory and caches them. A 404
// yields a nil result and no error. Directory ListAll caches each returned
// directory separately.
func (e *Entity) List(ctx context.Context, directory, linkTable string) (map[string][]mavis.Record, error) {
	if err := e.requireRemote("list"); err != nil {
		return nil, err
	}
	address := e.path
	if e.kind.Virtual() {
		id := e.ID()
		if id == "" {
			return nil, services.Wrap(services.ErrNotFound, "entity", "list", fmt.Sprintf("%s has no mavis id", e.physical), nil)
		}
		address = e.typ + "/" + id
	}
	out, found, err := e.remote.List(ctx, address, directory, linkTable)
	if err != nil {
		return nil, err
	}
	if !found {
		e.listings[directory] = nil
		return nil, nil
	}
	if directory == ListAll {
		for dir, records := range out {
			e.listings[dir] = records
		}
		return out, nil
	}
	e.listings[directory] = out[directory]
	return out, nil
}

// Listing returns the cached result of the last List of directory.
func (e *Entity) Listing(directory string) ([]mavis.Record, bool) {
	records, ok := e.listings[directory]
	return records, ok
}

// Reload replaces all metadata with a full lookup and clears dirty fields.
func (e *Entity) Reload(ctx context.Context) error {
	if e.kind == KindPath {
		return nil
	}
	if err := e.requireRemote("reload"); err != nil {
		return err
	}
	opts := mavis.LookupOptions{Iterate: true}
	if e.kind.Virtual() {
		opts.Entity = e.typ
		opts.Name = e.name
	}
	md, found, err := e.remote.Lookup(ctx, e.path, opts)
	if err != nil {
		return err
	}
	if !found || md == nil {
		md = mavis.Metadata{}
	}
	if e.kind.Virtual() {
		e.remoteExists = found
	}
	e.metadata = md
	e.clearDirty()
	if e.kind == KindAttribute {
		if !e.Exists("") {
			e.versions, e.master = nil, nil
			return nil
		}
		return e.loadVersions(ctx)
	}
	return nil
}

func cloneParams(in mavis.Params) mavis.Params {
	out := make(mavis.Params, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
