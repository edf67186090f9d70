package entity

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hdx/internal/logging"
	"hdx/internal/mavis"
	"hdx/internal/services"
)

// PublishMaster is the default publish type. Publishing as MASTER also
// promotes the new version to master.
const PublishMaster = "MASTER"

// PublishOptions tune Attribute.Publish.
type PublishOptions struct {
	// FileName names the published file inside the version directory.
	FileName string
	// CopySource asks Mavis to copy the source into the version directory.
	CopySource bool
	// PublishType defaults to PublishMaster.
	PublishType string
}

// Attribute is an entity that owns numbered versions.
type Attribute struct {
	*Entity
}

// OpenAttribute opens the attribute named name below source.
func OpenAttribute(ctx context.Context, remote Remote, source, name string, opts ...Option) (*Attribute, error) {
	e, err := Open(ctx, remote, KindAttribute, source, name, opts...)
	if err != nil {
		return nil, err
	}
	return &Attribute{Entity: e}, nil
}

// OpenAttributeChild opens the attribute named name below parent.
func OpenAttributeChild(ctx context.Context, parent *Entity, name string, opts ...Option) (*Attribute, error) {
	e, err := OpenChild(ctx, parent, KindAttribute, name, opts...)
	if err != nil {
		return nil, err
	}
	return &Attribute{Entity: e}, nil
}

// AsAttribute views e as an attribute.
func AsAttribute(e *Entity) (*Attribute, error) {
	if e == nil || e.kind != KindAttribute {
		return nil, services.Wrap(services.ErrValidation, "entity", "as attribute", fmt.Sprintf("%v is not an attribute", e), nil)
	}
	return &Attribute{Entity: e}, nil
}

// loadVersions opens versions 1..N as children. Mavis and the disk must
// agree: a version Mavis counts but the disk lacks is an integrity error.
func (e *Entity) loadVersions(ctx context.Context) error {
	count := e.MetadataInt("versions", "", 0)
	versions := make(map[int]*Entity, count)
	for v := 1; v <= count; v++ {
		child, err := e.openChild(ctx, KindAttributeVersion, strconv.Itoa(v), nil)
		if err != nil {
			return err
		}
		if !child.Exists("") {
			err := services.Wrap(services.ErrIntegrity, "entity", "load versions",
				fmt.Sprintf("version %d of %s is recorded in mavis but missing on disk", v, e.physical), nil)
			logging.ErrorWithContext(e.log(ctx), "attribute version missing", "version_missing",
				logging.Int("version", v),
				logging.Int("versions", count),
				logging.String(logging.FieldErrorHint, "restore the version directory or correct the versions count in mavis"),
				logging.Error(err))
			return err
		}
		versions[v] = child
	}

	var master *Entity
	if m := e.MetadataInt("masterVersion", "", 0); m > 0 {
		child, ok := versions[m]
		if !ok {
			return services.Wrap(services.ErrIntegrity, "entity", "load versions",
				fmt.Sprintf("master version %d of %s is outside 1..%d", m, e.physical, count), nil)
		}
		master = child
	}
	e.versions = versions
	e.master = master
	return nil
}

// Publish creates the next version from source. metadata is copied and
// gains the source and publish type. The attribute's version counters are
// advanced locally and marked dirty, since Mavis may derive them
// differently; call Authoritative before trusting them.
func (a *Attribute) Publish(ctx context.Context, source string, metadata mavis.Record, opts PublishOptions) (*Entity, error) {
	if strings.TrimSpace(source) == "" {
		return nil, services.Wrap(services.ErrValidation, "entity", "publish", "source is required", nil)
	}
	publishType := opts.PublishType
	if publishType == "" {
		publishType = PublishMaster
	}

	next := a.MetadataInt("versions", "", 0) + 1
	child, err := a.openChild(ctx, KindAttributeVersion, strconv.Itoa(next), nil)
	if err != nil {
		return nil, err
	}
	if opts.FileName != "" {
		child.fileName = opts.FileName
	}

	rec := metadata.Clone()
	if rec == nil {
		rec = mavis.Record{}
	}
	rec["source"] = source
	rec["publishType"] = publishType
	var params mavis.Params
	if opts.CopySource {
		params = mavis.Params{"copySource": "true"}
	}
	if err := child.Make(ctx, rec, params); err != nil {
		return nil, err
	}

	own, ok := a.metadata[a.typ]
	if !ok || own == nil {
		own = mavis.Record{}
		a.metadata[a.typ] = own
	}
	own["versions"] = next
	a.MarkDirty("", "versions")
	if a.versions == nil {
		a.versions = map[int]*Entity{}
	}
	a.versions[next] = child
	if publishType == PublishMaster {
		own["masterVersion"] = next
		a.master = child
		a.MarkDirty("", "masterVersion")
	}

	a.log(ctx).Info("attribute published",
		logging.Int("version", next),
		logging.String("publish_type", publishType),
		logging.String("source", source))
	return child, nil
}

// Authoritative reloads the attribute when local counters are dirty.
func (a *Attribute) Authoritative(ctx context.Context) error {
	if !a.Stale() {
		return nil
	}
	return a.Reload(ctx)
}

// Version returns version n.
func (a *Attribute) Version(n int) (*Entity, bool) {
	v, ok := a.versions[n]
	return v, ok
}

// Master returns the master version, if one is set.
func (a *Attribute) Master() (*Entity, bool) {
	return a.master, a.master != nil
}

// Resolve accepts a version number or "MASTER".
func (a *Attribute) Resolve(ref string) (*Entity, bool) {
	if strings.EqualFold(ref, PublishMaster) {
		return a.Master()
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return nil, false
	}
	return a.Version(n)
}

// VersionNumbers lists the loaded versions in ascending order.
func (a *Attribute) VersionNumbers() []int {
	out := make([]int, 0, len(a.versions))
	for n := range a.versions {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
