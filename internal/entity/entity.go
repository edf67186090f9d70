package entity

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"hdx/internal/fileutil"
	"hdx/internal/hdxpath"
	"hdx/internal/logging"
	"hdx/internal/mavis"
	"hdx/internal/media"
	"hdx/internal/services"
)

// Remote is the slice of the Mavis API an entity talks to. *mavis.Client
// satisfies it; tests substitute an in-memory fake.
type Remote interface {
	Lookup(ctx context.Context, p string, opts mavis.LookupOptions) (mavis.Metadata, bool, error)
	Make(ctx context.Context, p string, rec mavis.Record, params mavis.Params) (mavis.Record, error)
	Update(ctx context.Context, p string, rec mavis.Record, params mavis.Params) (mavis.Record, error)
	Move(ctx context.Context, from, to string) (mavis.Record, error)
	Copy(ctx context.Context, from, to string) (mavis.Record, error)
	Remove(ctx context.Context, p string) (bool, error)
	List(ctx context.Context, address, directory, linkTable string) (map[string][]mavis.Record, bool, error)
	EntityByID(ctx context.Context, id string) (mavis.Record, bool, error)
	media.Submitter
}

var _ Remote = (*mavis.Client)(nil)

type options struct {
	parser *hdxpath.Parser
	logger *slog.Logger
	ledger media.Ledger
	now    func() time.Time
}

// Option customizes entity construction. Children inherit the options of
// their parent.
type Option func(*options)

// WithParser sets the path parser. The facility default is used otherwise.
func WithParser(p *hdxpath.Parser) Option {
	return func(o *options) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLedger records render submissions made by dailies.
func WithLedger(ledger media.Ledger) Option {
	return func(o *options) { o.ledger = ledger }
}

// WithClock overrides the clock used to date dailies.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(base options, opts []Option) options {
	for _, opt := range opts {
		if opt != nil {
			opt(&base)
		}
	}
	if base.parser == nil {
		base.parser = hdxpath.Default()
	}
	if base.now == nil {
		base.now = time.Now
	}
	return base
}

// Entity is one node of the project tree: its parsed path, the metadata
// Mavis holds for it and for its ancestors, and the operations that keep the
// two in step.
type Entity struct {
	kind   Kind
	remote Remote
	opts   options
	logger *slog.Logger

	source   string
	path     string
	physical string
	typ      string
	name     string
	fileName string

	pairs      []hdxpath.Pair
	components map[string]string
	paths      map[string]string

	metadata mavis.Metadata
	dirty    map[string]map[string]struct{}
	listings map[string][]mavis.Record

	// remoteExists caches whether a virtual entity is known to Mavis.
	remoteExists bool

	versions map[int]*Entity
	master   *Entity
}

// Open builds an entity of kind at source, or at source/<category>/name when
// name is set, and loads its metadata according to kind.
func Open(ctx context.Context, remote Remote, kind Kind, source, name string, opts ...Option) (*Entity, error) {
	raw := source
	if name != "" {
		raw = hdxpath.Join(source, kind.Type(), name)
	}
	return construct(ctx, kind, remote, raw, nil, buildOptions(options{}, opts))
}

// OpenChild builds an entity of kind named name below parent. The child
// shares the parent's remote and options and starts from a copy of the
// parent's metadata when the parent exists.
func OpenChild(ctx context.Context, parent *Entity, kind Kind, name string, opts ...Option) (*Entity, error) {
	if parent == nil {
		return nil, services.Wrap(services.ErrValidation, "entity", "open child", "parent is required", nil)
	}
	return parent.openChild(ctx, kind, name, opts)
}

// OpenByID resolves a Mavis id to a path and opens it.
func OpenByID(ctx context.Context, remote Remote, kind Kind, id string, opts ...Option) (*Entity, error) {
	if remote == nil {
		return nil, services.Wrap(services.ErrConfiguration, "entity", "open by id", "a Mavis session is required", nil)
	}
	rec, found, err := remote.EntityByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, services.Wrap(services.ErrNotFound, "entity", "open by id", fmt.Sprintf("no entity with id %s", id), nil)
	}
	p, ok := mavis.RecordPath(rec)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "entity", "open by id", fmt.Sprintf("record %s carries no path", id), nil)
	}
	name := ""
	if kind.Virtual() {
		name = rec.String("name")
	}
	return Open(ctx, remote, kind, p, name, opts...)
}

// NewPath parses raw without a remote. The result is untyped and never
// loads metadata; it is the usual destination argument of Move and Copy.
func NewPath(raw string, opts ...Option) (*Entity, error) {
	return construct(context.Background(), KindPath, nil, raw, nil, buildOptions(options{}, opts))
}

func (e *Entity) openChild(ctx context.Context, kind Kind, name string, opts []Option) (*Entity, error) {
	var inherited mavis.Metadata
	if e.Exists("") {
		inherited = e.metadata
	}
	raw := hdxpath.Join(e.physical, kind.Type(), name)
	return construct(ctx, kind, e.remote, raw, inherited, buildOptions(e.opts, opts))
}

func construct(ctx context.Context, kind Kind, remote Remote, raw string, inherited mavis.Metadata, o options) (*Entity, error) {
	e := &Entity{
		kind:     kind,
		remote:   remote,
		opts:     o,
		logger:   logging.NewComponentLogger(o.logger, "entity"),
		source:   raw,
		metadata: mavis.Metadata{},
		dirty:    map[string]map[string]struct{}{},
		listings: map[string][]mavis.Record{},
	}
	parsed, err := o.parser.Parse(raw, kind.Type())
	if err != nil {
		return nil, err
	}
	e.apply(parsed)
	if len(inherited) > 0 {
		e.metadata = inherited.Clone()
	}

	switch {
	case kind == KindPath:
		return e, nil
	case kind.Virtual():
		if err := e.loadVirtual(ctx); err != nil {
			return nil, err
		}
	case e.Exists(""):
		if err := e.load(ctx); err != nil {
			return nil, err
		}
	}

	if kind == KindAttribute && e.Exists("") {
		if err := e.loadVersions(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// apply replaces the identity fields with parsed.
func (e *Entity) apply(parsed hdxpath.Parsed) {
	e.physical = parsed.Path
	e.path = parsed.Path
	e.typ = parsed.Type
	e.name = parsed.Name
	e.fileName = parsed.FileName
	e.pairs = parsed.Pairs
	e.components = parsed.Components
	e.paths = parsed.Paths
	if e.kind.Virtual() {
		e.path = parsed.Truncate(e.typ)
		e.paths[e.typ] = e.path
	}
}

func (e *Entity) requireRemote(op string) error {
	if e.remote == nil {
		return services.Wrap(services.ErrConfiguration, "entity", op,
			fmt.Sprintf("%s %s needs a Mavis session", e.kind, e.physical), nil)
	}
	return nil
}

func (e *Entity) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(services.WithEntityPath(ctx, e.physical), e.logger).
		With(logging.String(logging.FieldEntityType, e.typ))
}

// load fetches metadata for a physical entity. Inherited metadata means the
// ancestors are already known, so only the entity's own record is requested.
func (e *Entity) load(ctx context.Context) error {
	if err := e.requireRemote("load"); err != nil {
		return err
	}
	narrow := len(e.metadata) > 0
	md, found, err := e.remote.Lookup(ctx, e.path, mavis.LookupOptions{Iterate: !narrow})
	if err != nil {
		return err
	}
	if !found {
		logging.WarnWithContext(e.log(ctx), "entity on disk is unknown to mavis", "metadata_missing",
			logging.String(logging.FieldErrorHint, "register it with hdx mk"),
			logging.String(logging.FieldImpact, "metadata reads return defaults"))
		return nil
	}
	e.merge(md, narrow)
	e.log(ctx).Debug("metadata loaded", logging.Bool("narrow", narrow), logging.Int("components", len(md)))
	return nil
}

// loadVirtual always asks Mavis, since a virtual entity has no directory to
// check first.
func (e *Entity) loadVirtual(ctx context.Context) error {
	if err := e.requireRemote("load"); err != nil {
		return err
	}
	narrow := len(e.metadata) > 0
	md, found, err := e.remote.Lookup(ctx, e.path, mavis.LookupOptions{Iterate: !narrow, Entity: e.typ, Name: e.name})
	if err != nil {
		return err
	}
	e.remoteExists = found
	if found {
		e.merge(md, narrow)
	}
	return nil
}

func (e *Entity) merge(md mavis.Metadata, narrow bool) {
	if !narrow {
		if md == nil {
			md = mavis.Metadata{}
		}
		e.metadata = md
		return
	}
	if rec, ok := md[e.typ]; ok {
		e.metadata[e.typ] = rec
	}
}

// Kind returns the entity's variant.
func (e *Entity) Kind() Kind { return e.kind }

// Type returns the category of the final pair, e.g. "shots".
func (e *Entity) Type() string { return e.typ }

// Name returns the name of the final pair.
func (e *Entity) Name() string { return e.name }

// FileName returns the trailing file segment, if any.
func (e *Entity) FileName() string { return e.fileName }

// Source returns the path as it was supplied.
func (e *Entity) Source() string { return e.source }

// Path returns the canonical path Mavis addresses the entity by. For virtual
// entities that is the path of the containing entity.
func (e *Entity) Path() string { return e.path }

// PhysicalPath returns the full canonical path including virtual segments.
func (e *Entity) PhysicalPath() string { return e.physical }

func (e *Entity) String() string { return e.physical }

// Remote returns the remote the entity was opened with.
func (e *Entity) Remote() Remote { return e.remote }

// Components returns a copy of the category to name map.
func (e *Entity) Components() map[string]string { return copyMap(e.components) }

// Paths returns a copy of the category to path map.
func (e *Entity) Paths() map[string]string { return copyMap(e.paths) }

// Pairs returns the category/name pairs in path order.
func (e *Entity) Pairs() []hdxpath.Pair {
	return append([]hdxpath.Pair(nil), e.pairs...)
}

// Component returns the name recorded for category.
func (e *Entity) Component(category string) (string, bool) {
	v, ok := e.components[category]
	return v, ok
}

// ComponentPath returns the canonical path ending at category.
func (e *Entity) ComponentPath(category string) (string, bool) {
	v, ok := e.paths[category]
	return v, ok
}

// Exists reports whether the entity, or the ancestor named by component,
// exists. Physical entities are checked on disk; virtual ones report the
// cached Mavis answer.
func (e *Entity) Exists(component string) bool {
	if e.kind.Virtual() && (component == "" || component == e.typ) {
		return e.remoteExists
	}
	p := e.path
	if component != "" {
		var ok bool
		if p, ok = e.paths[component]; !ok {
			return false
		}
	}
	if hdxpath.IsSequence(path.Base(p)) {
		return fileutil.AnyMatch(hdxpath.FrameGlob(p))
	}
	return fileutil.Exists(p)
}

// ExistsRemote is Exists with the option of refreshing a virtual entity's
// cached answer with one extra lookup.
func (e *Entity) ExistsRemote(ctx context.Context, component string, forceCheck bool) (bool, error) {
	if !e.kind.Virtual() || (component != "" && component != e.typ) {
		return e.Exists(component), nil
	}
	if !forceCheck {
		return e.remoteExists, nil
	}
	if err := e.requireRemote("check existence"); err != nil {
		return e.remoteExists, err
	}
	md, found, err := e.remote.Lookup(ctx, e.path, mavis.LookupOptions{Entity: e.typ, Name: e.name})
	if err != nil {
		return e.remoteExists, err
	}
	e.remoteExists = found
	if rec, ok := md[e.typ]; found && ok {
		e.metadata[e.typ] = rec
	}
	return found, nil
}

// Metadata returns field from the record of component, the entity's own
// record when component is empty. An empty field returns the whole record.
// def is returned for anything missing.
func (e *Entity) Metadata(field, component string, def any) any {
	rec, ok := e.record(component)
	if !ok {
		return def
	}
	if field == "" {
		return rec.Clone()
	}
	v, ok := rec[field]
	if !ok {
		return def
	}
	return v
}

// MetadataInt is Metadata for integer fields.
func (e *Entity) MetadataInt(field, component string, def int) int {
	rec, ok := e.record(component)
	if !ok {
		return def
	}
	if n, ok := rec.Int(field); ok {
		return n
	}
	return def
}

// MetadataString is Metadata for string fields.
func (e *Entity) MetadataString(field, component, def string) string {
	rec, ok := e.record(component)
	if !ok {
		return def
	}
	if _, present := rec[field]; !present {
		return def
	}
	return rec.String(field)
}

// Record returns a copy of the record for component.
func (e *Entity) Record(component string) mavis.Record {
	rec, ok := e.record(component)
	if !ok {
		return nil
	}
	return rec.Clone()
}

// Snapshot returns a copy of all loaded metadata.
func (e *Entity) Snapshot() mavis.Metadata { return e.metadata.Clone() }

func (e *Entity) record(component string) (mavis.Record, bool) {
	if component == "" {
		component = e.typ
	}
	rec, ok := e.metadata[component]
	return rec, ok && rec != nil
}

// ID returns the Mavis id of the entity's own record.
func (e *Entity) ID() string {
	rec, ok := e.record("")
	if !ok {
		return ""
	}
	if s := rec.String("id"); s != "" {
		return s
	}
	if id, ok := rec.Int("id"); ok {
		return fmt.Sprint(id)
	}
	return ""
}

// MarkDirty notes fields of component that were changed locally after a
// remote write, so the local view may differ from what Mavis derives.
func (e *Entity) MarkDirty(component string, fields ...string) {
	if component == "" {
		component = e.typ
	}
	set, ok := e.dirty[component]
	if !ok {
		set = map[string]struct{}{}
		e.dirty[component] = set
	}
	for _, f := range fields {
		set[f] = struct{}{}
	}
}

// Dirty lists the dirty fields of component in sorted order.
func (e *Entity) Dirty(component string) []string {
	if component == "" {
		component = e.typ
	}
	out := make([]string, 0, len(e.dirty[component]))
	for f := range e.dirty[component] {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Stale reports whether any field is dirty.
func (e *Entity) Stale() bool {
	for _, set := range e.dirty {
		if len(set) > 0 {
			return true
		}
	}
	return false
}

func (e *Entity) clearDirty() {
	e.dirty = map[string]map[string]struct{}{}
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
