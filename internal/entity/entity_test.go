package entity_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"hdx/internal/config"
	"hdx/internal/entity"
	"hdx/internal/hdxpath"
	"hdx/internal/mavis"
	"hdx/internal/services"
	"hdx/internal/testsupport"
)

type fixture struct {
	cfg    *config.Config
	parser *hdxpath.Parser
	remote *testsupport.FakeRemote
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	parser, err := hdxpath.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	return &fixture{cfg: cfg, parser: parser, remote: testsupport.NewFakeRemote()}
}

func (f *fixture) path(rel string) string {
	return testsupport.Under(f.cfg, rel)
}

func (f *fixture) open(t *testing.T, kind entity.Kind, rel string) *entity.Entity {
	t.Helper()
	e, err := entity.Open(context.Background(), f.remote, kind, f.path(rel), "", entity.WithParser(f.parser))
	if err != nil {
		t.Fatalf("open %s %s: %v", kind, rel, err)
	}
	return e
}

func (f *fixture) seedShot(t *testing.T) string {
	t.Helper()
	shot := testsupport.MkTree(t, f.cfg, "projects/demo/shots/sh010")
	f.remote.Entities[shot] = mavis.Metadata{
		"projects": {"id": float64(1), "name": "demo"},
		"shots":    {"id": float64(10), "name": "sh010", "frames": float64(96)},
	}
	return shot
}

func TestOpenLoadsFullMetadataWithoutInheritance(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)

	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")

	if narrow, full := f.remote.Lookups(); narrow != 0 || full != 1 {
		t.Fatalf("lookups narrow=%d full=%d, want 0/1", narrow, full)
	}
	if got := shot.MetadataInt("frames", "", 0); got != 96 {
		t.Fatalf("frames = %d", got)
	}
	if got := shot.MetadataString("name", "projects", ""); got != "demo" {
		t.Fatalf("project name = %q", got)
	}
	if got := shot.Metadata("missing", "", "fallback"); got != "fallback" {
		t.Fatalf("default = %v", got)
	}
	if shot.ID() != "10" {
		t.Fatalf("ID = %q", shot.ID())
	}
}

func TestOpenChildUsesNarrowLookup(t *testing.T) {
	f := newFixture(t)
	project := testsupport.MkTree(t, f.cfg, "projects/demo")
	shot := testsupport.MkTree(t, f.cfg, "projects/demo/shots/sh010")
	f.remote.Entities[project] = mavis.Metadata{"projects": {"id": float64(1), "fps": float64(24)}}
	f.remote.Entities[shot] = mavis.Metadata{
		"projects": {"id": float64(1), "fps": float64(24)},
		"shots":    {"id": float64(10)},
	}

	parent := f.open(t, entity.KindProject, "projects/demo")
	child, err := entity.OpenChild(context.Background(), parent, entity.KindShot, "sh010")
	if err != nil {
		t.Fatalf("open child: %v", err)
	}

	if narrow, full := f.remote.Lookups(); narrow != 1 || full != 1 {
		t.Fatalf("lookups narrow=%d full=%d, want 1/1", narrow, full)
	}
	if got := child.MetadataInt("fps", "projects", 0); got != 24 {
		t.Fatalf("inherited fps = %d", got)
	}
	if got := child.MetadataInt("id", "", 0); got != 10 {
		t.Fatalf("own id = %d", got)
	}
	if child.Path() != shot {
		t.Fatalf("child path = %q, want %q", child.Path(), shot)
	}
}

func TestOpenChildDoesNotShareParentMetadata(t *testing.T) {
	f := newFixture(t)
	project := testsupport.MkTree(t, f.cfg, "projects/demo")
	f.remote.Entities[project] = mavis.Metadata{"projects": {"id": float64(1)}}

	parent := f.open(t, entity.KindProject, "projects/demo")
	child, err := entity.OpenChild(context.Background(), parent, entity.KindShot, "sh010")
	if err != nil {
		t.Fatalf("open child: %v", err)
	}
	if err := child.Make(context.Background(), mavis.Record{"frames": 10}, nil); err != nil {
		t.Fatalf("make: %v", err)
	}
	if rec := parent.Record("shots"); rec != nil {
		t.Fatalf("parent gained child record: %v", rec)
	}
}

func TestOpenSkipsLoadWhenMissingOnDisk(t *testing.T) {
	f := newFixture(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	if shot.Exists("") {
		t.Fatal("expected missing shot")
	}
	if len(f.remote.Calls) != 0 {
		t.Fatalf("unexpected calls: %v", f.remote.Verbs())
	}
}

func TestOpenToleratesEntityUnknownToMavis(t *testing.T) {
	f := newFixture(t)
	testsupport.MkTree(t, f.cfg, "projects/demo/shots/sh010")

	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	if !shot.Exists("") {
		t.Fatal("expected shot on disk")
	}
	if rec := shot.Record(""); rec != nil {
		t.Fatalf("expected no record, got %v", rec)
	}
}

func TestOpenWithoutRemote(t *testing.T) {
	f := newFixture(t)
	if _, err := entity.Open(context.Background(), nil, entity.KindShot, f.path("projects/demo/shots/sh010"), "", entity.WithParser(f.parser)); err != nil {
		t.Fatalf("missing entity should not need a remote: %v", err)
	}

	testsupport.MkTree(t, f.cfg, "projects/demo/shots/sh010")
	_, err := entity.Open(context.Background(), nil, entity.KindShot, f.path("projects/demo/shots/sh010"), "", entity.WithParser(f.parser))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOpenRejectsTypeConflict(t *testing.T) {
	f := newFixture(t)
	_, err := entity.Open(context.Background(), f.remote, entity.KindShot, f.path("projects/demo/assets/chair"), "", entity.WithParser(f.parser))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var conflict *hdxpath.TypeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected TypeConflictError, got %T", err)
	}
}

func TestOpenJoinsName(t *testing.T) {
	f := newFixture(t)
	e, err := entity.Open(context.Background(), f.remote, entity.KindAsset, f.path("projects/demo"), "chair", entity.WithParser(f.parser))
	if err != nil {
		t.Fatal(err)
	}
	if e.Path() != f.path("projects/demo/assets/chair") || e.Name() != "chair" || e.Type() != "assets" {
		t.Fatalf("unexpected entity %s type=%s name=%s", e.Path(), e.Type(), e.Name())
	}
}

func TestOpenByID(t *testing.T) {
	f := newFixture(t)
	shot := f.seedShot(t)
	f.remote.ByID["10"] = mavis.Record{"id": float64(10), "path": shot}

	e, err := entity.OpenByID(context.Background(), f.remote, entity.KindShot, "10", entity.WithParser(f.parser))
	if err != nil {
		t.Fatalf("open by id: %v", err)
	}
	if e.Path() != shot {
		t.Fatalf("path = %q", e.Path())
	}

	_, err = entity.OpenByID(context.Background(), f.remote, entity.KindShot, "99", entity.WithParser(f.parser))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMakeExistingFailsWithoutRemoteCall(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	f.remote.Reset()

	err := shot.Make(context.Background(), mavis.Record{"frames": 10}, nil)
	if !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if len(f.remote.Calls) != 0 {
		t.Fatalf("unexpected calls: %v", f.remote.Verbs())
	}
}

func TestMakeStoresCreatedRecord(t *testing.T) {
	f := newFixture(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh020")

	if err := shot.Make(context.Background(), mavis.Record{"frames": 48}, mavis.Params{"template": "default"}); err != nil {
		t.Fatalf("make: %v", err)
	}
	call := f.remote.Last()
	if call.Verb != "make" || call.Path != f.path("projects/demo/shots/sh020") {
		t.Fatalf("unexpected call %+v", call)
	}
	if call.Params["template"] != "default" {
		t.Fatalf("params not forwarded: %v", call.Params)
	}
	if shot.ID() == "" {
		t.Fatal("expected created id")
	}
	if got := shot.MetadataInt("frames", "", 0); got != 48 {
		t.Fatalf("frames = %d", got)
	}
}

func TestMakeProjectRequiresMount(t *testing.T) {
	f := newFixture(t)
	project := f.open(t, entity.KindProject, "projects/demo")

	err := project.Make(context.Background(), nil, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.remote.Count("make") != 0 {
		t.Fatal("make must not reach mavis")
	}
}

func TestMakeProjectThroughLiveMount(t *testing.T) {
	f := newFixture(t)
	parser, err := hdxpath.New(f.cfg.Paths.Root, []string{"/hdx"}, `^/proc`, hdxpath.DefaultTopCategory)
	if err != nil {
		t.Fatal(err)
	}
	source := "/proc/hdx/projects/demo"
	project, err := entity.Open(context.Background(), f.remote, entity.KindProject, source, "", entity.WithParser(parser))
	if err != nil {
		t.Fatal(err)
	}
	if project.Path() != f.path("projects/demo") {
		t.Fatalf("canonical path = %q", project.Path())
	}
	if err := project.Make(context.Background(), nil, nil); err != nil {
		if errors.Is(err, services.ErrValidation) {
			t.Skipf("/proc is not a mount here: %v", err)
		}
		t.Fatalf("make: %v", err)
	}
	if got := f.remote.Last().Path; got != source {
		t.Fatalf("project created at %q, want raw source %q", got, source)
	}
}

func TestMakeVersionDerivesFileNameFromSource(t *testing.T) {
	f := newFixture(t)
	version := f.open(t, entity.KindAttributeVersion, "projects/demo/shots/sh010/attributes/comp/versions/1")

	err := version.Make(context.Background(), mavis.Record{"source": "/tmp/work/comp_v12.nk"}, mavis.Params{"copySource": "true"})
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	if version.FileName() != "comp_v12.nk" {
		t.Fatalf("file name = %q", version.FileName())
	}
	if got := f.remote.Last().Record["fileName"]; got != "comp_v12.nk" {
		t.Fatalf("record fileName = %v", got)
	}
}

func TestUpdateMergesLocally(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")

	if err := shot.Update(context.Background(), mavis.Record{"frames": 120, "status": "final"}, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := shot.MetadataInt("frames", "", 0); got != 120 {
		t.Fatalf("frames = %d", got)
	}
	if got := shot.MetadataString("name", "", ""); got != "sh010" {
		t.Fatalf("name lost on merge: %q", got)
	}
	if f.remote.Last().Verb != "update" {
		t.Fatalf("last call = %+v", f.remote.Last())
	}
}

func TestMoveTypeMismatchLeavesSourceUnchanged(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	before := shot.Paths()
	f.remote.Reset()

	err := shot.Move(context.Background(), f.path("projects/demo/assets/chair"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if shot.Path() != f.path("projects/demo/shots/sh010") || !reflect.DeepEqual(shot.Paths(), before) {
		t.Fatalf("source mutated: %s %v", shot.Path(), shot.Paths())
	}
	if len(f.remote.Calls) != 0 {
		t.Fatalf("unexpected calls: %v", f.remote.Verbs())
	}
}

func TestMoveOntoExistingDestination(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	testsupport.MkTree(t, f.cfg, "projects/demo/shots/sh020")
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")

	err := shot.Move(context.Background(), f.path("projects/demo/shots/sh020"))
	if !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestMoveRepointsEntity(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	other := f.open(t, entity.KindShot, "projects/demo/shots/sh010")

	dest := f.path("projects/demo/shots/sh030")
	if err := shot.Move(context.Background(), dest); err != nil {
		t.Fatalf("move: %v", err)
	}
	call := f.remote.Last()
	if call.Verb != "move" || call.Path != f.path("projects/demo/shots/sh010") || call.Target != dest {
		t.Fatalf("unexpected call %+v", call)
	}
	if shot.Path() != dest || shot.Name() != "sh030" {
		t.Fatalf("entity not repointed: %s", shot.Path())
	}
	if comp, _ := shot.Component("shots"); comp != "sh030" {
		t.Fatalf("component = %q", comp)
	}
	if comp, _ := other.Component("shots"); comp != "sh010" {
		t.Fatalf("second entity shares state: %q", comp)
	}
}

func TestCopyFollowsReportedPath(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	f.remote.MoveResult = mavis.Record{
		"id":   float64(77),
		"path": map[string]any{"root": "/hdx", "directory": "projects/demo/shots", "name": "sh010_copy"},
	}

	if err := shot.Copy(context.Background(), "/hdx/projects/demo/shots/sh011"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if f.remote.Last().Verb != "copy" {
		t.Fatalf("last call = %+v", f.remote.Last())
	}
	if shot.Path() != f.path("projects/demo/shots/sh010_copy") {
		t.Fatalf("path = %q", shot.Path())
	}
	if shot.ID() != "77" {
		t.Fatalf("id = %q", shot.ID())
	}
}

func TestRemovePhysical(t *testing.T) {
	f := newFixture(t)
	missing := f.open(t, entity.KindShot, "projects/demo/shots/sh099")
	removed, err := missing.Remove(context.Background(), false)
	if err != nil || !removed {
		t.Fatalf("remove missing = %v, %v", removed, err)
	}
	if len(f.remote.Calls) != 0 {
		t.Fatalf("unexpected calls: %v", f.remote.Verbs())
	}

	shotPath := f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	removed, err = shot.Remove(context.Background(), false)
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	if got := f.remote.Paths("remove"); !reflect.DeepEqual(got, []string{shotPath}) {
		t.Fatalf("remove paths = %v", got)
	}
}

func TestRemoveUseSourceAddressesRawPath(t *testing.T) {
	f := newFixture(t)
	alias := filepath.Join(testsupport.BaseDir(f.cfg), "share")
	f.cfg.Paths.Aliases = append(f.cfg.Paths.Aliases, alias)
	parser, err := hdxpath.NewFromConfig(f.cfg)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	source := filepath.Join(alias, "projects", "demo", "shots", "sh010")
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatal(err)
	}

	shot, err := entity.Open(context.Background(), f.remote, entity.KindShot, source, "", entity.WithParser(parser))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if shot.Exists("") {
		t.Fatal("canonical path should be absent")
	}

	removed, err := shot.Remove(context.Background(), false)
	if err != nil || !removed {
		t.Fatalf("remove canonical = %v, %v", removed, err)
	}
	if f.remote.Count("remove") != 0 {
		t.Fatalf("absent canonical path should not reach mavis: %v", f.remote.Verbs())
	}

	removed, err = shot.Remove(context.Background(), true)
	if err != nil || !removed {
		t.Fatalf("remove source = %v, %v", removed, err)
	}
	if got := f.remote.Paths("remove"); !reflect.DeepEqual(got, []string{source}) {
		t.Fatalf("remove paths = %v, want %s", got, source)
	}
}

func TestUpdateFailureKeepsMergedFieldsDirty(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	f.remote.Err = services.Wrap(services.ErrUnreachable, "mavis", "update", "offline", nil)

	err := shot.Update(context.Background(), mavis.Record{"status": "final"}, nil)
	if !errors.Is(err, services.ErrUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
	if got := shot.MetadataString("status", "", ""); got != "final" {
		t.Fatalf("local merge rolled back: status = %q", got)
	}
	if got := shot.Dirty(""); !reflect.DeepEqual(got, []string{"status"}) {
		t.Fatalf("dirty = %v", got)
	}

	f.remote.Err = nil
	if err := shot.Update(context.Background(), mavis.Record{"status": "final"}, nil); err != nil {
		t.Fatalf("retry update: %v", err)
	}
	if got := shot.Dirty(""); len(got) != 0 {
		t.Fatalf("dirty after success = %v", got)
	}
}

func TestListAllSplitsDirectories(t *testing.T) {
	f := newFixture(t)
	shotPath := f.seedShot(t)
	f.remote.Listings[shotPath] = map[string][]mavis.Record{
		"notes": {{"id": float64(1)}, {"id": float64(2)}},
		"tasks": {{"id": float64(3)}},
	}
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")

	out, err := shot.List(context.Background(), entity.ListAll, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("directories = %d", len(out))
	}
	notes, ok := shot.Listing("notes")
	if !ok || len(notes) != 2 {
		t.Fatalf("notes listing = %v %v", notes, ok)
	}
	if tasks, _ := shot.Listing("tasks"); len(tasks) != 1 {
		t.Fatalf("tasks listing = %v", tasks)
	}
}

func TestListNotFoundIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")

	out, err := shot.List(context.Background(), "notes", "")
	if err != nil || out != nil {
		t.Fatalf("list = %v, %v", out, err)
	}
	if records, ok := shot.Listing("notes"); !ok || records != nil {
		t.Fatalf("cached listing = %v %v", records, ok)
	}
}

func TestReloadClearsDirtyFields(t *testing.T) {
	f := newFixture(t)
	f.seedShot(t)
	shot := f.open(t, entity.KindShot, "projects/demo/shots/sh010")
	shot.MarkDirty("", "frames")
	if !shot.Stale() || !reflect.DeepEqual(shot.Dirty(""), []string{"frames"}) {
		t.Fatalf("dirty = %v", shot.Dirty(""))
	}

	if err := shot.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if shot.Stale() {
		t.Fatal("expected clean entity after reload")
	}
	if _, full := f.remote.Lookups(); full != 2 {
		t.Fatalf("full lookups = %d", full)
	}
}

func TestNewPathNeedsNoRemote(t *testing.T) {
	p, err := entity.NewPath("/hdx/projects/demo/shots/sh010/plates/bg01/plate.%04d.exr")
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind() != entity.KindPath || p.Type() != "plates" || p.FileName() != "plate.%04d.exr" {
		t.Fatalf("unexpected path entity: kind=%s type=%s file=%s", p.Kind(), p.Type(), p.FileName())
	}
	if _, err := p.Remove(context.Background(), false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExistsMatchesSequenceFrames(t *testing.T) {
	f := newFixture(t)
	dir := testsupport.MkTree(t, f.cfg, "projects/demo/shots/sh010/attributes/plate")
	testsupport.WriteFile(t, filepath.Join(dir, "plate.1001.exr"), 1)

	e, err := entity.NewPath(f.path("projects/demo/shots/sh010/attributes/plate/plate.%04d.exr"), entity.WithParser(f.parser))
	if err != nil {
		t.Fatal(err)
	}
	if !e.Exists("") {
		t.Fatal("expected sequence to exist")
	}
	if !e.Exists("shots") || e.Exists("assets") {
		t.Fatal("component existence mismatch")
	}
}
