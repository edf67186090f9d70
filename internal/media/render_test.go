package media_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"hdx/internal/media"
	"hdx/internal/services"
	"hdx/internal/testsupport"
)

func TestRenderBuildsJob(t *testing.T) {
	remote := testsupport.NewFakeRemote()
	movie, err := media.NewMovie("/hdx/projects/demo/shots/sh010/renders/v003.mov")
	if err != nil {
		t.Fatal(err)
	}

	id, err := media.Render(context.Background(), remote, movie, "/hdx/projects/demo/shots/sh010/dailies/2026-03-01", media.JobOptions{
		Args: []string{"--proxy"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if id == "" {
		t.Fatal("expected job id")
	}
	job := remote.Last().Record
	if job["title"] != "[Movie] Media Render" {
		t.Fatalf("unexpected title %v", job["title"])
	}
	if job["command"] != "movie_render" {
		t.Fatalf("unexpected command %v", job["command"])
	}
	wantArgs := []string{
		"/hdx/projects/demo/shots/sh010/renders/v003.mov",
		"/hdx/projects/demo/shots/sh010/dailies/2026-03-01/v003.mov",
		"--proxy",
	}
	if !reflect.DeepEqual(job["args"], wantArgs) {
		t.Fatalf("unexpected args %v", job["args"])
	}
}

func TestRenderSequenceCarriesRangeAndOverrides(t *testing.T) {
	remote := testsupport.NewFakeRemote()
	seq, err := media.NewSequence("/plates/plate.%04d.exr", 1, 48)
	if err != nil {
		t.Fatal(err)
	}
	_, err = media.Render(context.Background(), remote, seq, "/out", media.JobOptions{
		Title:   "Plate Convert",
		Command: "convert_sequence",
		Extra:   map[string]any{"priority": 80},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	job := remote.Last().Record
	if job["title"] != "Plate Convert" || job["command"] != "convert_sequence" {
		t.Fatalf("overrides ignored: %v", job)
	}
	if job["start"] != 1 || job["end"] != 48 || job["priority"] != 80 {
		t.Fatalf("unexpected job fields %v", job)
	}
}

func TestRendererRecordsLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ledger := testsupport.MustOpenLedger(t, cfg)
	remote := testsupport.NewFakeRemote()
	img, err := media.NewImage("/refs/still.jpg")
	if err != nil {
		t.Fatal(err)
	}

	renderer := media.NewRenderer(remote, media.WithLedger(ledger))
	id, err := renderer.Render(context.Background(), img, "/out", media.JobOptions{EntityPath: "/hdx/projects/demo"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	entry, err := ledger.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("ledger.Get: %v", err)
	}
	if entry.Command != "image_render" || entry.Destination != "/out/still.jpg" || entry.EntityPath != "/hdx/projects/demo" {
		t.Fatalf("unexpected ledger entry %+v", entry)
	}
}

func TestRenderFailures(t *testing.T) {
	movie, _ := media.NewMovie("/a.mov")
	if _, err := media.Render(context.Background(), nil, movie, "/out", media.JobOptions{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	remote := testsupport.NewFakeRemote()
	remote.Err = services.Wrap(services.ErrUnreachable, "fake", "submit", "", nil)
	if _, err := media.Render(context.Background(), remote, movie, "/out", media.JobOptions{}); !errors.Is(err, services.ErrUnreachable) {
		t.Fatalf("expected submit error to propagate, got %v", err)
	}

	if _, err := media.NewMovie(" "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
