package media_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"hdx/internal/media"
	"hdx/internal/services"
	"hdx/internal/testsupport"
)

func writeFrames(t *testing.T, dir, pattern string, frames ...int) {
	t.Helper()
	for _, f := range frames {
		testsupport.WriteFile(t, filepath.Join(dir, fmt.Sprintf(pattern, f)), 1)
	}
}

func TestOpenSequenceFromFrame(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "plate.%04d.exr", 1001, 1002, 1010)
	writeFrames(t, dir, "other.%04d.exr", 1)

	seq, err := media.OpenSequence(filepath.Join(dir, "plate.1002.exr"))
	if err != nil {
		t.Fatalf("OpenSequence: %v", err)
	}
	if seq.Name() != "plate.%04d.exr" {
		t.Fatalf("unexpected name %q", seq.Name())
	}
	if seq.Start != 1001 || seq.End != 1010 || seq.TotalFrames() != 10 {
		t.Fatalf("unexpected range %d-%d (%d)", seq.Start, seq.End, seq.TotalFrames())
	}
	if seq.RenderStart != 1001 || seq.RenderEnd != 1010 {
		t.Fatalf("render range should default to full range, got %d-%d", seq.RenderStart, seq.RenderEnd)
	}
	if !seq.Exists() {
		t.Fatal("expected first frame to exist")
	}
	if got := seq.FramePath(7); got != filepath.Join(dir, "plate.0007.exr") {
		t.Fatalf("FramePath = %q", got)
	}
}

func TestOpenSequenceFromPattern(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "bg.%03d.dpx", 5, 6)

	for _, pattern := range []string{"bg.%03d.dpx", "bg.###.dpx"} {
		seq, err := media.OpenSequence(filepath.Join(dir, pattern))
		if err != nil {
			t.Fatalf("OpenSequence(%s): %v", pattern, err)
		}
		if seq.Start != 5 || seq.End != 6 || seq.Path() != filepath.Join(dir, "bg.%03d.dpx") {
			t.Fatalf("unexpected sequence %s %d-%d", seq.Path(), seq.Start, seq.End)
		}
	}
}

func TestOpenSequenceWithoutFrames(t *testing.T) {
	if _, err := media.OpenSequence(filepath.Join(t.TempDir(), "plate.%04d.exr")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := media.OpenSequence(filepath.Join(t.TempDir(), "comp.nk")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewSequenceAndRenderRange(t *testing.T) {
	seq, err := media.NewSequence("/plates/plate.%04d.exr", 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := seq.SetRenderRange(10, 20); err != nil {
		t.Fatalf("SetRenderRange: %v", err)
	}
	defaults := seq.JobDefaults()
	if defaults["start"] != 10 || defaults["end"] != 20 {
		t.Fatalf("unexpected job defaults %v", defaults)
	}
	if err := seq.SetRenderRange(0, 20); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := media.NewSequence("/plates/plate.%04d.exr", 5, 1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}

func TestListSequencesGroupsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "a.%04d.exr", 1, 2, 3)
	writeFrames(t, dir, "b_plate.%02d.jpg", 10, 12)
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 1)

	list, err := media.ListSequences(dir)
	if err != nil {
		t.Fatalf("ListSequences: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sequences, got %d", len(list))
	}
	if list[0].Name() != "a.%04d.exr" || list[0].Start != 1 || list[0].End != 3 {
		t.Fatalf("unexpected first sequence %s %d-%d", list[0].Name(), list[0].Start, list[0].End)
	}
	if list[1].Name() != "b_plate.%02d.jpg" || list[1].Start != 10 || list[1].End != 12 {
		t.Fatalf("unexpected second sequence %s %d-%d", list[1].Name(), list[1].Start, list[1].End)
	}

	single, err := media.ListSequences(filepath.Join(dir, "a.0002.exr"))
	if err != nil || len(single) != 1 || single[0].Start != 1 {
		t.Fatalf("expected single sequence from a frame, got %v %v", single, err)
	}

	byPattern, err := media.ListSequences(filepath.Join(dir, "b_plate.%02d.jpg"))
	if err != nil || len(byPattern) != 1 || byPattern[0].End != 12 {
		t.Fatalf("expected one sequence from pattern, got %v %v", byPattern, err)
	}
}
