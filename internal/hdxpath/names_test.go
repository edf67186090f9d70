package hdxpath

import "testing"

func TestIsSequence(t *testing.T) {
	cases := map[string]bool{
		"plate.%04d.exr":      true,
		"/a/b/plate.####.exr": true,
		"plate.%d.dpx":        true,
		"plate.0001.exr":      false,
		"comp.nk":             false,
	}
	for name, want := range cases {
		if got := IsSequence(name); got != want {
			t.Fatalf("IsSequence(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFrameGlob(t *testing.T) {
	cases := map[string]string{
		"/p/plate.%04d.exr": "/p/plate.[0-9][0-9][0-9][0-9].exr",
		"/p/plate.###.exr":  "/p/plate.[0-9][0-9][0-9].exr",
		"/p/plate.%d.exr":   "/p/plate.[0-9]*.exr",
		"/p/comp.nk":        "/p/comp.nk",
	}
	for in, want := range cases {
		if got := FrameGlob(in); got != want {
			t.Fatalf("FrameGlob(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("/hdx/projects/demo", "shots", "sh010"); got != "/hdx/projects/demo/shots/sh010" {
		t.Fatalf("Join = %q", got)
	}
	if got := Join("/hdx/projects/demo", "shots", ""); got != "/hdx/projects/demo" {
		t.Fatalf("Join without name = %q", got)
	}
	if got := Join("/hdx/projects/demo/attributes/comp", "", "3"); got != "/hdx/projects/demo/attributes/comp/3" {
		t.Fatalf("Join without category = %q", got)
	}
}
