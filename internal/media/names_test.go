package media

import "testing"

func TestParseShotName(t *testing.T) {
	cases := map[string]string{
		"sh010.0001.exr":       "sh_010",
		"SH010_comp.%04d.exr":  "sh010_comp",
		"abc_0100.%04d.dpx":    "abc_0100",
		"XY0100_bg01.0001.exr": "xy0100_1",
	}
	for name, want := range cases {
		if got := ParseShotName(name); got != want {
			t.Fatalf("ParseShotName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestParseName(t *testing.T) {
	cases := []struct {
		name, shot, prefix, want string
	}{
		{name: "sh010_plate01.%04d.exr", shot: "sh_010", want: "plate01"},
		{name: "sh010_cleanplate.0001.exr", shot: "sh_010", prefix: "ref", want: "cleanplate"},
		{name: "sh010_grade.0001.exr", shot: "sh_010", prefix: "ref", want: "ref_grade"},
		{name: "Sh-010 Grade.%04d.exr", shot: "sh_010", want: "grade"},
	}
	for _, tc := range cases {
		if got := ParseName(tc.name, tc.shot, tc.prefix); got != tc.want {
			t.Fatalf("ParseName(%q, %q, %q) = %q, want %q", tc.name, tc.shot, tc.prefix, got, tc.want)
		}
	}
}
