package media

import (
	"regexp"
	"strings"
)

var (
	shotNamePattern = regexp.MustCompile(`^([^_\W]+)_?(?:plt\d+?|plate\d+?|bg\d+?|fg\d+?)?([^_\W]+)?`)
	digitRun        = regexp.MustCompile(`(\d+)`)
	layerMarkers    = []string{"plt", "plate", "fg", "bg"}
)

// ParseShotName guesses the shot code in a vendor file name. Shot codes are an
// alpha prefix and a number, so "sh010.0001.exr" yields "sh_010".
func ParseShotName(name string) string {
	m := shotNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	shot := strings.ToLower(strings.Trim(m[1]+"_"+m[2], "_"))
	if !strings.Contains(shot, "_") {
		shot = digitRun.ReplaceAllString(shot, "_$1")
	}
	return shot
}

// ParseName strips the frame token, extension and shot code from name. When
// prefix is set and the remainder carries no layer marker (plt, plate, fg,
// bg), the result is "<prefix>_<remainder>".
func ParseName(name, shotName, prefix string) string {
	out := strings.ToLower(sequencePattern.ReplaceAllString(name, ""))
	shot := strings.ToLower(shotName)
	for _, sep := range []string{"_", "-", " "} {
		shot = strings.ReplaceAll(shot, sep, "")
		out = strings.ReplaceAll(out, sep, "")
	}
	if shot != "" {
		out = strings.ReplaceAll(out, shot, "")
	}
	out = strings.Trim(out, " ._")

	if prefix != "" {
		tagged := false
		for _, marker := range layerMarkers {
			if strings.Contains(out, marker) {
				tagged = true
				break
			}
		}
		if !tagged {
			out = prefix + "_" + out
		}
	}
	return out
}
