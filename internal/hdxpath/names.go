package hdxpath

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	printfFrame = regexp.MustCompile(`%0?(\d*)d`)
	hashFrame   = regexp.MustCompile(`#+`)
)

// IsSequence reports whether name carries a frame placeholder, either printf
// style (%04d) or hashes (####).
func IsSequence(name string) bool {
	base := path.Base(name)
	return printfFrame.MatchString(base) || hashFrame.MatchString(base)
}

// FrameGlob rewrites the frame placeholder in p to a glob matching any frame
// of the same padding. Paths without a placeholder are returned unchanged.
func FrameGlob(p string) string {
	dir, base := path.Split(p)
	if loc := printfFrame.FindStringSubmatchIndex(base); loc != nil {
		class := "[0-9]*"
		if width, err := strconv.Atoi(base[loc[2]:loc[3]]); err == nil {
			class = digitClass(width)
		}
		return dir + base[:loc[0]] + class + base[loc[1]:]
	}
	if loc := hashFrame.FindStringIndex(base); loc != nil {
		return dir + base[:loc[0]] + digitClass(loc[1]-loc[0]) + base[loc[1]:]
	}
	return p
}

// Join appends a category/name pair to parent. An empty name appends nothing.
func Join(parent, category, name string) string {
	if name == "" {
		return parent
	}
	if category == "" {
		return path.Join(parent, name)
	}
	return path.Join(parent, category, name)
}

func digitClass(width int) string {
	if width < 1 {
		width = 1
	}
	return strings.Repeat("[0-9]", width)
}
