package media

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"hdx/internal/fileutil"
	"hdx/internal/mavis"
	"hdx/internal/services"
)

// sequencePattern finds the frame token (digits, %0Nd or hashes) right before
// the extension.
var sequencePattern = regexp.MustCompile(`(\d+|%0?\d*d|#+)\.(\w{1,4})$`)

// Sequence is one image sequence with a known frame range.
type Sequence struct {
	dir    string
	prefix string
	suffix string
	width  int

	Start       int
	End         int
	RenderStart int
	RenderEnd   int
}

// OpenSequence wraps p, which may be a single frame (plate.0001.exr) or a
// pattern (plate.%04d.exr). The frame range is read from disk.
func OpenSequence(p string) (*Sequence, error) {
	seq, err := parseSequence(p)
	if err != nil {
		return nil, err
	}
	frames, err := seq.frames()
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "media", "open sequence", fmt.Sprintf("no frames match %s", seq.Path()), nil)
	}
	seq.setRange(frames[0], frames[len(frames)-1])
	return seq, nil
}

// NewSequence wraps p with an explicit frame range; the disk is not read.
func NewSequence(p string, start, end int) (*Sequence, error) {
	seq, err := parseSequence(p)
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, services.Wrap(services.ErrValidation, "media", "new sequence", fmt.Sprintf("end frame %d before start %d", end, start), nil)
	}
	seq.setRange(start, end)
	return seq, nil
}

func parseSequence(p string) (*Sequence, error) {
	if strings.TrimSpace(p) == "" {
		return nil, services.Wrap(services.ErrValidation, "media", "sequence", "path is required", nil)
	}
	clean := filepath.Clean(p)
	dir, base := filepath.Split(clean)
	loc := sequencePattern.FindStringSubmatchIndex(base)
	if loc == nil {
		return nil, services.Wrap(services.ErrValidation, "media", "sequence", fmt.Sprintf("%s has no frame number", base), nil)
	}
	token := base[loc[2]:loc[3]]
	return &Sequence{
		dir:    dir,
		prefix: base[:loc[2]],
		suffix: base[loc[3]:],
		width:  tokenWidth(token),
	}, nil
}

func tokenWidth(token string) int {
	switch {
	case strings.HasPrefix(token, "%"):
		digits := strings.TrimSuffix(strings.TrimPrefix(token, "%"), "d")
		n, err := strconv.Atoi(digits)
		if err != nil || n < 1 {
			return 1
		}
		return n
	default:
		// Both a literal frame and a run of hashes give their width by length.
		return len(token)
	}
}

func (s *Sequence) setRange(start, end int) {
	s.Start, s.End = start, end
	s.RenderStart, s.RenderEnd = start, end
}

// Path returns the printf pattern path, e.g. /plates/plate.%04d.exr.
func (s *Sequence) Path() string {
	return filepath.Join(s.dir, s.Name())
}

// Name returns the pattern file name.
func (s *Sequence) Name() string {
	return fmt.Sprintf("%s%%0%dd%s", s.prefix, s.width, s.suffix)
}

func (s *Sequence) Kind() string { return "sequence" }

// JobDefaults carries the render range.
func (s *Sequence) JobDefaults() mavis.Record {
	return mavis.Record{"start": s.RenderStart, "end": s.RenderEnd}
}

// FramePath returns the path of frame n.
func (s *Sequence) FramePath(n int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%0*d%s", s.prefix, s.width, n, s.suffix))
}

// TotalFrames is the length of the full range.
func (s *Sequence) TotalFrames() int {
	return s.End - s.Start + 1
}

// SetRenderRange limits rendering to a sub-range.
func (s *Sequence) SetRenderRange(start, end int) error {
	if start < s.Start || end > s.End || end < start {
		return services.Wrap(services.ErrValidation, "media", "render range",
			fmt.Sprintf("%d-%d outside %d-%d", start, end, s.Start, s.End), nil)
	}
	s.RenderStart, s.RenderEnd = start, end
	return nil
}

// Exists reports whether the first frame is on disk.
func (s *Sequence) Exists() bool {
	return fileutil.Exists(s.FramePath(s.Start))
}

// ShotName extracts a likely shot code from the sequence name.
func (s *Sequence) ShotName() string {
	return ParseShotName(s.Name())
}

// ParseName strips the frame token and shot code from the name; see ParseName.
func (s *Sequence) ParseName(prefix string) string {
	return ParseName(s.Name(), s.ShotName(), prefix)
}

func (s *Sequence) frames() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, globEscape(s.prefix)+"*"+globEscape(s.suffix)))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "media", "glob frames", "", err)
	}
	frames := make([]int, 0, len(matches))
	for _, m := range matches {
		if n, ok := s.frameOf(filepath.Base(m)); ok {
			frames = append(frames, n)
		}
	}
	sort.Ints(frames)
	return frames, nil
}

func (s *Sequence) frameOf(base string) (int, bool) {
	if !strings.HasPrefix(base, s.prefix) || !strings.HasSuffix(base, s.suffix) {
		return 0, false
	}
	digits := base[len(s.prefix) : len(base)-len(s.suffix)]
	if len(digits) < s.width || !allDigits(digits) {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	return n, err == nil
}

// ListSequences groups the frames found at p into sequences. p may be a
// directory, a single frame, or a pattern.
func ListSequences(p string) ([]*Sequence, error) {
	info, err := os.Stat(p)
	switch {
	case err == nil && !info.IsDir():
		seq, err := OpenSequence(p)
		if err != nil {
			return nil, err
		}
		return []*Sequence{seq}, nil
	case err == nil:
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		return groupFrames(p, names), nil
	default:
		seq, err := parseSequence(p)
		if err != nil {
			return nil, err
		}
		matches, err := filepath.Glob(filepath.Join(seq.dir, globEscape(seq.prefix)+"*"+globEscape(seq.suffix)))
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "media", "glob frames", "", err)
		}
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, filepath.Base(m))
		}
		return groupFrames(seq.dir, names), nil
	}
}

func groupFrames(dir string, names []string) []*Sequence {
	type span struct {
		seq        *Sequence
		start, end int
	}
	groups := map[string]*span{}
	for _, name := range names {
		loc := sequencePattern.FindStringSubmatchIndex(name)
		if loc == nil {
			continue
		}
		digits := name[loc[2]:loc[3]]
		if !allDigits(digits) {
			continue
		}
		frame, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		seq := &Sequence{dir: dir, prefix: name[:loc[2]], suffix: name[loc[3]:], width: len(digits)}
		key := seq.Name()
		if g, ok := groups[key]; ok {
			g.start = min(g.start, frame)
			g.end = max(g.end, frame)
			continue
		}
		groups[key] = &span{seq: seq, start: frame, end: frame}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Sequence, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		g.seq.setRange(g.start, g.end)
		out = append(out, g.seq)
	}
	return out
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
