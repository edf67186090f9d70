package hdxpath

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"hdx/internal/config"
	"hdx/internal/services"
)

const (
	DefaultRoot         = "/hdx"
	DefaultMountPattern = `^/mnt/[xz]\d+`
	DefaultTopCategory  = "projects"
)

// Pair is one category/name step of a parsed path.
type Pair struct {
	Category string
	Name     string
	// Path is the canonical prefix through this pair.
	Path string
}

// Parsed is the result of decomposing one path. Maps are allocated per call.
type Parsed struct {
	Root       string
	Source     string
	Path       string
	Type       string
	Name       string
	FileName   string
	Pairs      []Pair
	Components map[string]string
	Paths      map[string]string
}

// Pair returns the pair for category, if the path contains it.
func (p Parsed) Pair(category string) (Pair, bool) {
	for _, pair := range p.Pairs {
		if pair.Category == category {
			return pair, true
		}
	}
	return Pair{}, false
}

// Truncate returns the canonical prefix that precedes the first pair with
// category. A category that is absent yields the full path.
func (p Parsed) Truncate(category string) string {
	for i, pair := range p.Pairs {
		if pair.Category != category {
			continue
		}
		if i == 0 {
			return p.Root
		}
		return p.Pairs[i-1].Path
	}
	return p.Path
}

// TypeConflictError reports a pinned type that disagrees with the parsed one.
type TypeConflictError struct {
	Path   string
	Pinned string
	Parsed string
}

func (e *TypeConflictError) Error() string {
	return fmt.Sprintf("hdxpath: defined type %q does not match parsed type %q in %s", e.Pinned, e.Parsed, e.Path)
}

func (e *TypeConflictError) Unwrap() error { return services.ErrValidation }

// Parser folds root aliases and walks category/name pairs.
type Parser struct {
	root        string
	aliases     []string
	mount       *regexp.Regexp
	topCategory string
}

// New builds a parser. Aliases are matched longest first.
func New(root string, aliases []string, mountPattern, topCategory string) (*Parser, error) {
	root = cleanRoot(root)
	if root == "" {
		return nil, services.Wrap(services.ErrValidation, "hdxpath", "new parser", "root must be an absolute path other than /", nil)
	}
	if strings.TrimSpace(topCategory) == "" {
		topCategory = DefaultTopCategory
	}
	p := &Parser{root: root, topCategory: strings.Trim(topCategory, "/")}
	if pattern := strings.TrimSpace(mountPattern); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "hdxpath", "new parser", "compile mount pattern", err)
		}
		p.mount = re
	}
	seen := map[string]struct{}{root: {}}
	for _, alias := range aliases {
		alias = cleanRoot(alias)
		if alias == "" {
			continue
		}
		if _, ok := seen[alias]; ok {
			continue
		}
		seen[alias] = struct{}{}
		p.aliases = append(p.aliases, alias)
	}
	sort.SliceStable(p.aliases, func(i, j int) bool { return len(p.aliases[i]) > len(p.aliases[j]) })
	return p, nil
}

// NewFromConfig builds a parser from the [paths] section.
func NewFromConfig(cfg *config.Config) (*Parser, error) {
	if cfg == nil {
		return Default(), nil
	}
	return New(cfg.Paths.Root, cfg.Paths.Aliases, cfg.Paths.MountPattern, cfg.Paths.TopCategory)
}

// Default returns the facility parser: root /hdx reached directly or through
// an /mnt/x<N> or /mnt/z<N> share.
func Default() *Parser {
	p, err := New(DefaultRoot, nil, DefaultMountPattern, DefaultTopCategory)
	if err != nil {
		panic(err)
	}
	return p
}

// Root returns the canonical root.
func (p *Parser) Root() string { return p.root }

// TopCategory returns the category every canonical path starts with.
func (p *Parser) TopCategory() string { return p.topCategory }

// MountPrefix returns the leading mount segment of raw, if it matches the
// mount pattern.
func (p *Parser) MountPrefix(raw string) (string, bool) {
	if p.mount == nil {
		return "", false
	}
	cleaned := clean(raw)
	loc := p.mount.FindStringIndex(cleaned)
	if loc == nil || loc[0] != 0 {
		return "", false
	}
	prefix := cleaned[:loc[1]]
	if rest := cleaned[loc[1]:]; rest != "" && !strings.HasPrefix(rest, "/") {
		return "", false
	}
	return prefix, true
}

// Canonical folds raw onto the canonical root without parsing pairs.
func (p *Parser) Canonical(raw string) (string, error) {
	rest, err := p.fold(raw)
	if err != nil {
		return "", err
	}
	return p.root + rest, nil
}

// Parse decomposes raw. A non-empty pinned type must match the category of the
// final pair.
func (p *Parser) Parse(raw, pinned string) (Parsed, error) {
	rest, err := p.fold(raw)
	if err != nil {
		return Parsed{}, err
	}

	segments := strings.Split(strings.TrimPrefix(rest, "/"), "/")
	out := Parsed{
		Root:       p.root,
		Source:     raw,
		Path:       p.root + rest,
		Components: make(map[string]string, len(segments)/2),
		Paths:      make(map[string]string, len(segments)/2),
	}
	if len(segments)%2 == 1 {
		out.FileName = segments[len(segments)-1]
		segments = segments[:len(segments)-1]
	}
	if len(segments) == 0 {
		return Parsed{}, services.Wrap(services.ErrValidation, "hdxpath", "parse", fmt.Sprintf("no category/name pairs in %q", raw), nil)
	}

	out.Pairs = make([]Pair, 0, len(segments)/2)
	for i := 0; i < len(segments); i += 2 {
		pair := Pair{
			Category: segments[i],
			Name:     segments[i+1],
			Path:     p.root + "/" + strings.Join(segments[:i+2], "/"),
		}
		out.Pairs = append(out.Pairs, pair)
		out.Components[pair.Category] = pair.Name
		out.Paths[pair.Category] = pair.Path
	}

	last := out.Pairs[len(out.Pairs)-1]
	out.Name = last.Name
	out.Type = last.Category
	if pinned != "" && pinned != last.Category {
		return Parsed{}, &TypeConflictError{Path: out.Path, Pinned: pinned, Parsed: last.Category}
	}
	if path.Ext(out.Name) != "" {
		out.FileName = out.Name
	}
	return out, nil
}

// fold returns the remainder of raw below the canonical root, starting with
// "/<top category>".
func (p *Parser) fold(raw string) (string, error) {
	cleaned := clean(raw)
	if cleaned == "/" {
		return "", services.Wrap(services.ErrValidation, "hdxpath", "fold", "empty path", nil)
	}

	rest, ok := trimRoot(cleaned, p.root)
	if !ok {
		rest = cleaned
		if mount, matched := p.MountPrefix(cleaned); matched {
			rest = strings.TrimPrefix(cleaned, mount)
			if rest == "" {
				rest = "/"
			}
			if r, ok := trimRoot(rest, p.root); ok {
				rest = r
			} else {
				rest = p.trimAlias(rest)
			}
		} else {
			rest = p.trimAlias(rest)
		}
	}

	top := "/" + p.topCategory
	if rest != top && !strings.HasPrefix(rest, top+"/") {
		return "", services.Wrap(services.ErrValidation, "hdxpath", "fold",
			fmt.Sprintf("%q is not under %s%s", raw, p.root, top), nil)
	}
	return rest, nil
}

func (p *Parser) trimAlias(value string) string {
	for _, alias := range p.aliases {
		if r, ok := trimRoot(value, alias); ok {
			return r
		}
	}
	return value
}

func trimRoot(value, root string) (string, bool) {
	if value == root {
		return "", true
	}
	if strings.HasPrefix(value, root+"/") {
		return value[len(root):], true
	}
	return "", false
}

func clean(raw string) string {
	trimmed := norm.NFC.String(strings.TrimSpace(raw))
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return path.Clean(trimmed)
}

func cleanRoot(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	cleaned := clean(value)
	if cleaned == "/" {
		return ""
	}
	return cleaned
}
