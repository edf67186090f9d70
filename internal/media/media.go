package media

import (
	"path/filepath"
	"strings"

	"hdx/internal/fileutil"
	"hdx/internal/mavis"
	"hdx/internal/services"
)

// Media is anything that can be submitted for rendering.
type Media interface {
	Path() string
	Name() string
	Kind() string
	JobDefaults() mavis.Record
}

// Movie is a single movie file, usually a QuickTime.
type Movie struct {
	file
}

// NewMovie wraps the movie at p.
func NewMovie(p string) (*Movie, error) {
	f, err := newFile("movie", p)
	if err != nil {
		return nil, err
	}
	return &Movie{file: f}, nil
}

func (m *Movie) Kind() string { return "movie" }

// Image is a single still image.
type Image struct {
	file
}

// NewImage wraps the image at p.
func NewImage(p string) (*Image, error) {
	f, err := newFile("image", p)
	if err != nil {
		return nil, err
	}
	return &Image{file: f}, nil
}

func (i *Image) Kind() string { return "image" }

type file struct {
	path string
}

func newFile(kind, p string) (file, error) {
	if strings.TrimSpace(p) == "" {
		return file{}, services.Wrap(services.ErrValidation, "media", "new "+kind, "path is required", nil)
	}
	return file{path: filepath.Clean(p)}, nil
}

func (f file) Path() string { return f.path }

func (f file) Name() string { return filepath.Base(f.path) }

func (f file) Exists() bool { return fileutil.Exists(f.path) }

func (f file) JobDefaults() mavis.Record { return mavis.Record{} }
