package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path names an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// AnyMatch reports whether the glob pattern matches at least one path.
// A malformed pattern reports false.
func AnyMatch(pattern string) bool {
	matches, err := filepath.Glob(pattern)
	return err == nil && len(matches) > 0
}

// IsMount reports whether path is a mount point: it is a directory whose
// device differs from its parent's, or it is the filesystem root.
func IsMount(path string) (bool, error) {
	clean := filepath.Clean(path)
	var st unix.Stat_t
	if err := unix.Lstat(clean, &st); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", clean, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return false, nil
	}
	parent := filepath.Dir(clean)
	if parent == clean {
		return true, nil
	}
	var parentStat unix.Stat_t
	if err := unix.Lstat(parent, &parentStat); err != nil {
		return false, fmt.Errorf("stat %s: %w", parent, err)
	}
	if st.Dev != parentStat.Dev {
		return true, nil
	}
	// The filesystem root is its own parent.
	return st.Ino == parentStat.Ino, nil
}

// CheckWritable verifies path is an existing directory the process can write into.
func CheckWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s does not exist", path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%s: insufficient permissions: %w", path, err)
	}
	return nil
}
