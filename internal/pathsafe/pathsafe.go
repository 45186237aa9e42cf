// Package pathsafe rejects filesystem destination names that could escape
// the current working directory during unpack or list. original_name and
// tar entry names are untrusted strings recovered from an
// authenticated-but-attacker-chosen header.
package pathsafe

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/warchs/rstf/internal/rerr"
)

// Check rejects an empty name, an absolute path, or any ".." path
// component.
func Check(name string) error {
	if name == "" {
		return rerr.New(rerr.Format, "empty name in header")
	}
	if filepath.IsAbs(name) || path.IsAbs(filepath.ToSlash(name)) {
		return rerr.New(rerr.Format, "absolute path in header: "+name)
	}
	clean := path.Clean(filepath.ToSlash(name))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return rerr.New(rerr.Format, "path traversal in header: "+name)
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return rerr.New(rerr.Format, "path traversal in header: "+name)
		}
	}
	return nil
}
