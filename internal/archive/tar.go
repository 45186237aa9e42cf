// Package archive splices a POSIX tar producer/consumer between a
// directory tree and the compression filter, for directory-shaped
// containers only. File-shaped containers bypass this package entirely.
package archive

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/warchs/rstf/internal/pathsafe"
	"github.com/warchs/rstf/internal/rerr"
)

// WriteDir walks root and writes its contents as a tar stream to dst, with
// entries rooted at rootName (the header's original_name). Symlink,
// device-file, and permission handling follow archive/tar's own defaults.
func WriteDir(dst io.Writer, root string, rootName string) error {
	tw := tar.NewWriter(dst)

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := rootName
		if rel != "." {
			name = filepath.ToSlash(filepath.Join(rootName, rel))
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(p)
			if err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return rerr.Wrap(rerr.IO, "walk and tar directory", err)
	}
	if err := tw.Close(); err != nil {
		return rerr.Wrap(rerr.IO, "finish tar stream", err)
	}
	return nil
}

// ExtractDir reads a tar stream from src and writes its entries into dir,
// rejecting any entry whose name is absolute or escapes dir via "..".
func ExtractDir(src io.Reader, dir string) error {
	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapReadErr("read tar entry", err)
		}
		if err := pathsafe.Check(hdr.Name); err != nil {
			return err
		}

		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0o700); err != nil {
				return rerr.Wrap(rerr.IO, "create directory from tar entry", err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return rerr.Wrap(rerr.IO, "create parent directory for symlink", err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return rerr.Wrap(rerr.IO, "create symlink from tar entry", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return rerr.Wrap(rerr.IO, "create parent directory for file", err)
			}
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)|0o600)
			if err != nil {
				return rerr.Wrap(rerr.IO, "create file from tar entry", err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return wrapReadErr("write file from tar entry", err)
			}
			if err := f.Close(); err != nil {
				return rerr.Wrap(rerr.IO, "close file from tar entry", err)
			}
		default:
			// Device files, FIFOs, and other exotic tar entry types are
			// skipped rather than rejected; they follow archive/tar's
			// defaults for everything it does write.
		}
	}
}

// wrapReadErr passes an error already carrying a Kind (an AuthError or
// TruncationError surfacing from the sealed stream beneath the tar and
// compression layers) through unchanged, instead of reclassifying it as
// IoError. Only errors genuinely local to tar decoding or the filesystem
// are wrapped.
func wrapReadErr(message string, err error) error {
	var re *rerr.Error
	if errors.As(err, &re) {
		return re
	}
	return rerr.Wrap(rerr.IO, message, err)
}
