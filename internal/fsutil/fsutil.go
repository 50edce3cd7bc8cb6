// Package fsutil provides the file system operations the pipelines are made of:
// tree copies, moves, and "delete everything except" pruning.
package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// ErrDestinationExists is returned by Move when the target is already present.
var ErrDestinationExists = errors.New("destination already exists")

// Exists reports whether path exists (without following a final symlink).
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// RequireDir returns an error wrapping fs.ErrNotExist unless path is a directory.
func RequireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory: %w", path, fs.ErrNotExist)
	}
	return nil
}

// CopyTree copies src to dst, replacing dst if it already exists so repeated
// copies converge on the same tree instead of nesting. Modes and symlinks are preserved.
func CopyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clear destination %s: %w", dst, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create parent of %s: %w", dst, err)
	}
	if !info.IsDir() {
		return copyEntry(src, dst, info)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyEntry(path, filepath.Join(dst, rel), info)
	})
}

func copyEntry(src, dst string, info fs.FileInfo) error {
	switch {
	case info.IsDir():
		return os.MkdirAll(dst, info.Mode().Perm()|0o700)
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	case info.Mode().IsRegular():
		return copyFile(src, dst, info.Mode().Perm())
	default:
		// sockets, devices and pipes have no place in a docs tree
		return nil
	}
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, perm)
}

// Move renames src to dst, creating dst's parent. It refuses to overwrite and
// falls back to copy+remove across devices.
func Move(src, dst string) error {
	if _, err := os.Lstat(src); err != nil {
		return err
	}
	exists, err := Exists(dst)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create parent of %s: %w", dst, err)
	}
	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := CopyTree(src, dst); err != nil {
		return fmt.Errorf("cross-device copy: %w", err)
	}
	return os.RemoveAll(src)
}

// Entries returns the sorted names directly under dir.
func Entries(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(des))
	for _, d := range des {
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}

// RemoveAllExcept deletes every entry of dir whose name is not in keep and
// returns the removed names. Kept names need not exist.
func RemoveAllExcept(dir string, keep []string) ([]string, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}
	return removeMatching(dir, func(name string) bool {
		_, ok := keepSet[name]
		return !ok
	})
}

// RemoveDotEntries deletes every hidden entry (name starting with ".") of dir.
// The "." and ".." markers are never listed, so they are excluded by construction.
func RemoveDotEntries(dir string) ([]string, error) {
	return removeMatching(dir, func(name string) bool { return strings.HasPrefix(name, ".") })
}

func removeMatching(dir string, match func(string) bool) ([]string, error) {
	names, err := Entries(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, name := range names {
		if !match(name) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// TreeDigest returns a stable sha256 over relative paths, modes and file
// contents under root. Identical trees yield identical digests.
func TreeDigest(root string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(h, "%s\x00%o\x00", filepath.ToSlash(rel), info.Mode())
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_, _ = io.WriteString(h, target)
		case info.Mode().IsRegular():
			f, err := os.Open(filepath.Clean(path))
			if err != nil {
				return err
			}
			_, err = io.Copy(h, f)
			_ = f.Close()
			if err != nil {
				return err
			}
		}
		_, _ = h.Write([]byte{0})
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
