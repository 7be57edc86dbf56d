// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package util

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/hpe-storage/tgt-manager/logger"
)

// FileExists does a stat on the path and returns true if it exists
// In addition, dir returns true if the path is a directory
func FileExists(path string) (exists bool, dir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// IsDirEmpty returns true if path has no entries.  A missing directory is reported as empty.
func IsDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// FileWriteString truncates path (creating parent directories) and writes s into it
func FileWriteString(path, s string) error {
	log.Tracef(">>>>> FileWriteString, path=%s", path)
	defer log.Trace("<<<<< FileWriteString")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

// CopyDir copies the tree rooted at src into dst, overwriting files that already exist in dst.
// Symlinks are recreated, not followed.
func CopyDir(src, dst string) error {
	log.Tracef(">>>>> CopyDir, src=%s, dst=%s", src, dst)
	defer log.Trace("<<<<< CopyDir")

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		}
		log.Debugf("Skipping special file %s", path)
		return nil
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
