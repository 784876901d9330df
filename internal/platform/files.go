package platform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TrashSuffix marks a file staged for deletion at the next startup.
const TrashSuffix = ".cadtrash"

// TrashPath returns the staged-removal name for a path.
func TrashPath(path string) string {
	return path + TrashSuffix
}

// IsTrashed reports whether a path carries the staged-removal suffix.
func IsTrashed(path string) bool {
	return filepath.Ext(path) == TrashSuffix
}

// TrashRename renames a file in place to its trashed form and returns the
// new path. Renaming an already-trashed or missing file is not an error:
// staging must be idempotent across interrupted attempts.
func TrashRename(path string) (string, error) {
	trashed := TrashPath(path)

	if _, err := os.Stat(trashed); err == nil {
		// A previous staging attempt already renamed this file.
		os.Remove(path)
		return trashed, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return trashed, nil
	}

	if err := os.Rename(path, trashed); err != nil {
		return "", fmt.Errorf("staging %s for removal: %w", path, err)
	}
	return trashed, nil
}

// DeleteTrashed removes a staged file. A file that is already gone counts
// as deleted; a file still held open by another process returns the error
// for the caller to defer to the next startup.
func DeleteTrashed(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("deleting %s: %w", path, err)
}

// MoveFile renames src to dst, creating dst's directory, with a copy+delete
// fallback for cross-device moves.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// CopyFile copies a single file from src to dst, preserving permissions.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// CopyDir recursively copies src to dst. Symlinks and other special files
// are skipped.
func CopyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := CopyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else if entry.Type().IsRegular() {
			if err := CopyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// PruneEmptyDirs removes dir and its empty ancestors up to (not including)
// stop. Used after removal finalization to keep the modules root tidy.
func PruneEmptyDirs(dir, stop string) {
	for dir != stop && dir != "." && dir != string(filepath.Separator) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
