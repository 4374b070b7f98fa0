package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// videoExts are the containers kept as-is when naming a stored file.
var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mkv": true, ".ts": true, ".webm": true, ".mov": true,
}

// subtitleExts identify sidecar subtitle files.
var subtitleExts = map[string]bool{".vtt": true, ".srt": true, ".ass": true}

// IsSubtitleFile reports whether path looks like a subtitle file.
func IsSubtitleFile(path string) bool {
	return subtitleExts[strings.ToLower(filepath.Ext(path))]
}

// moveFile renames src to dst, copying across filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if _, err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to a new file dst and syncs it.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}

	size, err := io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy content: %w", err)
	}
	return size, nil
}

// uniquePath returns dir/base+ext, or dir/base (n)+ext for the first n that
// does not exist yet.
func uniquePath(dir, base, ext string) string {
	candidate := filepath.Join(dir, base+ext)
	for n := 1; ; n++ {
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, ext))
	}
}

// removeFile deletes path, treating an already missing file as success.
func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// storedExt picks the extension for a transferred file.
func storedExt(tempPath, sourceURL string) string {
	if ext := strings.ToLower(filepath.Ext(tempPath)); videoExts[ext] {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(strings.SplitN(sourceURL, "?", 2)[0])); videoExts[ext] {
		return ext
	}
	return ".mp4"
}
