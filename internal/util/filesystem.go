package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName strips characters that are unsafe in file or directory names.
// Empty input becomes "Unknown".
func SanitizeName(name string) string {
	if name == "" {
		return "Unknown"
	}

	cleaned := strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	var b strings.Builder
	for _, r := range cleaned {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" -_.()", r) {
			b.WriteRune(r)
		}
	}

	result := strings.TrimSpace(b.String())
	if result == "" {
		return "Unknown"
	}
	if len(result) > 150 {
		result = result[:150]
	}
	return result
}

// SafeDestPath returns a destination path under dir that does not collide
// with an existing file, appending " (n)" before the extension if needed.
func SafeDestPath(dir, filename string) string {
	target := filepath.Join(dir, filename)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		target = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, counter, ext))
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return target
		}
	}
}

// MoveFile moves a file, creating the destination directory if needed.
// Falls back to copy+remove when rename crosses filesystems.
func MoveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	// Cross-device rename fails with EXDEV
	return copyAndRemove(src, dest)
}

// copyAndRemove copies src to dest and deletes src. The copy keeps the
// source's mtime so stored modification times stay valid across the move.
func copyAndRemove(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write destination: %w", err)
	}
	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to restore mtime: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source after copy: %w", err)
	}
	return nil
}

// GetFileMetadata extracts basic filesystem metadata
func GetFileMetadata(path string) (size int64, mtime int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to stat file: %w", err)
	}

	return info.Size(), info.ModTime().Unix(), nil
}
