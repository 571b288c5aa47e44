// Package files manages the report download directory: timestamped
// filenames, listings for the operator, and retention cleanup.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const timestampLayout = "20060102_150405"

// ResolvePattern substitutes {timestamp} in a filename pattern and
// guarantees the wanted extension.
func ResolvePattern(pattern, ext string, now time.Time) string {
	name := strings.ReplaceAll(pattern, "{timestamp}", now.Format(timestampLayout))
	if ext != "" && !strings.HasSuffix(name, ext) {
		name += ext
	}
	return name
}

// EnsureDir creates the directory if missing and returns its path.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return dir, nil
}

// UniquePath returns path itself when free, otherwise path with a numeric
// suffix before the extension.
func UniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// Info describes one file in a report directory.
type Info struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
}

// List returns files matching the glob pattern, newest first.
func List(dir, pattern string) ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	var infos []Info
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil || st.IsDir() {
			continue
		}
		infos = append(infos, Info{
			Name:     filepath.Base(m),
			Path:     m,
			Size:     st.Size(),
			Modified: st.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Modified.After(infos[j].Modified) })
	return infos, nil
}

// CleanupOlderThan removes files older than the retention window and
// returns how many were deleted.
func CleanupOlderThan(dir string, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	infos, err := List(dir, "*")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range infos {
		if info.Modified.Before(cutoff) {
			if err := os.Remove(info.Path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// FormatSize renders a byte count in human readable units.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGT"[exp])
}
