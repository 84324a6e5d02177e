package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GeneratePath returns a timestamped scenario file name inside dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("scenario_%s.yaml", now.Format("2006-01-02_15-04-05")))
}

// FindLatest returns the most recently modified .yaml file in dir.
func FindLatest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read scenarios directory: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var found []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, entry.Name()), info.ModTime()})
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no scenario files found in %s", dir)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })
	return found[0].path, nil
}
