// Package system holds process-level helpers: descriptor limits, file
// discovery and resource reporting.
package system

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// InitResourceLimits raises the open file limit to want (capped by the hard
// limit) and returns the resulting soft limit. Batch upgrades keep one file
// per worker open plus the watcher's descriptors.
func InitResourceLimits(want uint64, log *zap.Logger) uint64 {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("read open file limit", zap.Error(err))
		return 0
	}
	if rLimit.Cur >= want {
		return rLimit.Cur
	}

	rLimit.Cur = min(want, rLimit.Max)
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("raise open file limit", zap.Error(err))
		return 0
	}
	log.Debug("open file limit raised", zap.Uint64("limit", rLimit.Cur))
	return rLimit.Cur
}

var (
	TimelineExts = []string{".seq"}
	DocumentExts = []string{".pdf", ".png", ".jpg", ".jpeg"}
)

// FindLatest returns the most recently modified file in dir whose extension
// is one of exts. A file path searches its directory.
func FindLatest(path string, exts ...string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	dir := path
	if !fi.IsDir() {
		dir = filepath.Dir(path)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, f := range files {
		if f.IsDir() || !slices.Contains(exts, strings.ToLower(filepath.Ext(f.Name()))) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func FindLatestTimeline(dir string) (string, error) {
	return FindLatest(dir, TimelineExts...)
}

func FindLatestDocument(dir string) (string, error) {
	return FindLatest(dir, DocumentExts...)
}

// ListFiles returns every file under root with one of exts, in walk order.
func ListFiles(root string, exts ...string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
