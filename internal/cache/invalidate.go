package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents. It recreates the directory
// afterwards to leave a valid empty cache location.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeHTTPCacheByAge removes HTTP cache entries older than maxAge.
// It inspects <key>.meta.json for SavedAt timestamp and deletes both meta and
// corresponding <key>.body when expired.
func PurgeHTTPCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	// Iterate only meta files to decide expiration
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		// Read SavedAt
		b, err := os.ReadFile(path)
		if err != nil {
			return nil // skip unreadable
		}
		var e HTTPEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil // skip malformed
		}
		if now.Sub(e.SavedAt) <= maxAge {
			return nil
		}
		// Expired: delete meta and body
		removed++
		_ = os.Remove(path)
		base := strings.TrimSuffix(path, ".meta.json")
		_ = os.Remove(base + ".body")
		return nil
	})
	return removed, err
}

// EnforceHTTPCacheLimits evicts least recently used HTTP cache entries until
// the cache holds at most maxCount entries and maxBytes bytes (meta + body).
// A zero limit disables that dimension. Recency is the body modification
// time, which HTTPCache.LoadBody refreshes on every hit.
func EnforceHTTPCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	if maxBytes <= 0 && maxCount <= 0 {
		return 0, nil
	}
	type entry struct {
		base  string
		size  int64
		mtime time.Time
	}
	var entries []entry
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		base := strings.TrimSuffix(path, ".meta.json")
		e := entry{base: base}
		if info, err := d.Info(); err == nil {
			e.size += info.Size()
			e.mtime = info.ModTime()
		}
		if info, err := os.Stat(base + ".body"); err == nil {
			e.size += info.Size()
			e.mtime = info.ModTime()
		}
		total += e.size
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return 0, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.Before(entries[j].mtime) })
	removed := 0
	count := len(entries)
	for _, e := range entries {
		overCount := maxCount > 0 && count > maxCount
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		_ = os.Remove(e.base + ".meta.json")
		_ = os.Remove(e.base + ".body")
		count--
		total -= e.size
		removed++
	}
	return removed, nil
}
