// Package dedup keeps the per-folder duplicate indexes: the byte sizes of
// files present in the folder (rebuilt from disk on every open) and the
// durable set of content hashes of every file ever kept there.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blockedby/tgdown/internal/logger"
)

const (
	// IndexFileName is the hash sidecar kept inside every destination folder.
	IndexFileName = "historial_md5.json"

	// LegacyIndexFileName is the sidecar written by older tool versions.
	// It is read and merged at Open but never written.
	LegacyIndexFileName = "history_md5.json"

	// PartSuffix marks in-progress downloads. Part files are never indexed
	// and are removed when the folder is opened.
	PartSuffix = ".tgdown-part"
)

// Reserved reports whether name belongs to the index itself and must never
// be used for a downloaded file.
func Reserved(name string) bool {
	return strings.HasPrefix(name, IndexFileName) ||
		strings.HasPrefix(name, LegacyIndexFileName) ||
		strings.HasSuffix(name, PartSuffix)
}

// Index is the dedup state of one destination folder. It is not safe for
// concurrent use; the download worker is its only user.
type Index struct {
	dir    string
	path   string
	sizes  map[int64]struct{}
	hashes map[string]struct{}
	log    *logger.Logger
}

// Open creates dir if needed, discards stale part files, scans file sizes
// and loads the hash sidecar.
func Open(dir string, log *logger.Logger) (*Index, error) {
	if log == nil {
		log = logger.Get()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create folder %s: %w", dir, err)
	}

	idx := &Index{
		dir:    dir,
		path:   filepath.Join(dir, IndexFileName),
		sizes:  make(map[int64]struct{}),
		hashes: make(map[string]struct{}),
		log:    log,
	}

	if err := idx.scanSizes(); err != nil {
		return nil, err
	}
	idx.loadHashes()

	log.Info().
		Str("folder", dir).
		Int("sizes", len(idx.sizes)).
		Int("hashes", len(idx.hashes)).
		Msg("dedup: index loaded")

	return idx, nil
}

// Dir returns the folder this index belongs to.
func (i *Index) Dir() string {
	return i.dir
}

func (i *Index) scanSizes() error {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return fmt.Errorf("scan folder %s: %w", i.dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, IndexFileName) || strings.HasPrefix(name, LegacyIndexFileName) {
			continue
		}
		if strings.HasSuffix(name, PartSuffix) {
			path := filepath.Join(i.dir, name)
			if err := os.Remove(path); err != nil {
				i.log.Warn().Err(err).Str("path", path).Msg("dedup: failed to remove stale part file")
			} else {
				i.log.Info().Str("path", path).Msg("dedup: removed stale part file")
			}
			continue
		}

		info, err := e.Info()
		if err != nil {
			// vanished between ReadDir and Info
			continue
		}
		if info.Size() > 0 {
			i.sizes[info.Size()] = struct{}{}
		}
	}
	return nil
}

// loadHashes reads the sidecar and merges in a legacy one if present. When
// the legacy file adds hashes the merged set is written out right away.
func (i *Index) loadHashes() {
	i.readHashes(i.path)

	before := len(i.hashes)
	legacy := filepath.Join(i.dir, LegacyIndexFileName)
	if !i.readHashes(legacy) || len(i.hashes) == before {
		return
	}

	i.log.Info().
		Str("path", legacy).
		Int("merged", len(i.hashes)-before).
		Msg("dedup: merged legacy hash index")
	if err := i.Save(); err != nil {
		i.log.Warn().Err(err).Str("path", i.path).Msg("dedup: failed to write merged hash index")
	}
}

// readHashes adds the hashes stored at path and reports whether the file
// was read. A missing file is an empty set; a corrupt one is logged and
// treated as empty, and is rewritten on the next save.
func (i *Index) readHashes(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			i.log.Warn().Err(err).Str("path", path).Msg("dedup: hash index unreadable, starting empty")
		}
		return false
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		i.log.Warn().Err(err).Str("path", path).Msg("dedup: hash index malformed, starting empty")
		return false
	}
	for _, h := range list {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			i.hashes[h] = struct{}{}
		}
	}
	return true
}

// HasSize reports whether a file of exactly n bytes is present.
func (i *Index) HasSize(n int64) bool {
	_, ok := i.sizes[n]
	return ok
}

// AddSize records a file of n bytes.
func (i *Index) AddSize(n int64) {
	if n > 0 {
		i.sizes[n] = struct{}{}
	}
}

// HasHash reports whether content with hash h was already kept.
func (i *Index) HasHash(h string) bool {
	_, ok := i.hashes[strings.ToLower(h)]
	return ok
}

// AddHash records h and rewrites the sidecar. When the write fails the hash
// stays in memory and the error is returned; the sidecar then lags behind
// the folder, which can only cause a missed duplicate later.
func (i *Index) AddHash(h string) error {
	h = strings.ToLower(h)
	if _, ok := i.hashes[h]; ok {
		return nil
	}
	i.hashes[h] = struct{}{}
	return i.Save()
}

// HashCount returns the number of known hashes.
func (i *Index) HashCount() int {
	return len(i.hashes)
}

// Save writes the hash set as a sorted JSON array, replacing the sidecar
// atomically.
func (i *Index) Save() error {
	list := make([]string, 0, len(i.hashes))
	for h := range i.hashes {
		list = append(list, h)
	}
	sort.Strings(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal hash index: %w", err)
	}

	tmp, err := os.CreateTemp(i.dir, IndexFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmpPath, i.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace hash index: %w", err)
	}
	return nil
}

// HashFile returns the lowercase hex MD5 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
