// Package images resolves part images for document rendering.
//
// Resolution walks an ordered chain of sources (declared path, local
// override directory, on-disk cache, vendor scrape) and records every fetch
// in a manifest so later builds are reproducible without network access.
package images

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const manifestName = "manifest.yaml"

// ManifestEntry records one cached image.
type ManifestEntry struct {
	File string `yaml:"file"`
	// Source names the kind of origin: "scraped" for vendor fetches,
	// "placeholder" for generated stand-ins, "local" for anything copied in
	// from disk.
	Source    string `yaml:"source"`
	SHA256    string `yaml:"sha256"`
	SourceURL string `yaml:"source_url,omitempty"`
	FetchedAt string `yaml:"fetched_at"`
	BuildID   string `yaml:"build_id"`
}

// Manifest is the cache's persisted index, keyed by cache key.
type Manifest struct {
	Entries map[string]ManifestEntry `yaml:"entries"`
}

// CacheService owns an image cache directory and its manifest. Safe for
// concurrent use; writers of the same key serialize on a per-key lock so
// parallel batch builds never fetch one image twice.
type CacheService struct {
	dir     string
	buildID string

	mu       sync.Mutex
	manifest Manifest
	dirty    bool
	keyLocks map[string]*sync.Mutex
}

// OpenCache opens (creating if needed) the cache at dir and loads its
// manifest. Each open gets a fresh build id that tags entries written during
// this process.
func OpenCache(dir string) (*CacheService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}
	c := &CacheService{
		dir:      dir,
		buildID:  uuid.NewString(),
		manifest: Manifest{Entries: make(map[string]ManifestEntry)},
		keyLocks: make(map[string]*sync.Mutex),
	}
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	switch {
	case os.IsNotExist(err):
		// Fresh cache.
	case err != nil:
		return nil, fmt.Errorf("read cache manifest: %w", err)
	default:
		if err := yaml.Unmarshal(data, &c.manifest); err != nil {
			return nil, fmt.Errorf("decode cache manifest: %w", err)
		}
		if c.manifest.Entries == nil {
			c.manifest.Entries = make(map[string]ManifestEntry)
		}
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *CacheService) Dir() string { return c.dir }

// BuildID returns the id tagging entries written during this process.
func (c *CacheService) BuildID() string { return c.buildID }

// lockKey returns the mutex serializing writers of one cache key.
func (c *CacheService) lockKey(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.keyLocks[key] = l
	}
	return l
}

// Lookup returns the cached file path for key if the manifest has an entry
// and the file is still present with its recorded content.
func (c *CacheService) Lookup(key string) (string, bool) {
	c.mu.Lock()
	entry, ok := c.manifest.Entries[key]
	c.mu.Unlock()
	if !ok {
		return "", false
	}
	path := filepath.Join(c.dir, entry.File)
	data, err := os.ReadFile(path)
	if err != nil || hashBytes(data) != entry.SHA256 {
		return "", false
	}
	return path, true
}

// Store writes data into the cache under key with the given file name and
// records its provenance: the source kind ("scraped", "placeholder",
// "local") and, for fetches, the URL. The write is atomic: a temp file in
// the cache directory renamed into place.
func (c *CacheService) Store(key, file, source, sourceURL string, data []byte) (string, error) {
	kl := c.lockKey(key)
	kl.Lock()
	defer kl.Unlock()

	path := filepath.Join(c.dir, file)
	tmp, err := os.CreateTemp(c.dir, "."+file+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("cache %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("cache %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("cache %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("cache %s: %w", key, err)
	}

	c.mu.Lock()
	c.manifest.Entries[key] = ManifestEntry{
		File:      file,
		Source:    source,
		SHA256:    hashBytes(data),
		SourceURL: sourceURL,
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
		BuildID:   c.buildID,
	}
	c.dirty = true
	c.mu.Unlock()
	return path, nil
}

// Close flushes the manifest if any entry changed. Flushing is atomic like
// image writes.
func (c *CacheService) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	data, err := yaml.Marshal(&c.manifest)
	if err != nil {
		return fmt.Errorf("encode cache manifest: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, ".manifest.tmp-*")
	if err != nil {
		return fmt.Errorf("flush cache manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flush cache manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flush cache manifest: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(c.dir, manifestName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flush cache manifest: %w", err)
	}
	c.dirty = false
	return nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
