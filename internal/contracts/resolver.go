// Package contracts resolves contract ids to their manifests. Manifests are
// JSON files on disk, optionally split per game version
// (<dir>/<gameVersion>/<id>.json with <dir>/<id>.json as fallback).
package contracts

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	cache "github.com/patrickmn/go-cache"

	"masquerade/internal/models"
)

const (
	manifestCacheTTL    = 10 * time.Minute
	manifestCacheSweep  = 15 * time.Minute
	watchDebounceWindow = 500 * time.Millisecond
)

// Resolver loads and caches contract manifests.
type Resolver struct {
	dir   string
	cache *cache.Cache
}

// NewResolver creates a resolver over the given manifest directory.
func NewResolver(dir string) *Resolver {
	return &Resolver{
		dir:   dir,
		cache: cache.New(manifestCacheTTL, manifestCacheSweep),
	}
}

// Resolve returns the manifest for a contract id, or nil if no manifest
// exists. gameVersion may be empty; version-specific manifests shadow the
// shared ones.
func (r *Resolver) Resolve(contractID, gameVersion string) *models.ContractManifest {
	if contractID == "" {
		return nil
	}

	key := gameVersion + "/" + contractID
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*models.ContractManifest)
	}

	manifest, err := r.load(contractID, gameVersion)
	if err != nil {
		log.Printf("⚠️  [CONTRACTS] Failed to resolve %s (%s): %v", contractID, gameVersion, err)
		return nil
	}
	if manifest != nil {
		r.cache.Set(key, manifest, cache.DefaultExpiration)
	}
	return manifest
}

func (r *Resolver) load(contractID, gameVersion string) (*models.ContractManifest, error) {
	candidates := []string{
		filepath.Join(r.dir, gameVersion, contractID+".json"),
		filepath.Join(r.dir, contractID+".json"),
	}
	if gameVersion == "" {
		candidates = candidates[1:]
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var manifest models.ContractManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if manifest.Metadata.ID == "" {
			manifest.Metadata.ID = contractID
		}
		return &manifest, nil
	}
	return nil, nil
}

// Flush drops every cached manifest. Called by the file watcher after edits.
func (r *Resolver) Flush() {
	r.cache.Flush()
}

// Watch flushes the manifest cache whenever a JSON file under the contracts
// directory changes, so edited contracts take effect without a restart.
// Blocks until the watcher fails; run it in a goroutine.
func (r *Resolver) Watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  [CONTRACTS] Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	absDir, err := filepath.Abs(r.dir)
	if err != nil {
		log.Printf("⚠️  [CONTRACTS] Failed to get absolute path for %s: %v", r.dir, err)
		return
	}
	if err := watcher.Add(absDir); err != nil {
		log.Printf("⚠️  [CONTRACTS] Failed to watch directory %s: %v", absDir, err)
		return
	}

	// Version subdirectories, if present
	entries, _ := os.ReadDir(absDir)
	for _, entry := range entries {
		if entry.IsDir() {
			_ = watcher.Add(filepath.Join(absDir, entry.Name()))
		}
	}

	log.Printf("👁️  Watching %s for contract changes (hot-reload enabled)", r.dir)

	// Debounce timer to avoid repeated flushes for rapid file changes
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(watchDebounceWindow, func() {
					log.Printf("🔄 Detected contract changes, flushing manifest cache")
					r.Flush()
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  [CONTRACTS] File watcher error: %v", err)
		}
	}
}
