package orchestrator

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// cleanupInterval throttles how often opportunistic cleanup actually runs.
const cleanupInterval = time.Minute

// maybeCleanup runs idle cleanup in the background when enough time has
// passed since the last run. It is called at the top of every conversion
// request.
func (o *Orchestrator) maybeCleanup() {
	o.cleanupMu.Lock()
	due := time.Since(o.lastCleanup) >= cleanupInterval
	if due {
		o.lastCleanup = time.Now()
	}
	o.cleanupMu.Unlock()

	if due {
		go o.cleanup()
	}
}

// cleanup removes uploads, output files and book records older than the
// configured cleanup age.
func (o *Orchestrator) cleanup() {
	age := time.Duration(o.cfg.Conversion.CleanupAgeSeconds) * time.Second
	if age <= 0 {
		return
	}
	ctx := context.Background()
	cutoff := time.Now().Add(-age).Unix()

	paths, err := o.store.List(ctx, "uploads/")
	if err != nil {
		log.Printf("[Cleanup] Failed to list uploads: %v", err)
	} else {
		for _, p := range paths {
			md, err := o.store.Stat(ctx, p)
			if err != nil {
				continue
			}
			if md.LastModified < cutoff {
				log.Printf("[Cleanup] Removing stale upload %s", p)
				if err := o.store.Delete(ctx, p); err != nil {
					log.Printf("[Cleanup] Failed to delete %s: %v", p, err)
				}
			}
		}
	}

	entries, err := os.ReadDir(o.cfg.Conversion.OutputDir)
	if err != nil {
		log.Printf("[Cleanup] Failed to read output directory: %v", err)
	} else {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Unix() < cutoff {
				path := filepath.Join(o.cfg.Conversion.OutputDir, entry.Name())
				log.Printf("[Cleanup] Removing stale output %s", path)
				if err := os.Remove(path); err != nil {
					log.Printf("[Cleanup] Failed to delete %s: %v", path, err)
				}
			}
		}
	}

	o.books.Cleanup(ctx, age)
}
