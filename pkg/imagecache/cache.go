// Package imagecache stores contact profile images on disk, keyed by
// contact id, so web clients load them from this process instead of the
// upstream CDN. Retrieval is strictly best-effort: a contact without a
// cached photo is normal.
package imagecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zapdesk/zapdesk/pkg/logger"
)

// Cache downloads and serves profile images under a single directory.
type Cache struct {
	dir    string
	client *http.Client
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image cache dir: %w", err)
	}
	return &Cache{
		dir:    dir,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Dir returns the directory images are stored in, for static serving.
func (c *Cache) Dir() string {
	return c.dir
}

// Fetch downloads url and stores it under the contact's key, overwriting
// any previous image. It returns the public path ("/images/<id>.jpg") on
// success and "" on any failure; errors are logged, never surfaced, so a
// failed fetch degrades a single contact's photo and nothing else.
func (c *Cache) Fetch(ctx context.Context, url, contactID string) string {
	if url == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.WarnCF("imagecache", "Bad image URL", map[string]interface{}{
			"contact": contactID, "error": err.Error(),
		})
		return ""
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.WarnCF("imagecache", "Image download failed", map[string]interface{}{
			"contact": contactID, "error": err.Error(),
		})
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.WarnCF("imagecache", "Image download rejected", map[string]interface{}{
			"contact": contactID, "status": resp.StatusCode,
		})
		return ""
	}

	name := fileName(contactID)
	tmp, err := os.CreateTemp(c.dir, name+".tmp-*")
	if err != nil {
		logger.WarnCF("imagecache", "Image write failed", map[string]interface{}{
			"contact": contactID, "error": err.Error(),
		})
		return ""
	}

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp.Name())
		logger.WarnCF("imagecache", "Image write failed", map[string]interface{}{
			"contact": contactID,
		})
		return ""
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, name)); err != nil {
		os.Remove(tmp.Name())
		logger.WarnCF("imagecache", "Image rename failed", map[string]interface{}{
			"contact": contactID, "error": err.Error(),
		})
		return ""
	}

	return "/images/" + name
}

// fileName derives a stable, filesystem-safe file name from a contact id
// ("5511999990000@c.us" -> "5511999990000@c.us.jpg" with separators
// sanitized).
func fileName(contactID string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, contactID)
	return safe + ".jpg"
}
