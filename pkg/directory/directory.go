// Package directory produces the filtered, enriched, paginated contact
// listing served to web clients. The upstream contact list is the source of
// truth on every call; only downloaded photos are cached locally.
package directory

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zapdesk/zapdesk/pkg/imagecache"
	"github.com/zapdesk/zapdesk/pkg/logger"
	"github.com/zapdesk/zapdesk/pkg/wa"
)

// SessionClient supplies the live upstream client, or ErrNotInitialized.
type SessionClient interface {
	ActiveClient() (wa.Client, error)
}

// Page is the paginated contact envelope.
type Page struct {
	Contacts []wa.Contact `json:"contacts"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
	HasMore  bool         `json:"hasMore"`
}

// Directory lists contacts from the session's upstream client.
type Directory struct {
	session SessionClient
	images  *imagecache.Cache
	scheme  wa.NumberScheme
	workers int
}

// New creates a directory. workers caps concurrent photo fetches during
// enrichment.
func New(session SessionClient, images *imagecache.Cache, scheme wa.NumberScheme, workers int) *Directory {
	if workers <= 0 {
		workers = 8
	}
	return &Directory{
		session: session,
		images:  images,
		scheme:  scheme,
		workers: workers,
	}
}

// List fetches the upstream contact set, discards groups and out-of-scheme
// numbers, resolves a profile photo for each survivor through a bounded
// worker pool, then paginates over the full filtered set. A single failed
// photo lookup degrades that contact's photo to null and nothing else.
func (d *Directory) List(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	client, err := d.session.ActiveClient()
	if err != nil {
		return nil, err
	}

	raws, err := client.Contacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch contacts: %w", err)
	}

	filtered := make([]wa.RawContact, 0, len(raws))
	for _, rc := range raws {
		if rc.IsGroup || !d.scheme.Valid(rc.Number) {
			continue
		}
		filtered = append(filtered, rc)
	}

	contacts := make([]wa.Contact, len(filtered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, rc := range filtered {
		g.Go(func() error {
			contacts[i] = d.enrich(gctx, rc)
			return nil
		})
	}
	// Workers never return errors; enrichment failures degrade per contact.
	_ = g.Wait()

	total := len(contacts)
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &Page{
		Contacts: contacts[start:end],
		Total:    total,
		Page:     page,
		Limit:    limit,
		HasMore:  (page-1)*limit+limit < total,
	}, nil
}

// enrich builds the canonical contact, attaching a locally cached photo
// when one can be resolved.
func (d *Directory) enrich(ctx context.Context, rc wa.RawContact) wa.Contact {
	contact := wa.Contact{
		ID:     rc.ID,
		Name:   rc.DisplayName(),
		Number: rc.Number,
	}

	client, err := d.session.ActiveClient()
	if err != nil {
		return contact
	}

	url, err := client.ProfilePictureURL(ctx, rc.ID)
	if err != nil {
		logger.DebugCF("directory", "Profile picture lookup failed", map[string]interface{}{
			"contact": rc.ID, "error": err.Error(),
		})
		return contact
	}
	if url == "" {
		return contact
	}

	if path := d.images.Fetch(ctx, url, rc.ID); path != "" {
		contact.Photo = &path
	}
	return contact
}
