// Package sync reconciles local contacts and calendar events with remote
// providers. The local database is the source of truth for links and soft
// deletes; field conflicts resolve last-writer-wins.
package sync

import (
	"context"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

// Provider names, matching sync_config.provider.
const (
	ProviderICloud    = "icloud"
	ProviderGoogle    = "google"
	ProviderNextcloud = "nextcloud"
)

// ContactDelta is what one pull from a provider produced. Changed contacts
// carry the provider UID and etag; locally unknown UIDs are creations.
type ContactDelta struct {
	Changed   []*models.Contact
	Deleted   []string // provider UIDs
	SyncToken string   // empty when the provider has no incremental tokens
}

// ContactAdapter is one provider's contact endpoint.
type ContactAdapter interface {
	Provider() string
	// Pull returns changes since syncToken; an empty token means full sync.
	Pull(ctx context.Context, syncToken string) (*ContactDelta, error)
	// Push uploads the contact and returns the provider UID and etag.
	Push(ctx context.Context, c *models.Contact) (uid, etag string, err error)
	// Delete removes the remote object; false means it was already gone.
	Delete(ctx context.Context, uid string) (bool, error)
}

// Stats counts what one sync run did.
type Stats struct {
	Pulled    int `json:"pulled"`
	Pushed    int `json:"pushed"`
	Deleted   int `json:"deleted"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// Total reports whether anything happened at all.
func (s Stats) Total() int {
	return s.Pulled + s.Pushed + s.Deleted + s.Conflicts + s.Errors
}
