package sync

import (
	"context"
	"fmt"

	"github.com/secondbrainhq/secondbrain/pkg/dav"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/people"
)

// CardDAVAdapter exposes a CardDAV addressbook as a ContactAdapter.
// Nextcloud supports sync-collection deltas; iCloud pulls the full book.
type CardDAVAdapter struct {
	provider    string
	client      *dav.CardDAV
	incremental bool
}

// NewCardDAVAdapter wraps a CardDAV client.
func NewCardDAVAdapter(provider string, client *dav.CardDAV, incremental bool) *CardDAVAdapter {
	return &CardDAVAdapter{provider: provider, client: client, incremental: incremental}
}

// Provider returns the provider name.
func (a *CardDAVAdapter) Provider() string { return a.provider }

// Pull fetches changed cards.
func (a *CardDAVAdapter) Pull(ctx context.Context, syncToken string) (*ContactDelta, error) {
	if a.incremental {
		changes, err := a.client.ChangesSince(ctx, syncToken)
		if err != nil {
			return nil, err
		}
		delta := &ContactDelta{
			Deleted:   changes.Deleted,
			SyncToken: changes.SyncToken,
		}
		for _, card := range changes.Changed {
			c, err := a.toContact(card)
			if err != nil {
				return nil, err
			}
			delta.Changed = append(delta.Changed, c)
		}
		return delta, nil
	}

	cards, err := a.client.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	delta := &ContactDelta{}
	for _, card := range cards {
		c, err := a.toContact(card)
		if err != nil {
			return nil, err
		}
		delta.Changed = append(delta.Changed, c)
	}
	return delta, nil
}

// Push uploads a contact as vCard, keyed by its existing or a fresh UID.
func (a *CardDAVAdapter) Push(ctx context.Context, c *models.Contact) (string, string, error) {
	vcard, uid := dav.SerializeVCard(c, c.ProviderUID(a.provider))
	if err := a.client.Put(ctx, uid, vcard); err != nil {
		return "", "", err
	}
	return uid, "", nil
}

// Delete removes the remote card.
func (a *CardDAVAdapter) Delete(ctx context.Context, uid string) (bool, error) {
	if err := a.client.Delete(ctx, uid); err != nil {
		return false, err
	}
	return true, nil
}

// toContact decodes one fetched card. The embedded UID wins over the href
// basename; servers may name the resource differently from the card.
func (a *CardDAVAdapter) toContact(card dav.RemoteCard) (*models.Contact, error) {
	c, uid, err := dav.ParseVCard(card.VCard)
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", card.UID, err)
	}
	if uid == "" {
		uid = card.UID
	}
	c.SetProviderUID(a.provider, uid)
	c.SyncEtag = card.Etag
	c.SyncStatus = models.SyncStatusSynced
	return c, nil
}

// GoogleAdapter exposes the People API as a ContactAdapter.
type GoogleAdapter struct {
	client *people.Google
}

// NewGoogleAdapter wraps a People API client.
func NewGoogleAdapter(client *people.Google) *GoogleAdapter {
	return &GoogleAdapter{client: client}
}

// Provider returns the provider name.
func (a *GoogleAdapter) Provider() string { return ProviderGoogle }

// Pull lists changed connections.
func (a *GoogleAdapter) Pull(ctx context.Context, syncToken string) (*ContactDelta, error) {
	changes, err := a.client.Pull(ctx, syncToken)
	if err != nil {
		return nil, err
	}
	return &ContactDelta{
		Changed:   changes.Changed,
		Deleted:   changes.Deleted,
		SyncToken: changes.SyncToken,
	}, nil
}

// Push creates or updates the remote contact.
func (a *GoogleAdapter) Push(ctx context.Context, c *models.Contact) (string, string, error) {
	return a.client.Push(ctx, c)
}

// Delete removes the remote contact.
func (a *GoogleAdapter) Delete(ctx context.Context, uid string) (bool, error) {
	return a.client.Delete(ctx, uid)
}
