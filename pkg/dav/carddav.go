package dav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RemoteCard is one address object on a CardDAV server.
type RemoteCard struct {
	UID   string
	Etag  string
	VCard string
}

// CardChanges is the delta one pull produced.
type CardChanges struct {
	Changed   []RemoteCard // created or updated; the caller matches by UID
	Deleted   []string     // UIDs
	SyncToken string       // empty when the server does not support sync-collection
}

const addressbookQueryBody = `<?xml version="1.0" encoding="utf-8"?>
<card:addressbook-query xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:prop>
    <d:getetag/>
    <card:address-data/>
  </d:prop>
</card:addressbook-query>`

const syncCollectionBodyTmpl = `<?xml version="1.0" encoding="utf-8"?>
<d:sync-collection xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:sync-token>%s</d:sync-token>
  <d:sync-level>1</d:sync-level>
  <d:prop>
    <d:getetag/>
    <card:address-data/>
  </d:prop>
</d:sync-collection>`

const syncTokenPropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop><d:sync-token/></d:prop>
</d:propfind>`

// CardDAV is a client bound to one addressbook collection URL.
type CardDAV struct {
	c       *client
	baseURL string
}

// NewNextcloudCardDAV builds a client for Nextcloud's fixed addressbook
// layout.
func NewNextcloudCardDAV(server, username, password string, logger *slog.Logger) *CardDAV {
	base := fmt.Sprintf("%s/remote.php/dav/addressbooks/users/%s/contacts/",
		strings.TrimSuffix(server, "/"), username)
	return &CardDAV{
		c:       newClient(username, password, 30*time.Second, logger.With("component", "carddav", "provider", "nextcloud")),
		baseURL: base,
	}
}

// Verify checks that the addressbook answers.
func (d *CardDAV) Verify(ctx context.Context) error {
	status, _, err := d.c.do(ctx, "PROPFIND", d.baseURL, "0", "application/xml; charset=utf-8", syncTokenPropfindBody)
	if err != nil {
		return fmt.Errorf("carddav verify: %w", err)
	}
	if status != http.StatusOK && status != http.StatusMultiStatus {
		return fmt.Errorf("carddav verify: addressbook answered %d", status)
	}
	return nil
}

// ListAll pulls every card in the addressbook.
func (d *CardDAV) ListAll(ctx context.Context) ([]RemoteCard, error) {
	ms, err := d.c.multistatus(ctx, "REPORT", d.baseURL, "1", addressbookQueryBody)
	if err != nil {
		return nil, fmt.Errorf("addressbook query: %w", err)
	}
	return cardsFromMultistatus(ms), nil
}

// ChangesSince pulls the delta since syncToken via sync-collection. An empty
// token returns the full collection plus a fresh token.
func (d *CardDAV) ChangesSince(ctx context.Context, syncToken string) (*CardChanges, error) {
	body := fmt.Sprintf(syncCollectionBodyTmpl, syncToken)
	ms, err := d.c.multistatus(ctx, "REPORT", d.baseURL, "", body)
	if err != nil {
		return nil, fmt.Errorf("sync-collection: %w", err)
	}

	changes := &CardChanges{SyncToken: strings.TrimSpace(ms.SyncToken)}
	for i := range ms.Responses {
		resp := &ms.Responses[i]
		if statusNotFound(resp.Status) {
			changes.Deleted = append(changes.Deleted, hrefBasename(resp.Href))
			continue
		}
		prop := resp.firstProp()
		if prop == nil || strings.TrimSpace(prop.AddressData) == "" {
			continue
		}
		changes.Changed = append(changes.Changed, RemoteCard{
			UID:   hrefBasename(resp.Href),
			Etag:  strings.Trim(prop.Etag, `"`),
			VCard: prop.AddressData,
		})
	}

	if changes.SyncToken == "" {
		token, err := d.SyncToken(ctx)
		if err != nil {
			return nil, err
		}
		changes.SyncToken = token
	}
	return changes, nil
}

// SyncToken fetches the collection's current token.
func (d *CardDAV) SyncToken(ctx context.Context) (string, error) {
	ms, err := d.c.multistatus(ctx, "PROPFIND", d.baseURL, "0", syncTokenPropfindBody)
	if err != nil {
		return "", fmt.Errorf("fetch sync token: %w", err)
	}
	for i := range ms.Responses {
		if prop := ms.Responses[i].firstProp(); prop != nil && prop.SyncToken != "" {
			return strings.TrimSpace(prop.SyncToken), nil
		}
	}
	return "", nil
}

// Put uploads one card, keyed by UID.
func (d *CardDAV) Put(ctx context.Context, uid, vcard string) error {
	url := d.baseURL + uid + ".vcf"
	status, _, err := d.c.do(ctx, http.MethodPut, url, "", "text/vcard; charset=utf-8", vcard)
	if err != nil {
		return fmt.Errorf("put card %s: %w", uid, err)
	}
	if status != http.StatusCreated && status != http.StatusNoContent {
		return fmt.Errorf("put card %s: server answered %d", uid, status)
	}
	return nil
}

// Delete removes one card. Missing cards are not an error.
func (d *CardDAV) Delete(ctx context.Context, uid string) error {
	url := d.baseURL + uid + ".vcf"
	status, _, err := d.c.do(ctx, http.MethodDelete, url, "", "", "")
	if err != nil {
		return fmt.Errorf("delete card %s: %w", uid, err)
	}
	if status != http.StatusOK && status != http.StatusNoContent && status != http.StatusNotFound {
		return fmt.Errorf("delete card %s: server answered %d", uid, status)
	}
	return nil
}

func cardsFromMultistatus(ms *multistatusResponse) []RemoteCard {
	var out []RemoteCard
	for i := range ms.Responses {
		prop := ms.Responses[i].firstProp()
		if prop == nil || strings.TrimSpace(prop.AddressData) == "" {
			continue
		}
		out = append(out, RemoteCard{
			UID:   hrefBasename(ms.Responses[i].Href),
			Etag:  strings.Trim(prop.Etag, `"`),
			VCard: prop.AddressData,
		})
	}
	return out
}
