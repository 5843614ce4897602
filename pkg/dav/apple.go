package dav

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const icloudContactsBase = "https://contacts.icloud.com"

const principalPropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop><d:current-user-principal/></d:prop>
</d:propfind>`

const addressbookHomePropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:" xmlns:card="urn:ietf:params:xml:ns:carddav">
  <d:prop><card:addressbook-home-set/></d:prop>
</d:propfind>`

const addressbookListPropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:resourcetype/>
    <d:displayname/>
  </d:prop>
</d:propfind>`

// normalizeAppPassword strips the hyphens and spaces people paste along with
// Apple app-specific passwords.
func normalizeAppPassword(p string) string {
	p = strings.ReplaceAll(p, "-", "")
	return strings.ReplaceAll(p, " ", "")
}

// NewICloudCardDAV discovers the user's iCloud addressbook and returns a
// client bound to it. Discovery walks principal, home set, and the first
// addressbook collection.
func NewICloudCardDAV(ctx context.Context, appleID, appPassword string, logger *slog.Logger) (*CardDAV, error) {
	c := newClient(appleID, normalizeAppPassword(appPassword), 30*time.Second,
		logger.With("component", "carddav", "provider", "icloud"))

	principal, err := discoverHref(ctx, c, icloudContactsBase+"/", principalPropfindBody,
		func(p *davProp) string { return p.CurrentUserPrincipal.Href })
	if err != nil {
		return nil, fmt.Errorf("icloud principal discovery: %w", err)
	}

	home, err := discoverHref(ctx, c, resolveHref(icloudContactsBase, principal), addressbookHomePropfindBody,
		func(p *davProp) string { return p.AddressbookHomeSet.Href })
	if err != nil {
		return nil, fmt.Errorf("icloud addressbook home discovery: %w", err)
	}

	homeURL := resolveHref(icloudContactsBase, home)
	ms, err := c.multistatus(ctx, "PROPFIND", homeURL, "1", addressbookListPropfindBody)
	if err != nil {
		return nil, fmt.Errorf("icloud addressbook listing: %w", err)
	}
	for i := range ms.Responses {
		prop := ms.Responses[i].firstProp()
		if prop == nil || prop.ResourceType.Addressbook == nil {
			continue
		}
		base := resolveHref(icloudContactsBase, ms.Responses[i].Href)
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		logger.Info("icloud addressbook discovered", "name", prop.DisplayName)
		return &CardDAV{c: c, baseURL: base}, nil
	}
	return nil, fmt.Errorf("icloud: no addressbook collection under %s", homeURL)
}

// discoverHref runs one PROPFIND and extracts a single href prop.
func discoverHref(ctx context.Context, c *client, url, body string, pick func(*davProp) string) (string, error) {
	ms, err := c.multistatus(ctx, "PROPFIND", url, "0", body)
	if err != nil {
		return "", err
	}
	for i := range ms.Responses {
		if prop := ms.Responses[i].firstProp(); prop != nil {
			if href := strings.TrimSpace(pick(prop)); href != "" {
				return href, nil
			}
		}
	}
	return "", fmt.Errorf("no href in PROPFIND response from %s", url)
}
