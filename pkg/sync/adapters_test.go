package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbrainhq/secondbrain/pkg/dav"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

func TestCardDAVPullCarriesRevision(t *testing.T) {
	a := NewCardDAVAdapter(ProviderNextcloud, nil, true)

	c, err := a.toContact(dav.RemoteCard{
		UID:  "href-uid",
		Etag: "etag-9",
		VCard: "BEGIN:VCARD\r\n" +
			"UID:card-uid\r\n" +
			"FN:Anna Müller\r\n" +
			"REV:20250301T080910Z\r\n" +
			"END:VCARD\r\n",
	})
	require.NoError(t, err)

	// The embedded UID wins over the href basename.
	assert.Equal(t, "card-uid", c.ProviderUID(ProviderNextcloud))
	assert.Equal(t, "etag-9", c.SyncEtag)
	assert.Equal(t, models.SyncStatusSynced, c.SyncStatus)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 9, 10, 0, time.UTC), c.UpdatedAt)

	// The pulled revision feeds the conflict resolver.
	require.NotNil(t, remoteRevision(c))
	assert.Equal(t, c.UpdatedAt, *remoteRevision(c))
}

func TestCardDAVPullFallsBackToHrefUID(t *testing.T) {
	a := NewCardDAVAdapter(ProviderICloud, nil, false)

	c, err := a.toContact(dav.RemoteCard{
		UID:   "href-uid",
		VCard: "BEGIN:VCARD\r\nFN:Peter Schmidt\r\nEND:VCARD\r\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "href-uid", c.ProviderUID(ProviderICloud))

	// Cards without a REV leave the resolver without a remote timestamp.
	assert.Nil(t, remoteRevision(c))
}

func TestCardDAVPullRejectsMalformedCard(t *testing.T) {
	a := NewCardDAVAdapter(ProviderNextcloud, nil, true)

	_, err := a.toContact(dav.RemoteCard{UID: "u1", VCard: "not a card"})
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}
