package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

func timep(t time.Time) *time.Time { return &t }

func sampleContact() *models.Contact {
	return &models.Contact{
		ID:        7,
		Name:      "Anna Müller",
		FirstName: "Anna",
		LastName:  "Müller",
		Phone:     "+49 170 1234567",
		Email:     "anna@example.org",
		Street:    "Hauptstraße",
		HouseNr:   "12a",
		Zip:       "10115",
		City:      "Berlin",
		Country:   "Deutschland",
		ImportantDates: []models.ImportantDate{
			{Type: "birthday", Date: "1988-04-02"},
		},
		SyncStatus: models.SyncStatusSynced,
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResolveOneSided(t *testing.T) {
	c := sampleContact()
	assert.Equal(t, ActionPull, Resolve(nil, c, nil))
	assert.Equal(t, ActionPush, Resolve(c, nil, nil))
}

func TestResolveIdenticalFields(t *testing.T) {
	local := sampleContact()
	remote := sampleContact()
	// UIDs and sync bookkeeping differ, but the contact data does not.
	remote.GoogleUID = "people/c123"
	remote.SyncEtag = "xyz"
	assert.Equal(t, ActionNone, Resolve(local, remote, timep(time.Now())))
}

func TestResolveWithoutRemoteTimestamp(t *testing.T) {
	local := sampleContact()
	remote := sampleContact()
	remote.Phone = "+49 30 999"

	// A locally pending edit wins over a provider that cannot say when
	// the remote copy changed.
	local.SyncStatus = models.SyncStatusPending
	assert.Equal(t, ActionPush, Resolve(local, remote, nil))

	local.SyncStatus = models.SyncStatusSynced
	assert.Equal(t, ActionPull, Resolve(local, remote, nil))
}

func TestResolveByTimestamp(t *testing.T) {
	local := sampleContact()
	remote := sampleContact()
	remote.Email = "new@example.org"

	older := local.UpdatedAt.Add(-time.Hour)
	newer := local.UpdatedAt.Add(time.Hour)

	assert.Equal(t, ActionPush, Resolve(local, remote, &older))
	assert.Equal(t, ActionPull, Resolve(local, remote, &newer))
	// Ties keep the local version.
	assert.Equal(t, ActionPush, Resolve(local, remote, &local.UpdatedAt))
}

func TestResolveDateListChanges(t *testing.T) {
	local := sampleContact()
	remote := sampleContact()
	remote.ImportantDates = append(remote.ImportantDates,
		models.ImportantDate{Type: "anniversary", Date: "2015-06-20"})
	newer := local.UpdatedAt.Add(time.Hour)
	assert.Equal(t, ActionPull, Resolve(local, remote, &newer))
}

func TestMergeKeepsIdentityAndUIDs(t *testing.T) {
	local := sampleContact()
	local.ICloudUID = "ABC-1"
	local.GoogleUID = "people/c42"
	local.SyncEtag = "old-etag"

	remote := sampleContact()
	remote.Phone = "+49 30 999"
	remote.GoogleUID = "people/c42-new"
	remote.SyncEtag = ""

	merged := Merge(local, remote, ProviderGoogle)

	assert.Equal(t, local.ID, merged.ID)
	assert.Equal(t, local.CreatedAt, merged.CreatedAt)
	assert.Equal(t, "+49 30 999", merged.Phone)
	// The winning provider's UID comes from the remote copy; the others
	// survive from the local row.
	assert.Equal(t, "people/c42-new", merged.GoogleUID)
	assert.Equal(t, "ABC-1", merged.ICloudUID)
	assert.Equal(t, models.SyncStatusSynced, merged.SyncStatus)
	// Empty remote etag falls back to the local one.
	assert.Equal(t, "old-etag", merged.SyncEtag)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	local := sampleContact()
	remote := sampleContact()
	remote.Phone = "+49 30 999"

	_ = Merge(local, remote, ProviderNextcloud)
	assert.Equal(t, "+49 170 1234567", local.Phone)
	assert.Equal(t, int64(7), remote.ID)
}
