package sync

import (
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

// Resolution actions.
const (
	ActionNone = "none"
	ActionPush = "push"
	ActionPull = "pull"
)

// Resolve decides the direction for a contact that exists on both sides.
// remoteUpdated may be nil for providers without timestamps; then a locally
// pending contact wins, anything else pulls.
func Resolve(local, remote *models.Contact, remoteUpdated *time.Time) string {
	if local == nil {
		return ActionPull
	}
	if remote == nil {
		return ActionPush
	}
	if fieldsEqual(local, remote) {
		return ActionNone
	}
	if remoteUpdated == nil {
		if local.SyncStatus == models.SyncStatusPending {
			return ActionPush
		}
		return ActionPull
	}
	// Ties keep the local version.
	if !local.UpdatedAt.Before(*remoteUpdated) {
		return ActionPush
	}
	return ActionPull
}

// Merge builds the pulled version: remote fields win, but the local row
// identity and every provider UID survive, with the winning provider's UID
// taken from the remote copy.
func Merge(local, remote *models.Contact, provider string) *models.Contact {
	merged := *remote
	merged.ID = local.ID
	merged.ICloudUID = local.ICloudUID
	merged.GoogleUID = local.GoogleUID
	merged.NextcloudUID = local.NextcloudUID
	merged.SetProviderUID(provider, remote.ProviderUID(provider))
	merged.SyncStatus = models.SyncStatusSynced
	merged.CreatedAt = local.CreatedAt
	if merged.SyncEtag == "" {
		merged.SyncEtag = local.SyncEtag
	}
	return &merged
}

func fieldsEqual(a, b *models.Contact) bool {
	if a.Name != b.Name || a.FirstName != b.FirstName ||
		a.MiddleName != b.MiddleName || a.LastName != b.LastName ||
		a.Phone != b.Phone || a.Email != b.Email {
		return false
	}
	if a.Street != b.Street || a.HouseNr != b.HouseNr ||
		a.Zip != b.Zip || a.City != b.City || a.Country != b.Country {
		return false
	}
	if len(a.ImportantDates) != len(b.ImportantDates) {
		return false
	}
	for i := range a.ImportantDates {
		if a.ImportantDates[i] != b.ImportantDates[i] {
			return false
		}
	}
	return true
}
