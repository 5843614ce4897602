package models

import "time"

// SyncStatus tracks a contact's synchronisation state against remote providers.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusDeleted SyncStatus = "deleted"
)

// ImportantDate is a typed date attached to a contact (birthday, anniversary).
type ImportantDate struct {
	Type string `json:"type"`
	Date string `json:"date"` // YYYY-MM-DD
}

// Contact is a person in the address book. The denormalised Name field is the
// display name; the name parts are kept separately for vCard round-trips.
type Contact struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	FirstName      string          `json:"first_name,omitempty"`
	MiddleName     string          `json:"middle_name,omitempty"`
	LastName       string          `json:"last_name,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
	Street         string          `json:"street,omitempty"`
	HouseNr        string          `json:"house_nr,omitempty"`
	Zip            string          `json:"zip,omitempty"`
	City           string          `json:"city,omitempty"`
	Country        string          `json:"country,omitempty"`
	ImportantDates []ImportantDate `json:"important_dates,omitempty"`
	LastContact    *time.Time      `json:"last_contact,omitempty"`
	Context        string          `json:"context,omitempty"`

	ICloudUID    string     `json:"icloud_uid,omitempty"`
	GoogleUID    string     `json:"google_uid,omitempty"`
	NextcloudUID string     `json:"nextcloud_uid,omitempty"`
	SyncEtag     string     `json:"sync_etag,omitempty"`
	SyncStatus   SyncStatus `json:"sync_status,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ProviderUID returns the UID this contact carries for the given provider.
func (c *Contact) ProviderUID(provider string) string {
	switch provider {
	case "icloud":
		return c.ICloudUID
	case "google":
		return c.GoogleUID
	case "nextcloud":
		return c.NextcloudUID
	}
	return ""
}

// SetProviderUID stores a provider-issued UID on the matching column.
func (c *Contact) SetProviderUID(provider, uid string) {
	switch provider {
	case "icloud":
		c.ICloudUID = uid
	case "google":
		c.GoogleUID = uid
	case "nextcloud":
		c.NextcloudUID = uid
	}
}
