package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// Contacts is the typed repository for the people table, used by the sync
// engine and the linked-entity resolution of the pipeline.
type Contacts struct {
	g *Gateway
}

// NewContacts creates the contact repository.
func NewContacts(g *Gateway) *Contacts {
	return &Contacts{g: g}
}

// providerUIDColumn maps a provider name to its UID column. Closed set; the
// result is safe to interpolate.
func providerUIDColumn(provider string) (string, error) {
	switch provider {
	case "icloud":
		return "icloud_uid", nil
	case "google":
		return "google_uid", nil
	case "nextcloud":
		return "nextcloud_uid", nil
	}
	return "", fmt.Errorf("%w: unknown provider %q", services.ErrInvalidInput, provider)
}

const contactColumns = `id, name, first_name, middle_name, last_name, phone, email,
	street, house_nr, zip, city, country, important_dates, last_contact, context,
	icloud_uid, google_uid, nextcloud_uid, sync_etag, sync_status,
	created_at, updated_at, deleted_at`

// FindByProviderUID looks up the live row carrying the given provider UID.
func (c *Contacts) FindByProviderUID(ctx context.Context, provider, uid string) (*models.Contact, error) {
	col, err := providerUIDColumn(provider)
	if err != nil {
		return nil, err
	}
	row, err := c.g.QueryOne(ctx,
		fmt.Sprintf("SELECT %s FROM people WHERE %s = $1 AND deleted_at IS NULL", contactColumns, col), uid)
	if err != nil {
		return nil, err
	}
	return scanContact(row), nil
}

// FindByName looks up a live contact by case-insensitive exact name.
func (c *Contacts) FindByName(ctx context.Context, name string) (*models.Contact, error) {
	row, err := c.g.QueryOne(ctx,
		fmt.Sprintf("SELECT %s FROM people WHERE LOWER(name) = LOWER($1) AND deleted_at IS NULL", contactColumns), name)
	if err != nil {
		return nil, err
	}
	return scanContact(row), nil
}

// Get loads one live contact by id.
func (c *Contacts) Get(ctx context.Context, id int64) (*models.Contact, error) {
	row, err := c.g.QueryOne(ctx,
		fmt.Sprintf("SELECT %s FROM people WHERE id = $1 AND deleted_at IS NULL", contactColumns), id)
	if err != nil {
		return nil, err
	}
	return scanContact(row), nil
}

// Insert creates a contact row and returns its id.
func (c *Contacts) Insert(ctx context.Context, contact *models.Contact) (int64, error) {
	var id int64
	err := c.g.Tx(ctx, func(tx *Tx) error {
		var txErr error
		id, txErr = c.InsertTx(ctx, tx, contact)
		return txErr
	})
	return id, err
}

// InsertTx creates a contact row inside an existing transaction, so callers
// linking a fresh contact to another mutation roll back as one unit.
func (c *Contacts) InsertTx(ctx context.Context, tx *Tx, contact *models.Contact) (int64, error) {
	dates, err := json.Marshal(dateList(contact.ImportantDates))
	if err != nil {
		return 0, fmt.Errorf("marshal important_dates: %w", err)
	}

	query := `INSERT INTO people
		(name, first_name, middle_name, last_name, phone, email,
		 street, house_nr, zip, city, country, important_dates, context,
		 icloud_uid, google_uid, nextcloud_uid, sync_etag, sync_status,
		 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,
		        NULLIF($14,''), NULLIF($15,''), NULLIF($16,''), $17, $18, NOW(), NOW())
		RETURNING id`
	return tx.InsertReturningID(ctx, query,
		contact.Name, contact.FirstName, contact.MiddleName, contact.LastName,
		contact.Phone, contact.Email, contact.Street, contact.HouseNr,
		contact.Zip, contact.City, contact.Country, string(dates), contact.Context,
		contact.ICloudUID, contact.GoogleUID, contact.NextcloudUID,
		contact.SyncEtag, string(orPending(contact.SyncStatus)))
}

// Update overwrites the mutable fields of one contact row.
func (c *Contacts) Update(ctx context.Context, contact *models.Contact) error {
	dates, err := json.Marshal(dateList(contact.ImportantDates))
	if err != nil {
		return fmt.Errorf("marshal important_dates: %w", err)
	}

	affected, err := c.g.Exec(ctx, `UPDATE people SET
		name=$1, first_name=$2, middle_name=$3, last_name=$4, phone=$5, email=$6,
		street=$7, house_nr=$8, zip=$9, city=$10, country=$11,
		important_dates=$12, context=$13,
		icloud_uid=NULLIF($14,''), google_uid=NULLIF($15,''), nextcloud_uid=NULLIF($16,''),
		sync_etag=$17, sync_status=$18, updated_at=NOW()
		WHERE id=$19 AND deleted_at IS NULL`,
		contact.Name, contact.FirstName, contact.MiddleName, contact.LastName,
		contact.Phone, contact.Email, contact.Street, contact.HouseNr,
		contact.Zip, contact.City, contact.Country, string(dates), contact.Context,
		contact.ICloudUID, contact.GoogleUID, contact.NextcloudUID,
		contact.SyncEtag, string(orPending(contact.SyncStatus)), contact.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.ErrNotFound
	}
	return nil
}

// SoftDeleteByProviderUID marks the row carrying the UID deleted with
// sync_status 'deleted'. Missing rows are not an error: the provider may
// report deletions we never pulled.
func (c *Contacts) SoftDeleteByProviderUID(ctx context.Context, provider, uid string) (bool, error) {
	col, err := providerUIDColumn(provider)
	if err != nil {
		return false, err
	}
	affected, err := c.g.Exec(ctx, fmt.Sprintf(
		`UPDATE people SET deleted_at = NOW(), sync_status = 'deleted', updated_at = NOW()
		 WHERE %s = $1 AND deleted_at IS NULL`, col), uid)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// PendingForProvider returns live contacts that must be pushed to the
// provider: explicitly pending or never pushed there.
func (c *Contacts) PendingForProvider(ctx context.Context, provider string) ([]*models.Contact, error) {
	col, err := providerUIDColumn(provider)
	if err != nil {
		return nil, err
	}
	rows, err := c.g.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM people
		 WHERE deleted_at IS NULL AND (sync_status = 'pending' OR %s IS NULL)`,
		contactColumns, col))
	if err != nil {
		return nil, err
	}
	contacts := make([]*models.Contact, 0, len(rows))
	for _, row := range rows {
		contacts = append(contacts, scanContact(row))
	}
	return contacts, nil
}

// DeletedForProvider returns locally deleted contacts that still exist at
// the provider and need a remote delete.
func (c *Contacts) DeletedForProvider(ctx context.Context, provider string) ([]*models.Contact, error) {
	col, err := providerUIDColumn(provider)
	if err != nil {
		return nil, err
	}
	rows, err := c.g.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM people
		 WHERE sync_status = 'deleted' AND %s IS NOT NULL`, contactColumns, col))
	if err != nil {
		return nil, err
	}
	contacts := make([]*models.Contact, 0, len(rows))
	for _, row := range rows {
		contacts = append(contacts, scanContact(row))
	}
	return contacts, nil
}

// ClearProviderUID detaches a contact from the provider after the remote
// copy is gone.
func (c *Contacts) ClearProviderUID(ctx context.Context, id int64, provider string) error {
	col, err := providerUIDColumn(provider)
	if err != nil {
		return err
	}
	_, err = c.g.Exec(ctx, fmt.Sprintf(
		"UPDATE people SET %s = NULL, updated_at = NOW() WHERE id = $1", col), id)
	return err
}

// MarkSynced stores the provider UID and etag after a successful push.
func (c *Contacts) MarkSynced(ctx context.Context, id int64, provider, uid, etag string) error {
	col, err := providerUIDColumn(provider)
	if err != nil {
		return err
	}
	_, err = c.g.Exec(ctx, fmt.Sprintf(
		`UPDATE people SET %s = $1, sync_etag = $2, sync_status = 'synced', updated_at = NOW()
		 WHERE id = $3`, col), uid, etag, id)
	return err
}

func scanContact(row Row) *models.Contact {
	contact := &models.Contact{
		ID:           asInt64(row["id"]),
		Name:         asString(row["name"]),
		FirstName:    asString(row["first_name"]),
		MiddleName:   asString(row["middle_name"]),
		LastName:     asString(row["last_name"]),
		Phone:        asString(row["phone"]),
		Email:        asString(row["email"]),
		Street:       asString(row["street"]),
		HouseNr:      asString(row["house_nr"]),
		Zip:          asString(row["zip"]),
		City:         asString(row["city"]),
		Country:      asString(row["country"]),
		Context:      asString(row["context"]),
		ICloudUID:    asString(row["icloud_uid"]),
		GoogleUID:    asString(row["google_uid"]),
		NextcloudUID: asString(row["nextcloud_uid"]),
		SyncEtag:     asString(row["sync_etag"]),
		SyncStatus:   models.SyncStatus(asString(row["sync_status"])),
		DeletedAt:    asTime(row["deleted_at"]),
	}
	if t := asTime(row["created_at"]); t != nil {
		contact.CreatedAt = *t
	}
	if t := asTime(row["updated_at"]); t != nil {
		contact.UpdatedAt = *t
	}
	contact.LastContact = asTime(row["last_contact"])

	if s := asString(row["important_dates"]); s != "" {
		_ = json.Unmarshal([]byte(s), &contact.ImportantDates)
	}
	return contact
}

func orPending(s models.SyncStatus) models.SyncStatus {
	if s == "" {
		return models.SyncStatusPending
	}
	return s
}

func dateList(dates []models.ImportantDate) []models.ImportantDate {
	if dates == nil {
		return []models.ImportantDate{}
	}
	return dates
}
