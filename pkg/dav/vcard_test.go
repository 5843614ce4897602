package dav

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

const sampleVCard = "BEGIN:VCARD\r\n" +
	"VERSION:3.0\r\n" +
	"UID:ABC-123\r\n" +
	"N:Müller;Anna;Maria;;\r\n" +
	"FN:Anna Müller\r\n" +
	"TEL;TYPE=CELL:+49 170 1234567\r\n" +
	"TEL;TYPE=WORK:+49 30 555\r\n" +
	"EMAIL;TYPE=HOME:anna@example.org\r\n" +
	"ADR;TYPE=HOME:;;Hauptstraße 12a;Berlin;;10115;Deutschland\r\n" +
	"BDAY:1988-04-02\r\n" +
	"NOTE:Kennt sich mit Steuern aus\\, hilft gern\r\n" +
	"REV:20250301T080910Z\r\n" +
	"END:VCARD\r\n"

func TestParseVCard(t *testing.T) {
	c, uid, err := ParseVCard(sampleVCard)
	require.NoError(t, err)

	assert.Equal(t, "ABC-123", uid)
	assert.Equal(t, "Anna Müller", c.Name)
	assert.Equal(t, "Anna", c.FirstName)
	assert.Equal(t, "Maria", c.MiddleName)
	assert.Equal(t, "Müller", c.LastName)
	// Only the first TEL is kept.
	assert.Equal(t, "+49 170 1234567", c.Phone)
	assert.Equal(t, "anna@example.org", c.Email)
	assert.Equal(t, "Hauptstraße", c.Street)
	assert.Equal(t, "12a", c.HouseNr)
	assert.Equal(t, "10115", c.Zip)
	assert.Equal(t, "Berlin", c.City)
	assert.Equal(t, "Deutschland", c.Country)
	require.Len(t, c.ImportantDates, 1)
	assert.Equal(t, models.ImportantDate{Type: "birthday", Date: "1988-04-02"}, c.ImportantDates[0])
	assert.Equal(t, "Kennt sich mit Steuern aus, hilft gern", c.Context)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 9, 10, 0, time.UTC), c.UpdatedAt)
}

func TestParseVCardRejectsInvalidInput(t *testing.T) {
	_, _, err := ParseVCard("")
	assert.True(t, errors.Is(err, services.ErrInvalidInput))

	// A name without the vCard envelope is not a card.
	_, _, err = ParseVCard("FN:Anna\r\n")
	assert.True(t, errors.Is(err, services.ErrInvalidInput))

	// An envelope without any name property is useless.
	_, _, err = ParseVCard("BEGIN:VCARD\r\nVERSION:3.0\r\nEND:VCARD\r\n")
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}

func TestParseVCardFoldedLines(t *testing.T) {
	raw := "BEGIN:VCARD\r\n" +
		"FN:Anna\r\n" +
		" na Müller\r\n" +
		"END:VCARD\r\n"
	c, _, err := ParseVCard(raw)
	require.NoError(t, err)
	assert.Equal(t, "Annana Müller", c.Name)
}

func TestParseVCardNameFallback(t *testing.T) {
	raw := "BEGIN:VCARD\r\nN:Schmidt;Peter;;;\r\nEND:VCARD\r\n"
	c, uid, err := ParseVCard(raw)
	require.NoError(t, err)
	assert.Equal(t, "Peter Schmidt", c.Name)
	assert.Equal(t, "", uid)
}

func TestParseVCardCompactBirthday(t *testing.T) {
	raw := "BEGIN:VCARD\r\nFN:X\r\nBDAY:19880402\r\nEND:VCARD\r\n"
	c, _, err := ParseVCard(raw)
	require.NoError(t, err)
	require.Len(t, c.ImportantDates, 1)
	assert.Equal(t, "1988-04-02", c.ImportantDates[0].Date)
}

func TestParseVCardIgnoresMalformedRevision(t *testing.T) {
	raw := "BEGIN:VCARD\r\nFN:X\r\nREV:gestern\r\nEND:VCARD\r\n"
	c, _, err := ParseVCard(raw)
	require.NoError(t, err)
	assert.True(t, c.UpdatedAt.IsZero())
}

func TestParseAddressWithoutHouseNumber(t *testing.T) {
	raw := "BEGIN:VCARD\r\nFN:X\r\nADR:;;Am Markt;Bremen;;28195;\r\nEND:VCARD\r\n"
	c, _, err := ParseVCard(raw)
	require.NoError(t, err)
	assert.Equal(t, "Am Markt", c.Street)
	assert.Equal(t, "", c.HouseNr)
}

func TestSerializeVCard(t *testing.T) {
	c := &models.Contact{
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
			{Type: "anniversary", Date: "2015-06-20"},
		},
		Context:   "Hilft gern, auch kurzfristig",
		UpdatedAt: time.Date(2025, 3, 1, 8, 9, 10, 0, time.UTC),
	}

	raw, uid := SerializeVCard(c, "ABC-123")
	assert.Equal(t, "ABC-123", uid)
	assert.Contains(t, raw, "VERSION:3.0\r\n")
	assert.Contains(t, raw, "UID:ABC-123\r\n")
	assert.Contains(t, raw, "N:Müller;Anna;;;\r\n")
	assert.Contains(t, raw, "FN:Anna Müller\r\n")
	assert.Contains(t, raw, "TEL;TYPE=CELL:+49 170 1234567\r\n")
	assert.Contains(t, raw, "EMAIL;TYPE=HOME:anna@example.org\r\n")
	assert.Contains(t, raw, "ADR;TYPE=HOME:;;Hauptstraße 12a;Berlin;;10115;Deutschland\r\n")
	assert.Contains(t, raw, "BDAY:1988-04-02\r\n")
	assert.Contains(t, raw, "ANNIVERSARY:2015-06-20\r\n")
	assert.Contains(t, raw, "NOTE:Hilft gern\\, auch kurzfristig\r\n")
	assert.Contains(t, raw, "REV:20250301T080910Z\r\n")
}

func TestSerializeVCardGeneratesUID(t *testing.T) {
	_, uid := SerializeVCard(&models.Contact{Name: "X"}, "")
	assert.NotEmpty(t, uid)
}

func TestVCardRoundTrip(t *testing.T) {
	c, _, err := ParseVCard(sampleVCard)
	require.NoError(t, err)
	raw, _ := SerializeVCard(c, "ABC-123")
	again, uid, err := ParseVCard(raw)
	require.NoError(t, err)

	assert.Equal(t, "ABC-123", uid)
	assert.Equal(t, c.Name, again.Name)
	assert.Equal(t, c.Phone, again.Phone)
	assert.Equal(t, c.Street, again.Street)
	assert.Equal(t, c.HouseNr, again.HouseNr)
	assert.Equal(t, c.ImportantDates, again.ImportantDates)
	assert.Equal(t, c.Context, again.Context)
	assert.Equal(t, c.UpdatedAt, again.UpdatedAt)
}

func TestUnfoldLinesDropsBlankLines(t *testing.T) {
	lines := unfoldLines("A:1\r\n\r\nB:2\r\n")
	assert.Equal(t, []string{"A:1", "B:2"}, lines)
}

func TestSplitProperty(t *testing.T) {
	name, params, value := splitProperty("TEL;TYPE=CELL:+49 170")
	assert.Equal(t, "TEL", name)
	assert.Equal(t, "TYPE=CELL", params)
	assert.Equal(t, "+49 170", value)

	name, params, value = splitProperty("fn:Anna")
	assert.Equal(t, "FN", name)
	assert.Equal(t, "", params)
	assert.Equal(t, "Anna", value)
}

func TestSerializeVCardEndsEveryLineWithCRLF(t *testing.T) {
	raw, _ := SerializeVCard(&models.Contact{Name: "X"}, "u1")
	for _, line := range strings.Split(strings.TrimSuffix(raw, "\r\n"), "\r\n") {
		assert.NotContains(t, line, "\n")
	}
	assert.True(t, strings.HasSuffix(raw, "END:VCARD\r\n"))
}
