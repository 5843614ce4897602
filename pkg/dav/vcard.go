// Package dav speaks CardDAV and CalDAV to Nextcloud and iCloud, including
// the vCard 3.0 and iCalendar codecs the servers exchange.
package dav

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// houseNrRe splits a trailing house number off a street line when the simple
// last-token check fails, e.g. "Musterweg 12a".
var houseNrRe = regexp.MustCompile(`^(.+?)\s+(\d+\w*)$`)

// ParseVCard decodes a vCard 3.0 into a contact plus its embedded UID, which
// may be empty. Only the first TEL and EMAIL are kept. Input without a
// BEGIN:VCARD line or without any name rejects with ErrInvalidInput.
func ParseVCard(raw string) (*models.Contact, string, error) {
	c := &models.Contact{}
	var uid string
	isVCard := false
	for _, line := range unfoldLines(raw) {
		name, _, value := splitProperty(line)
		switch name {
		case "BEGIN":
			if strings.EqualFold(value, "VCARD") {
				isVCard = true
			}
		case "UID":
			uid = value
		case "REV":
			if t, ok := parseRevision(value); ok {
				c.UpdatedAt = t
			}
		case "FN":
			c.Name = value
		case "N":
			parts := strings.Split(value, ";")
			if len(parts) > 0 {
				c.LastName = strings.TrimSpace(parts[0])
			}
			if len(parts) > 1 {
				c.FirstName = strings.TrimSpace(parts[1])
			}
			if len(parts) > 2 {
				c.MiddleName = strings.TrimSpace(parts[2])
			}
		case "TEL":
			if c.Phone == "" {
				c.Phone = value
			}
		case "EMAIL":
			if c.Email == "" {
				c.Email = value
			}
		case "ADR":
			parseAddress(c, value)
		case "BDAY":
			if d := normalizeDate(value); d != "" {
				c.ImportantDates = append(c.ImportantDates,
					models.ImportantDate{Type: "birthday", Date: d})
			}
		case "ANNIVERSARY":
			if d := normalizeDate(value); d != "" {
				c.ImportantDates = append(c.ImportantDates,
					models.ImportantDate{Type: "anniversary", Date: d})
			}
		case "NOTE":
			c.Context = unescapeText(value)
		}
	}
	if !isVCard {
		return nil, "", fmt.Errorf("%w: not a vCard", services.ErrInvalidInput)
	}
	if c.Name == "" {
		c.Name = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	if c.Name == "" {
		return nil, "", fmt.Errorf("%w: vCard carries no name", services.ErrInvalidInput)
	}
	return c, uid, nil
}

// revisionFormats are the REV timestamp shapes seen in the wild.
var revisionFormats = []string{"20060102T150405Z", time.RFC3339, "20060102T150405"}

func parseRevision(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range revisionFormats {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SerializeVCard encodes a contact as vCard 3.0. uid may be empty for a new
// contact; a fresh one is generated.
func SerializeVCard(c *models.Contact, uid string) (string, string) {
	if uid == "" {
		uid = uuid.New().String()
	}
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\r\n")
	b.WriteString("VERSION:3.0\r\n")
	fmt.Fprintf(&b, "UID:%s\r\n", uid)
	fmt.Fprintf(&b, "N:%s;%s;%s;;\r\n", c.LastName, c.FirstName, c.MiddleName)
	fmt.Fprintf(&b, "FN:%s\r\n", displayName(c))
	if c.Phone != "" {
		fmt.Fprintf(&b, "TEL;TYPE=CELL:%s\r\n", c.Phone)
	}
	if c.Email != "" {
		fmt.Fprintf(&b, "EMAIL;TYPE=HOME:%s\r\n", c.Email)
	}
	if c.Street != "" || c.City != "" || c.Zip != "" || c.Country != "" {
		street := c.Street
		if c.HouseNr != "" {
			street += " " + c.HouseNr
		}
		fmt.Fprintf(&b, "ADR;TYPE=HOME:;;%s;%s;;%s;%s\r\n", street, c.City, c.Zip, c.Country)
	}
	for _, d := range c.ImportantDates {
		switch d.Type {
		case "birthday":
			fmt.Fprintf(&b, "BDAY:%s\r\n", d.Date)
		case "anniversary":
			fmt.Fprintf(&b, "ANNIVERSARY:%s\r\n", d.Date)
		}
	}
	if c.Context != "" {
		fmt.Fprintf(&b, "NOTE:%s\r\n", escapeText(c.Context))
	}
	if !c.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "REV:%s\r\n", c.UpdatedAt.UTC().Format("20060102T150405Z"))
	}
	b.WriteString("END:VCARD\r\n")
	return b.String(), uid
}

func displayName(c *models.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// parseAddress decodes the structured ADR value
// ";;street house;city;;zip;country".
func parseAddress(c *models.Contact, value string) {
	parts := strings.Split(value, ";")
	get := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	streetLine := get(2)
	c.City = get(3)
	c.Zip = get(5)
	c.Country = get(6)

	if streetLine == "" {
		return
	}
	if idx := strings.LastIndex(streetLine, " "); idx > 0 {
		tail := streetLine[idx+1:]
		if tail != "" && tail[0] >= '0' && tail[0] <= '9' {
			c.Street = streetLine[:idx]
			c.HouseNr = tail
			return
		}
	}
	if m := houseNrRe.FindStringSubmatch(streetLine); m != nil {
		c.Street = m[1]
		c.HouseNr = m[2]
		return
	}
	c.Street = streetLine
}

// normalizeDate accepts YYYY-MM-DD and YYYYMMDD.
func normalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if len(v) == 10 && v[4] == '-' && v[7] == '-' {
		return v
	}
	if len(v) == 8 {
		return v[:4] + "-" + v[4:6] + "-" + v[6:]
	}
	return ""
}

// unfoldLines joins continuation lines (leading space or tab) per RFC 2425.
func unfoldLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(out) > 0 {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
	}
	return out
}

// splitProperty splits "NAME;PARAM=X:value" into its parts.
func splitProperty(line string) (name, params, value string) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return strings.ToUpper(line), "", ""
	}
	left := line[:colon]
	value = line[colon+1:]
	if semi := strings.Index(left, ";"); semi >= 0 {
		return strings.ToUpper(left[:semi]), left[semi+1:], value
	}
	return strings.ToUpper(left), "", value
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	return s
}

func unescapeText(s string) string {
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\,", ",")
	s = strings.ReplaceAll(s, "\\;", ";")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}
