// Package people syncs contacts against the Google People API using an OAuth
// refresh token.
package people

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	apiBase       = "https://people.googleapis.com/v1"
	pageSize      = 100
	personFields  = "names,phoneNumbers,emailAddresses,addresses,birthdays,metadata"
)

// Google is a People API client for one account.
type Google struct {
	clientID     string
	clientSecret string
	refreshToken string
	http         *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewGoogle creates the client from OAuth credentials.
func NewGoogle(clientID, clientSecret, refreshToken string, logger *slog.Logger) *Google {
	return &Google{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		http:         &http.Client{Timeout: 30 * time.Second},
		logger:       logger.With("component", "people", "provider", "google"),
	}
}

// token refreshes the access token when the cached one is stale.
func (g *Google) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := url.Values{
		"client_id":     {g.clientID},
		"client_secret": {g.clientSecret},
		"refresh_token": {g.refreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh google token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("refresh google token: %d: %s", resp.StatusCode, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	g.accessToken = tok.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return g.accessToken, nil
}

func (g *Google) call(ctx context.Context, method, rawURL string, payload any) (int, []byte, error) {
	token, err := g.token(ctx)
	if err != nil {
		return 0, nil, err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

// Changes is one pull's delta.
type Changes struct {
	Changed   []*models.Contact // GoogleUID and SyncEtag set
	Deleted   []string          // resource names
	SyncToken string
}

// Pull lists connections since syncToken. An empty token performs a full
// listing and still returns a fresh token for the next run.
func (g *Google) Pull(ctx context.Context, syncToken string) (*Changes, error) {
	changes := &Changes{}
	pageToken := ""

	for {
		q := url.Values{
			"pageSize":         {fmt.Sprint(pageSize)},
			"personFields":     {personFields},
			"requestSyncToken": {"true"},
		}
		if syncToken != "" {
			q.Set("syncToken", syncToken)
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		status, data, err := g.call(ctx, http.MethodGet,
			apiBase+"/people/me/connections?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("list connections: %w", err)
		}
		if status == http.StatusGone {
			// Expired sync token: retry as a full listing.
			g.logger.Warn("google sync token expired, falling back to full sync")
			syncToken = ""
			pageToken = ""
			changes = &Changes{}
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("list connections: %d: %s", status, data)
		}

		var page struct {
			Connections   []person `json:"connections"`
			NextPageToken string   `json:"nextPageToken"`
			NextSyncToken string   `json:"nextSyncToken"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode connections: %w", err)
		}

		for i := range page.Connections {
			p := &page.Connections[i]
			if p.Metadata.Deleted {
				changes.Deleted = append(changes.Deleted, p.ResourceName)
				continue
			}
			changes.Changed = append(changes.Changed, p.toContact())
		}
		if page.NextSyncToken != "" {
			changes.SyncToken = page.NextSyncToken
		}
		if page.NextPageToken == "" {
			return changes, nil
		}
		pageToken = page.NextPageToken
	}
}

// Push creates or updates one contact and returns its resource name and etag.
func (g *Google) Push(ctx context.Context, c *models.Contact) (string, string, error) {
	body := fromContact(c)

	if c.GoogleUID == "" {
		status, data, err := g.call(ctx, http.MethodPost, apiBase+"/people:createContact", body)
		if err != nil {
			return "", "", fmt.Errorf("create contact: %w", err)
		}
		if status != http.StatusOK {
			return "", "", fmt.Errorf("create contact: %d: %s", status, data)
		}
		var created person
		if err := json.Unmarshal(data, &created); err != nil {
			return "", "", err
		}
		return created.ResourceName, created.Etag, nil
	}

	// Updates need the current etag.
	status, data, err := g.call(ctx, http.MethodGet,
		apiBase+"/"+c.GoogleUID+"?personFields="+personFields, nil)
	if err != nil {
		return "", "", fmt.Errorf("fetch contact etag: %w", err)
	}
	if status != http.StatusOK {
		return "", "", fmt.Errorf("fetch contact etag: %d: %s", status, data)
	}
	var current person
	if err := json.Unmarshal(data, &current); err != nil {
		return "", "", err
	}
	body.Etag = current.Etag

	updateURL := fmt.Sprintf("%s/%s:updateContact?updatePersonFields=%s",
		apiBase, c.GoogleUID, "names,phoneNumbers,emailAddresses,addresses,birthdays")
	status, data, err = g.call(ctx, http.MethodPatch, updateURL, body)
	if err != nil {
		return "", "", fmt.Errorf("update contact: %w", err)
	}
	if status != http.StatusOK {
		return "", "", fmt.Errorf("update contact: %d: %s", status, data)
	}
	var updated person
	if err := json.Unmarshal(data, &updated); err != nil {
		return "", "", err
	}
	return updated.ResourceName, updated.Etag, nil
}

// Delete removes one contact. Returns false when it was already gone.
func (g *Google) Delete(ctx context.Context, resourceName string) (bool, error) {
	status, data, err := g.call(ctx, http.MethodDelete,
		apiBase+"/"+resourceName+":deleteContact", nil)
	if err != nil {
		return false, fmt.Errorf("delete contact: %w", err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("delete contact: %d: %s", status, data)
	}
}

// person mirrors the People API wire shape, restricted to the fields synced.
type person struct {
	ResourceName string `json:"resourceName,omitempty"`
	Etag         string `json:"etag,omitempty"`
	Metadata     struct {
		Deleted bool `json:"deleted,omitempty"`
		Sources []struct {
			UpdateTime time.Time `json:"updateTime,omitempty"`
		} `json:"sources,omitempty"`
	} `json:"metadata,omitempty"`
	Names []struct {
		DisplayName string `json:"displayName,omitempty"`
		GivenName   string `json:"givenName,omitempty"`
		MiddleName  string `json:"middleName,omitempty"`
		FamilyName  string `json:"familyName,omitempty"`
	} `json:"names,omitempty"`
	PhoneNumbers []struct {
		Value string `json:"value,omitempty"`
	} `json:"phoneNumbers,omitempty"`
	EmailAddresses []struct {
		Value string `json:"value,omitempty"`
	} `json:"emailAddresses,omitempty"`
	Addresses []struct {
		StreetAddress string `json:"streetAddress,omitempty"`
		City          string `json:"city,omitempty"`
		PostalCode    string `json:"postalCode,omitempty"`
		Country       string `json:"country,omitempty"`
	} `json:"addresses,omitempty"`
	Birthdays []struct {
		Date struct {
			Year  int `json:"year,omitempty"`
			Month int `json:"month,omitempty"`
			Day   int `json:"day,omitempty"`
		} `json:"date,omitempty"`
	} `json:"birthdays,omitempty"`
}

func (p *person) toContact() *models.Contact {
	c := &models.Contact{
		GoogleUID:  p.ResourceName,
		SyncEtag:   p.Etag,
		SyncStatus: models.SyncStatusSynced,
	}
	for _, s := range p.Metadata.Sources {
		if s.UpdateTime.After(c.UpdatedAt) {
			c.UpdatedAt = s.UpdateTime
		}
	}
	if len(p.Names) > 0 {
		n := p.Names[0]
		c.Name = n.DisplayName
		c.FirstName = n.GivenName
		c.MiddleName = n.MiddleName
		c.LastName = n.FamilyName
	}
	if c.Name == "" {
		c.Name = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	if len(p.PhoneNumbers) > 0 {
		c.Phone = p.PhoneNumbers[0].Value
	}
	if len(p.EmailAddresses) > 0 {
		c.Email = p.EmailAddresses[0].Value
	}
	if len(p.Addresses) > 0 {
		a := p.Addresses[0]
		c.Street, c.HouseNr = splitStreet(a.StreetAddress)
		c.City = a.City
		c.Zip = a.PostalCode
		c.Country = a.Country
	}
	for _, b := range p.Birthdays {
		if b.Date.Month == 0 || b.Date.Day == 0 {
			continue
		}
		year := b.Date.Year
		if year == 0 {
			year = 1900
		}
		c.ImportantDates = append(c.ImportantDates, models.ImportantDate{
			Type: "birthday",
			Date: fmt.Sprintf("%04d-%02d-%02d", year, b.Date.Month, b.Date.Day),
		})
		break
	}
	return c
}

func fromContact(c *models.Contact) *person {
	p := &person{}
	p.Names = append(p.Names, struct {
		DisplayName string `json:"displayName,omitempty"`
		GivenName   string `json:"givenName,omitempty"`
		MiddleName  string `json:"middleName,omitempty"`
		FamilyName  string `json:"familyName,omitempty"`
	}{
		GivenName:  c.FirstName,
		MiddleName: c.MiddleName,
		FamilyName: c.LastName,
	})
	if c.Phone != "" {
		p.PhoneNumbers = append(p.PhoneNumbers, struct {
			Value string `json:"value,omitempty"`
		}{Value: c.Phone})
	}
	if c.Email != "" {
		p.EmailAddresses = append(p.EmailAddresses, struct {
			Value string `json:"value,omitempty"`
		}{Value: c.Email})
	}
	if c.Street != "" || c.City != "" || c.Zip != "" {
		street := c.Street
		if c.HouseNr != "" {
			street += " " + c.HouseNr
		}
		p.Addresses = append(p.Addresses, struct {
			StreetAddress string `json:"streetAddress,omitempty"`
			City          string `json:"city,omitempty"`
			PostalCode    string `json:"postalCode,omitempty"`
			Country       string `json:"country,omitempty"`
		}{
			StreetAddress: street,
			City:          c.City,
			PostalCode:    c.Zip,
			Country:       c.Country,
		})
	}
	for _, d := range c.ImportantDates {
		if d.Type != "birthday" || len(d.Date) != 10 {
			continue
		}
		var bd struct {
			Date struct {
				Year  int `json:"year,omitempty"`
				Month int `json:"month,omitempty"`
				Day   int `json:"day,omitempty"`
			} `json:"date,omitempty"`
		}
		fmt.Sscanf(d.Date, "%d-%d-%d", &bd.Date.Year, &bd.Date.Month, &bd.Date.Day)
		p.Birthdays = append(p.Birthdays, bd)
		break
	}
	return p
}

// splitStreet separates a trailing house number from a street line.
func splitStreet(line string) (string, string) {
	line = strings.TrimSpace(line)
	if idx := strings.LastIndex(line, " "); idx > 0 {
		tail := line[idx+1:]
		if tail != "" && tail[0] >= '0' && tail[0] <= '9' {
			return line[:idx], tail
		}
	}
	return line, ""
}
