package dav

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// userAgent mimics a known DAV client; iCloud rejects unknown agents.
const userAgent = "DAVx5/4.3.1-ose"

// client is the shared WebDAV plumbing: basic auth, depth headers, and
// multistatus decoding.
type client struct {
	http     *http.Client
	username string
	password string
	logger   *slog.Logger
}

func newClient(username, password string, timeout time.Duration, logger *slog.Logger) *client {
	return &client{
		http:     &http.Client{Timeout: timeout},
		username: username,
		password: password,
		logger:   logger,
	}
}

// do issues one DAV request and returns status and body.
func (c *client) do(ctx context.Context, method, rawURL, depth, contentType, body string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("User-Agent", userAgent)
	if depth != "" {
		req.Header.Set("Depth", depth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// multistatus decodes a 207 response body.
func (c *client) multistatus(ctx context.Context, method, rawURL, depth, body string) (*multistatusResponse, error) {
	status, data, err := c.do(ctx, method, rawURL, depth, "application/xml; charset=utf-8", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusMultiStatus && status != http.StatusOK {
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, rawURL, status)
	}
	var ms multistatusResponse
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("decode multistatus: %w", err)
	}
	return &ms, nil
}

// resolveHref makes server-relative hrefs absolute against the base URL.
func resolveHref(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	return u.Scheme + "://" + u.Host + href
}

// hrefBasename extracts the resource name from an href, without extension.
func hrefBasename(href string) string {
	trimmed := strings.TrimSuffix(href, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if dot := strings.LastIndex(trimmed, "."); dot > 0 {
		trimmed = trimmed[:dot]
	}
	if unescaped, err := url.PathUnescape(trimmed); err == nil {
		return unescaped
	}
	return trimmed
}

// Multistatus XML shapes. Element matching goes by local name, which covers
// the d:/card:/cal: prefix variation between servers.
type multistatusResponse struct {
	XMLName   xml.Name      `xml:"multistatus"`
	SyncToken string        `xml:"sync-token"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string     `xml:"href"`
	Status    string     `xml:"status"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Status string  `xml:"status"`
	Prop   davProp `xml:"prop"`
}

type davProp struct {
	Etag                 string       `xml:"getetag"`
	AddressData          string       `xml:"address-data"`
	CalendarData         string       `xml:"calendar-data"`
	DisplayName          string       `xml:"displayname"`
	CTag                 string       `xml:"getctag"`
	CalendarColor        string       `xml:"calendar-color"`
	SyncToken            string       `xml:"sync-token"`
	ResourceType         resourceType `xml:"resourcetype"`
	CurrentUserPrincipal davHref      `xml:"current-user-principal"`
	AddressbookHomeSet   davHref      `xml:"addressbook-home-set"`
	CalendarHomeSet      davHref      `xml:"calendar-home-set"`
}

type resourceType struct {
	Addressbook *struct{} `xml:"addressbook"`
	Calendar    *struct{} `xml:"calendar"`
}

type davHref struct {
	Href string `xml:"href"`
}

// ok reports whether a propstat or response status line carries 200.
func statusOK(status string) bool {
	return strings.Contains(status, "200")
}

// statusNotFound reports a 404 status line, which sync-collection uses to
// signal deletions.
func statusNotFound(status string) bool {
	return strings.Contains(status, "404")
}

// firstProp returns the 200-status prop of a response.
func (r *davResponse) firstProp() *davProp {
	for i := range r.Propstats {
		if statusOK(r.Propstats[i].Status) {
			return &r.Propstats[i].Prop
		}
	}
	if len(r.Propstats) > 0 {
		return &r.Propstats[0].Prop
	}
	return nil
}
