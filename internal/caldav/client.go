// Package caldav talks to remote CalDAV servers (iCloud, Google, Outlook, generic).
package caldav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/ics"
)

var (
	// ErrConnect wraps any failure to reach or authenticate against the server.
	ErrConnect = errors.New("caldav: connection failed")
	// ErrMissingUID is returned when updating or deleting an event without a UID.
	ErrMissingUID = errors.New("caldav: event uid is required")
)

const defaultTimeout = 30 * time.Second

// Well-known providers.
const (
	ProviderICloud  = "icloud"
	ProviderGoogle  = "google"
	ProviderOutlook = "outlook"
)

var providerURLs = map[string]string{
	ProviderICloud:  "https://caldav.icloud.com",
	ProviderGoogle:  "https://apidata.googleusercontent.com/caldav/v2",
	ProviderOutlook: "https://outlook.office365.com",
}

// ProviderServerURL returns the CalDAV endpoint of a known provider.
func ProviderServerURL(provider string) (string, bool) {
	u, ok := providerURLs[strings.ToLower(strings.TrimSpace(provider))]
	return u, ok
}

// Credentials identify a CalDAV account.
type Credentials struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// Validate checks that every field is present and the server URL is absolute http(s).
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" || strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return errors.New("server url, username and password are required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("invalid server url %q", c.ServerURL)
	}
	return nil
}

// Calendar is a remote calendar collection.
type Calendar struct {
	URL         string `json:"url"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

// Object is a remote calendar object as raw ICS text.
type Object struct {
	Path    string
	ETag    string
	ModTime time.Time
	Data    string
}

// Client is a connected CalDAV session.
type Client struct {
	dav     *caldav.Client
	now     func() time.Time
	logger  *zap.Logger
	homeSet string
}

// Option configures Connect.
type Option func(*options)

type options struct {
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// WithTimeout bounds every HTTP request to the server.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Connect authenticates against the server and discovers the calendar home set.
func Connect(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	o := options{timeout: defaultTimeout}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.timeout}
	}

	dav, err := caldav.NewClient(webdav.HTTPClientWithBasicAuth(hc, creds.Username, creds.Password), creds.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	principal, err := dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: find principal: %v", ErrConnect, err)
	}
	homeSet, err := dav.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("%w: find calendar home: %v", ErrConnect, err)
	}

	o.logger.Debug("caldav connected",
		zap.String("server", creds.ServerURL),
		zap.String("principal", principal),
		zap.String("home_set", homeSet),
	)
	return &Client{dav: dav, now: time.Now, logger: o.logger, homeSet: homeSet}, nil
}

// ListCalendars returns the calendars in the account's home set.
func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	cals, err := c.dav.FindCalendars(ctx, c.homeSet)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	out := make([]Calendar, 0, len(cals))
	for _, cal := range cals {
		name := cal.Name
		if name == "" {
			name = path.Base(strings.TrimSuffix(cal.Path, "/"))
		}
		out = append(out, Calendar{URL: cal.Path, DisplayName: name, Description: cal.Description})
	}
	return out, nil
}

// GetObjects fetches every VEVENT-bearing object in a calendar as raw ICS text.
func (c *Client) GetObjects(ctx context.Context, calendarURL string) ([]Object, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  "VCALENDAR",
			Comps: []caldav.CompFilter{{Name: "VEVENT"}},
		},
	}
	objs, err := c.dav.QueryCalendar(ctx, CollectionPath(calendarURL), query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}
	out := make([]Object, 0, len(objs))
	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		var buf bytes.Buffer
		if err := goical.NewEncoder(&buf).Encode(obj.Data); err != nil {
			c.logger.Warn("caldav: skip unencodable object", zap.String("path", obj.Path), zap.Error(err))
			continue
		}
		out = append(out, Object{Path: obj.Path, ETag: obj.ETag, ModTime: obj.ModTime, Data: buf.String()})
	}
	return out, nil
}

// CreateEvent stores a new event and returns its UID, generating one when empty,
// and the href the server stored it under.
func (c *Client) CreateEvent(ctx context.Context, calendarURL string, ev ics.Event) (string, string, error) {
	if ev.UID == "" {
		ev.UID = ics.NewUID()
	}
	href, err := c.put(ctx, ObjectPath(calendarURL, ev.UID), ev)
	if err != nil {
		return "", "", err
	}
	return ev.UID, href, nil
}

// UpdateEvent overwrites the remote copy of ev at href, or at the UID-derived
// path when href is unknown.
func (c *Client) UpdateEvent(ctx context.Context, calendarURL, href string, ev ics.Event) error {
	if ev.UID == "" {
		return ErrMissingUID
	}
	_, err := c.put(ctx, TargetPath(calendarURL, href, ev.UID), ev)
	return err
}

// DeleteEvent removes the object at href, or the one derived from uid.
func (c *Client) DeleteEvent(ctx context.Context, calendarURL, href, uid string) error {
	if uid == "" && href == "" {
		return ErrMissingUID
	}
	if err := c.dav.RemoveAll(ctx, TargetPath(calendarURL, href, uid)); err != nil {
		return fmt.Errorf("delete %s: %w", uid, err)
	}
	return nil
}

func (c *Client) put(ctx context.Context, objectPath string, ev ics.Event) (string, error) {
	text, err := ics.Format(ev, c.now())
	if err != nil {
		return "", err
	}
	cal, err := goical.NewDecoder(strings.NewReader(text)).Decode()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", ev.UID, err)
	}
	obj, err := c.dav.PutCalendarObject(ctx, objectPath, cal)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", ev.UID, err)
	}
	if obj != nil && obj.Path != "" {
		return obj.Path, nil
	}
	return objectPath, nil
}

// CollectionPath reduces an absolute calendar URL to its path with a trailing slash.
func CollectionPath(calendarURL string) string {
	p := calendarURL
	if u, err := url.Parse(calendarURL); err == nil && u.Host != "" {
		p = u.Path
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// ObjectPath is where an event with uid lives inside a calendar.
func ObjectPath(calendarURL, uid string) string {
	return CollectionPath(calendarURL) + url.PathEscape(uid) + ".ics"
}

// TargetPath is the object to write for an event: the href the server reported
// when known, otherwise the path derived from uid. Servers such as iCloud and
// Google name objects independently of the UID.
func TargetPath(calendarURL, href, uid string) string {
	if href == "" {
		return ObjectPath(calendarURL, uid)
	}
	if u, err := url.Parse(href); err == nil && u.Host != "" {
		return u.Path
	}
	return href
}
