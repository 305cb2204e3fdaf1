// Package calendarsync keeps a user's CalDAV calendar and the organization's
// local calendar in step, resolving conflicts by last write wins.
package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/caldav"
	"github.com/ontour-app/backend/internal/events"
	"github.com/ontour-app/backend/internal/ics"
	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
)

// CalendarClient is the remote side of a sync.
type CalendarClient interface {
	ListCalendars(ctx context.Context) ([]caldav.Calendar, error)
	GetObjects(ctx context.Context, calendarURL string) ([]caldav.Object, error)
	CreateEvent(ctx context.Context, calendarURL string, ev ics.Event) (uid, href string, err error)
	UpdateEvent(ctx context.Context, calendarURL, href string, ev ics.Event) error
	DeleteEvent(ctx context.Context, calendarURL, href, uid string) error
}

// Dialer opens a CalendarClient for a set of credentials.
type Dialer func(ctx context.Context, creds caldav.Credentials) (CalendarClient, error)

// DialCalDAV returns a Dialer backed by the caldav package.
func DialCalDAV(timeout time.Duration, logger *zap.Logger) Dialer {
	return func(ctx context.Context, creds caldav.Credentials) (CalendarClient, error) {
		return caldav.Connect(ctx, creds, caldav.WithTimeout(timeout), caldav.WithLogger(logger))
	}
}

// ConfigStore persists sync configurations.
type ConfigStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.SyncConfig, error)
	Upsert(ctx context.Context, c *models.SyncConfig) error
	SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
	RecordRun(ctx context.Context, userID uuid.UUID, lastSync *time.Time, lastError string) error
	ListEnabled(ctx context.Context) ([]uuid.UUID, error)
}

// EventStore is the local calendar as seen by a sync.
type EventStore interface {
	FindByUID(ctx context.Context, orgID uuid.UUID, uid string) (*models.CalendarEvent, error)
	ChangedSince(ctx context.Context, orgID uuid.UUID, since *time.Time) ([]models.CalendarEvent, error)
	SaveImported(ctx context.Context, e *models.CalendarEvent, at time.Time) error
	SetUID(ctx context.Context, orgID, id uuid.UUID, uid, href string) error
}

var (
	errDisabled = errors.New("calendar sync is disabled")

	// ErrNotMember stops a sync whose owner has left the organization.
	ErrNotMember = errors.New("user is no longer a member of the organization")

	// ErrInvalidConfig marks a rejected enable request.
	ErrInvalidConfig = errors.New("invalid sync configuration")
)

// SyncResult summarizes one run.
type SyncResult struct {
	Success   bool     `json:"success"`
	Imported  int      `json:"imported"`
	Exported  int      `json:"exported"`
	Conflicts int      `json:"conflicts"`
	Errors    []string `json:"errors"`

	// Err is the error that aborted the run, if any.
	Err error `json:"-"`
}

func (r *SyncResult) fail(err error) SyncResult {
	r.Success = false
	r.Err = err
	r.Errors = append(r.Errors, err.Error())
	return *r
}

// Retryable reports whether a failed run is worth retrying later.
func (r SyncResult) Retryable() bool {
	return r.Err != nil && !errors.Is(r.Err, ErrLocked) && !errors.Is(r.Err, ErrNotConfigured) && !errors.Is(r.Err, errDisabled) &&
		!errors.Is(r.Err, ErrNotMember)
}

// Service runs calendar syncs and manages sync configuration.
type Service struct {
	configs ConfigStore
	events  EventStore
	roles   middleware.OrgRoleLookup
	dial    Dialer
	cipher  *Cipher
	locker  Locker
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a sync service. roles is consulted on every run so a removed
// or demoted member stops writing into the organization. A nil locker falls back
// to an in-process one.
func NewService(configs ConfigStore, events EventStore, roles middleware.OrgRoleLookup, dial Dialer, cipher *Cipher,
	locker Locker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Service{configs: configs, events: events, roles: roles, dial: dial, cipher: cipher, locker: locker, logger: logger, now: time.Now}
}

// ShouldUpdateLocal reports whether a remote copy modified at remoteModified
// replaces the local event. Only a strictly later remote edit wins.
func ShouldUpdateLocal(local models.CalendarEvent, remoteModified time.Time) bool {
	return remoteModified.After(local.UpdatedAt)
}

// RemoteModified picks the modification time of a remote event: LAST-MODIFIED,
// then the server's object time, then DTSTART.
func RemoteModified(ev ics.Event, obj caldav.Object) time.Time {
	switch {
	case !ev.LastModified.IsZero():
		return ev.LastModified
	case !obj.ModTime.IsZero():
		return obj.ModTime
	default:
		return ev.Start
	}
}

// SyncUserCalendar runs one sync for userID in the configured direction.
func (s *Service) SyncUserCalendar(ctx context.Context, userID uuid.UUID) SyncResult {
	result := SyncResult{Errors: []string{}}
	started := s.now().UTC()
	log := s.logger.With(zap.String("user_id", userID.String()))

	cfg, err := s.configs.Get(ctx, userID)
	if err != nil {
		return result.fail(err)
	}
	if !cfg.Enabled {
		return result.fail(errDisabled)
	}

	role, err := s.roles.GetUserRole(ctx, cfg.OrganizationID, userID)
	if err != nil {
		return result.fail(fmt.Errorf("check organization role: %w", err))
	}
	if role == "" {
		log.Warn("calendar sync disabled, user left organization", zap.String("organization_id", cfg.OrganizationID.String()))
		if err := s.configs.SetEnabled(ctx, userID, false); err != nil {
			log.Error("disable orphaned sync", zap.Error(err))
		}
		if err := s.configs.RecordRun(ctx, userID, nil, ErrNotMember.Error()); err != nil {
			log.Error("record sync failure", zap.Error(err))
		}
		return result.fail(ErrNotMember)
	}

	release, err := s.locker.Acquire(ctx, userID.String())
	if err != nil {
		return result.fail(err)
	}
	defer release()

	abort := func(err error) SyncResult {
		log.Warn("calendar sync failed", zap.Error(err))
		if recErr := s.configs.RecordRun(ctx, userID, nil, err.Error()); recErr != nil {
			log.Error("record sync failure", zap.Error(recErr))
		}
		return result.fail(err)
	}

	password, err := s.cipher.Open(cfg.EncryptedPassword)
	if err != nil {
		return abort(fmt.Errorf("decrypt credentials: %w", err))
	}
	client, err := s.dial(ctx, caldav.Credentials{ServerURL: cfg.ServerURL, Username: cfg.Username, Password: password})
	if err != nil {
		return abort(err)
	}

	imported := map[string]bool{}
	if cfg.Direction.Imports() && !models.CanWrite(role) {
		log.Info("import skipped for read-only role", zap.String("role", role))
		result.Errors = append(result.Errors, fmt.Sprintf("import skipped: role %q cannot modify the organization calendar", role))
	} else if cfg.Direction.Imports() {
		if err := s.importEvents(ctx, client, cfg, started, imported, &result, log); err != nil {
			return abort(err)
		}
	}
	if cfg.Direction.Exports() {
		if err := s.exportEvents(ctx, client, cfg, imported, &result, log); err != nil {
			return abort(err)
		}
	}

	lastErr := ""
	if n := len(result.Errors); n > 0 {
		lastErr = fmt.Sprintf("%d item(s) failed: %s", n, result.Errors[0])
	}
	if err := s.configs.RecordRun(ctx, userID, &started, lastErr); err != nil {
		log.Error("record sync run", zap.Error(err))
	}
	result.Success = true
	log.Info("calendar sync finished",
		zap.Int("imported", result.Imported),
		zap.Int("exported", result.Exported),
		zap.Int("conflicts", result.Conflicts),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

func (s *Service) importEvents(ctx context.Context, client CalendarClient, cfg *models.SyncConfig, started time.Time,
	imported map[string]bool, result *SyncResult, log *zap.Logger) error {
	objs, err := client.GetObjects(ctx, cfg.CalendarURL)
	if err != nil {
		return fmt.Errorf("fetch remote events: %w", err)
	}
	seen := map[string]bool{}
	for _, obj := range objs {
		parsed, err := ics.Parse(obj.Data)
		if err != nil {
			log.Warn("skip unparseable remote object", zap.String("path", obj.Path), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("parse %s: %v", obj.Path, err))
			continue
		}
		for _, ev := range parsed {
			// Recurrence overrides share the master's UID; the master comes first.
			if seen[ev.UID] {
				continue
			}
			seen[ev.UID] = true
			saved, err := s.importOne(ctx, cfg, ev, obj.Path, RemoteModified(ev, obj), started, result)
			if err != nil {
				log.Warn("import event failed", zap.String("uid", ev.UID), zap.Error(err))
				result.Errors = append(result.Errors, fmt.Sprintf("import %s: %v", ev.UID, err))
				continue
			}
			if saved {
				imported[ev.UID] = true
			}
		}
	}
	return nil
}

// importOne reports whether the remote copy was written locally.
func (s *Service) importOne(ctx context.Context, cfg *models.SyncConfig, ev ics.Event, href string,
	remoteMod, started time.Time, result *SyncResult) (bool, error) {
	local, err := s.events.FindByUID(ctx, cfg.OrganizationID, ev.UID)
	switch {
	case errors.Is(err, events.ErrNotFound):
	case err != nil:
		return false, err
	default:
		if cfg.LastSync != nil && local.UpdatedAt.After(*cfg.LastSync) && remoteMod.After(*cfg.LastSync) {
			result.Conflicts++
		}
		if !ShouldUpdateLocal(*local, remoteMod) {
			return false, nil
		}
	}
	e := events.FromICS(cfg.OrganizationID, cfg.UserID, ev)
	e.RemoteHref = href
	if err := s.events.SaveImported(ctx, &e, started); err != nil {
		return false, err
	}
	result.Imported++
	return true, nil
}

func (s *Service) exportEvents(ctx context.Context, client CalendarClient, cfg *models.SyncConfig,
	imported map[string]bool, result *SyncResult, log *zap.Logger) error {
	changed, err := s.events.ChangedSince(ctx, cfg.OrganizationID, cfg.LastSync)
	if err != nil {
		return fmt.Errorf("load local changes: %w", err)
	}
	for _, e := range changed {
		if e.UID != "" && imported[e.UID] {
			continue
		}
		// Deletions only matter for events the remote side has seen.
		if e.DeletedAt != nil && (e.UID == "" || cfg.LastSync == nil) {
			continue
		}
		if err := s.exportOne(ctx, client, cfg, e); err != nil {
			log.Warn("export event failed", zap.String("event_id", e.ID.String()), zap.String("uid", e.UID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("export %s: %v", e.ID, err))
			continue
		}
		result.Exported++
	}
	return nil
}

func (s *Service) exportOne(ctx context.Context, client CalendarClient, cfg *models.SyncConfig, e models.CalendarEvent) error {
	switch {
	case e.DeletedAt != nil:
		return client.DeleteEvent(ctx, cfg.CalendarURL, e.RemoteHref, e.UID)
	case e.UID == "":
		uid, href, err := client.CreateEvent(ctx, cfg.CalendarURL, events.ToICS(e))
		if err != nil {
			return err
		}
		return s.events.SetUID(ctx, cfg.OrganizationID, e.ID, uid, href)
	default:
		return client.UpdateEvent(ctx, cfg.CalendarURL, e.RemoteHref, events.ToICS(e))
	}
}

// ResolveCredentials fills the server URL from a provider name when needed.
func ResolveCredentials(provider string, creds caldav.Credentials) (caldav.Credentials, error) {
	if creds.ServerURL == "" && provider != "" {
		u, ok := caldav.ProviderServerURL(provider)
		if !ok {
			return creds, fmt.Errorf("unknown provider %q", provider)
		}
		creds.ServerURL = u
	}
	creds.ServerURL = strings.TrimSpace(creds.ServerURL)
	creds.Username = strings.TrimSpace(creds.Username)
	return creds, creds.Validate()
}

// Connect verifies credentials and lists the account's calendars. Nothing is saved.
func (s *Service) Connect(ctx context.Context, creds caldav.Credentials) ([]caldav.Calendar, error) {
	client, err := s.dial(ctx, creds)
	if err != nil {
		return nil, err
	}
	return client.ListCalendars(ctx)
}

// EnableRequest carries everything needed to turn sync on.
type EnableRequest struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Credentials    caldav.Credentials
	CalendarURL    string
	Direction      models.SyncDirection
}

// Enable verifies the connection, encrypts the password and stores the config.
func (s *Service) Enable(ctx context.Context, req EnableRequest) (*models.SyncConfig, error) {
	if strings.TrimSpace(req.CalendarURL) == "" {
		return nil, fmt.Errorf("%w: calendar url is required", ErrInvalidConfig)
	}
	if req.Direction == "" {
		req.Direction = models.SyncBidirectional
	}
	if !req.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidConfig, req.Direction)
	}
	if _, err := s.dial(ctx, req.Credentials); err != nil {
		return nil, err
	}
	sealed, err := s.cipher.Seal(req.Credentials.Password)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials: %w", err)
	}
	cfg := &models.SyncConfig{
		UserID:            req.UserID,
		OrganizationID:    req.OrganizationID,
		ServerURL:         req.Credentials.ServerURL,
		Username:          req.Credentials.Username,
		EncryptedPassword: sealed,
		CalendarURL:       req.CalendarURL,
		Direction:         req.Direction,
	}
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	s.logger.Info("calendar sync enabled",
		zap.String("user_id", req.UserID.String()),
		zap.String("organization_id", req.OrganizationID.String()),
		zap.String("direction", string(req.Direction)),
	)
	return cfg, nil
}

// Disable switches sync off. The stored connection is kept.
func (s *Service) Disable(ctx context.Context, userID uuid.UUID) error {
	return s.configs.SetEnabled(ctx, userID, false)
}

// Status returns the user's config without secrets.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*models.SyncConfig, error) {
	return s.configs.Get(ctx, userID)
}

// EnabledUsers lists users due for a scheduled sync.
func (s *Service) EnabledUsers(ctx context.Context) ([]uuid.UUID, error) {
	return s.configs.ListEnabled(ctx)
}
