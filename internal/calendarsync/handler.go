package calendarsync

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/caldav"
	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
	"github.com/ontour-app/backend/pkg/queue"
	"github.com/ontour-app/backend/pkg/response"
	"github.com/ontour-app/backend/pkg/storage"
)

// BackupQueue enqueues calendar backups.
type BackupQueue interface {
	EnqueueBackup(ctx context.Context, payload queue.BackupPayload) (string, error)
}

// BackupStore lists stored backups and signs download links.
type BackupStore interface {
	ListBackups(ctx context.Context, orgID string) ([]storage.BackupObject, error)
	PresignBackupURL(ctx context.Context, key string) (string, error)
}

// Handler serves /api/calendar-sync.
type Handler struct {
	svc     *Service
	roles   middleware.OrgRoleLookup
	queue   BackupQueue
	backups BackupStore
	logger  *zap.Logger
}

// NewHandler creates a calendar sync handler. queue and backups may be nil when
// Redis or S3 are not configured; the backup routes then answer 503.
func NewHandler(svc *Service, roles middleware.OrgRoleLookup, q BackupQueue, backups BackupStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, roles: roles, queue: q, backups: backups, logger: logger}
}

// RegisterRoutes mounts the handler on an authenticated group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/connect", h.Connect)
	g.POST("/enable", h.Enable)
	g.POST("/disable", h.Disable)
	g.POST("/sync-now", h.SyncNow)
	g.GET("/status", h.Status)
	g.POST("/backup", h.Backup)
	g.GET("/backups", h.ListBackups)
}

// ConnectRequest is the body for POST /connect. Provider (icloud, google,
// outlook) may replace server_url.
type ConnectRequest struct {
	Provider  string `json:"provider"`
	ServerURL string `json:"server_url"`
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

func (r ConnectRequest) credentials() (caldav.Credentials, error) {
	return ResolveCredentials(r.Provider, caldav.Credentials{ServerURL: r.ServerURL, Username: r.Username, Password: r.Password})
}

// EnableBody is the body for POST /enable.
type EnableBody struct {
	ConnectRequest
	OrganizationID string `json:"organization_id" binding:"required"`
	CalendarURL    string `json:"calendar_url" binding:"required"`
	Direction      string `json:"direction"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Configured bool               `json:"configured"`
	Config     *models.SyncConfig `json:"config,omitempty"`
}

// Connect handles POST /connect: verifies credentials and lists calendars.
func (h *Handler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	creds, err := req.credentials()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cals, err := h.svc.Connect(c.Request.Context(), creds)
	if err != nil {
		h.connectFailed(c, err)
		return
	}
	response.OK(c, gin.H{"calendars": cals})
}

// Enable handles POST /enable.
func (h *Handler) Enable(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	var req EnableBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	if !h.canWrite(c, orgID, userID) {
		return
	}
	creds, err := req.credentials()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cfg, err := h.svc.Enable(c.Request.Context(), EnableRequest{
		UserID:         userID,
		OrganizationID: orgID,
		Credentials:    creds,
		CalendarURL:    req.CalendarURL,
		Direction:      models.SyncDirection(strings.ToLower(req.Direction)),
	})
	if err != nil {
		if errors.Is(err, caldav.ErrConnect) {
			h.connectFailed(c, err)
			return
		}
		if errors.Is(err, ErrInvalidConfig) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("enable calendar sync", zap.Error(err))
		response.Internal(c, "failed to enable calendar sync")
		return
	}
	response.OK(c, cfg)
}

// Disable handles POST /disable.
func (h *Handler) Disable(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	if err := h.svc.Disable(c.Request.Context(), userID); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			response.NotFound(c, err.Error())
			return
		}
		h.logger.Error("disable calendar sync", zap.Error(err))
		response.Internal(c, "failed to disable calendar sync")
		return
	}
	response.OK(c, gin.H{"enabled": false})
}

// SyncNow handles POST /sync-now. The run's outcome, failed or not, is the response body.
func (h *Handler) SyncNow(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	response.OK(c, h.svc.SyncUserCalendar(c.Request.Context(), userID))
}

// Status handles GET /status.
func (h *Handler) Status(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	cfg, err := h.svc.Status(c.Request.Context(), userID)
	if errors.Is(err, ErrNotConfigured) {
		response.OK(c, StatusResponse{})
		return
	}
	if err != nil {
		h.logger.Error("calendar sync status", zap.Error(err))
		response.Internal(c, "failed to load sync status")
		return
	}
	response.OK(c, StatusResponse{Configured: true, Config: cfg})
}

// Backup handles POST /backup: queues an ICS backup of an organization's calendar.
func (h *Handler) Backup(c *gin.Context) {
	if h.queue == nil {
		response.ServiceUnavailable(c, "backups are not configured")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	var req struct {
		OrganizationID string `json:"organization_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	if !h.canWrite(c, orgID, userID) {
		return
	}
	jobID, err := h.queue.EnqueueBackup(c.Request.Context(), queue.BackupPayload{OrganizationID: orgID, RequestedBy: userID})
	if err != nil {
		h.logger.Error("enqueue backup", zap.Error(err))
		response.Internal(c, "failed to queue backup")
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID})
}

// BackupLink is a stored backup with a temporary download URL.
type BackupLink struct {
	storage.BackupObject
	URL string `json:"url"`
}

// ListBackups handles GET /backups?organization_id=.
func (h *Handler) ListBackups(c *gin.Context) {
	if h.backups == nil {
		response.ServiceUnavailable(c, "backups are not configured")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}
	orgID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	role, err := h.roles.GetUserRole(c.Request.Context(), orgID, userID)
	if err != nil || role == "" {
		response.Forbidden(c, "not a member of this organization")
		return
	}
	list, err := h.backups.ListBackups(c.Request.Context(), orgID.String())
	if err != nil {
		h.logger.Error("list backups", zap.Error(err))
		response.Internal(c, "failed to list backups")
		return
	}
	out := make([]BackupLink, 0, len(list))
	for _, b := range list {
		url, err := h.backups.PresignBackupURL(c.Request.Context(), b.Key)
		if err != nil {
			h.logger.Warn("presign backup", zap.String("key", b.Key), zap.Error(err))
			continue
		}
		out = append(out, BackupLink{BackupObject: b, URL: url})
	}
	response.OK(c, out)
}

func (h *Handler) canWrite(c *gin.Context, orgID, userID uuid.UUID) bool {
	role, err := h.roles.GetUserRole(c.Request.Context(), orgID, userID)
	if err != nil || role == "" {
		response.Forbidden(c, "not a member of this organization")
		return false
	}
	if !models.CanWrite(role) {
		response.Forbidden(c, "read-only role")
		return false
	}
	return true
}

func (h *Handler) connectFailed(c *gin.Context, err error) {
	h.logger.Warn("caldav connect", zap.Error(err))
	response.BadGateway(c, err.Error())
}
