package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncDirection controls which way a calendar sync moves events.
type SyncDirection string

const (
	SyncImport        SyncDirection = "import"
	SyncExport        SyncDirection = "export"
	SyncBidirectional SyncDirection = "bidirectional"
)

// Valid reports whether d is a known direction.
func (d SyncDirection) Valid() bool {
	switch d {
	case SyncImport, SyncExport, SyncBidirectional:
		return true
	}
	return false
}

// Imports reports whether the direction pulls remote events.
func (d SyncDirection) Imports() bool { return d == SyncImport || d == SyncBidirectional }

// Exports reports whether the direction pushes local events.
func (d SyncDirection) Exports() bool { return d == SyncExport || d == SyncBidirectional }

// SyncConfig is a user's CalDAV connection. One per user.
type SyncConfig struct {
	UserID            uuid.UUID     `json:"user_id"`
	OrganizationID    uuid.UUID     `json:"organization_id"`
	ServerURL         string        `json:"server_url"`
	Username          string        `json:"username"`
	EncryptedPassword string        `json:"-"`
	CalendarURL       string        `json:"calendar_url"`
	Direction         SyncDirection `json:"direction"`
	Enabled           bool          `json:"enabled"`
	LastSync          *time.Time    `json:"last_sync,omitempty"`
	LastError         string        `json:"last_error,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
