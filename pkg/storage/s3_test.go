package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackupKey(t *testing.T) {
	at := time.Date(2025, 3, 14, 20, 5, 9, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "calendar-backups/org-1/20250314T190509Z.ics", BackupKey("org-1", at))
}

func TestPresignExpireDefault(t *testing.T) {
	assert.Equal(t, 15*time.Minute, (&S3{}).PresignExpire())
	assert.Equal(t, 5*time.Minute, (&S3{cfg: S3Config{PresignExpireMinutes: 5}}).PresignExpire())
}
