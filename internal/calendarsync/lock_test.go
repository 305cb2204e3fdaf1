package calendarsync

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontour-app/backend/pkg/keyderiv"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestRedisLockerExclusive(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:calendar-sync:user-1"))

	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "user-2")
	require.NoError(t, err)
	other()

	release()
	assert.False(t, mr.Exists("lock:calendar-sync:user-1"))

	release, err = l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	release()
}

func TestRedisLockerExpires(t *testing.T) {
	l, mr := newRedisLocker(t, 30*time.Second)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("lock:calendar-sync:user-1"))

	mr.FastForward(31 * time.Second)
	release, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	release()
}

func TestRedisLockerReleaseLeavesNewHolder(t *testing.T) {
	l, mr := newRedisLocker(t, 30*time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	mr.FastForward(31 * time.Second)

	_, err = l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	// The expired holder must not drop the new lease.
	stale()
	assert.True(t, mr.Exists("lock:calendar-sync:user-1"))
	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestRedisLockerRenewsWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t, 30*time.Second)
	l.renewEvery = 5 * time.Millisecond
	ctx := context.Background()
	const key = "lock:calendar-sync:user-1"

	release, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	// A sync running past the original ttl keeps its lease.
	for i := 0; i < 3; i++ {
		mr.FastForward(20 * time.Second)
		require.Eventually(t, func() bool { return mr.TTL(key) == 30*time.Second }, time.Second, time.Millisecond)
	}
	assert.True(t, mr.Exists(key))
	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrLocked)

	release()
	assert.False(t, mr.Exists(key))
	release()

	// Renewal stops with the release.
	next, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	next()
}

func TestRedisLockerStopsRenewingLostLease(t *testing.T) {
	l, mr := newRedisLocker(t, 30*time.Second)
	l.renewEvery = 5 * time.Millisecond
	ctx := context.Background()
	const key = "lock:calendar-sync:user-1"

	stale, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, mr.Set(key, "someone-else"))
	mr.SetTTL(key, 10*time.Second)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 10*time.Second, mr.TTL(key), "another holder's lease is not extended")
	stale()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrLocked)

	release()
	release()
	again, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	again()
}

func TestCipherRoundTrip(t *testing.T) {
	c := cipherForTest(t)

	sealed, err := c.Seal("app-specific-password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
	assert.Len(t, strings.Split(sealed, ":"), 3)

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "app-specific-password", plain)

	again, err := c.Seal("app-specific-password")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "each seal uses a fresh IV")
}

func TestCipherOpenLegacyAndCorrupt(t *testing.T) {
	c := cipherForTest(t)

	plain, err := c.Open(base64.StdEncoding.EncodeToString([]byte("legacy-pass")))
	require.NoError(t, err)
	assert.Equal(t, "legacy-pass", plain)

	_, err = c.Open("not base64 at all!")
	assert.Error(t, err)

	_, err = c.Open("v1:missing-separator")
	assert.Error(t, err)

	other, err := NewCipher("another-server-secret", "0123456789abcdef")
	require.NoError(t, err)
	sealed, err := other.Seal("pw")
	require.NoError(t, err)
	_, err = c.Open(sealed)
	assert.Error(t, err)
}

func TestSessionCipherRederivesKey(t *testing.T) {
	keys := keyderiv.NewSessionKeyManager()
	c, err := NewSessionCipher(keys, "test-credentials-secret", "0123456789abcdef", time.Hour)
	require.NoError(t, err)
	assert.True(t, keys.IsValid())
	assert.WithinDuration(t, time.Now().Add(time.Hour), keys.ExpiresAt(), time.Minute)

	sealed, err := c.Seal("caldav-app-password")
	require.NoError(t, err)

	// A wiped session is derived again on the next use.
	keys.Clear()
	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "caldav-app-password", plain)
	assert.True(t, keys.IsValid())

	// So is a session someone else re-keyed with another salt.
	require.NoError(t, keys.InitializeKey("another-server-secret", "fedcba9876543210", time.Hour))
	plain, err = c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "caldav-app-password", plain)
	assert.Equal(t, "0123456789abcdef", keys.Salt())

	// Ciphers over separate sessions read each other's values.
	private := cipherForTest(t)
	plain, err = private.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "caldav-app-password", plain)

	_, err = NewSessionCipher(keyderiv.NewSessionKeyManager(), "short", "0123456789abcdef", 0)
	assert.ErrorIs(t, err, keyderiv.ErrWeakPassword)
}

func TestCipherKeyID(t *testing.T) {
	a, err := cipherForTest(t).KeyID()
	require.NoError(t, err)
	assert.Len(t, a, 8)

	same, err := NewCipher("test-credentials-secret", "0123456789abcdef")
	require.NoError(t, err)
	b, err := same.KeyID()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := NewCipher("another-server-secret", "0123456789abcdef")
	require.NoError(t, err)
	c, err := other.KeyID()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
