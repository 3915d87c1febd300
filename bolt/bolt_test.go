package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantonganh/mailbus"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db := NewDB(filepath.Join(t.TempDir(), "mailbus.bolt"))
	require.NoError(t, db.Open())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestSubscriptionService(t *testing.T) {
	ctx := context.Background()
	ss := NewSubscriptionService(openTestDB(t))

	now := time.Now().UTC()
	for _, s := range []*mailbus.Subscription{
		{ID: "1", Email: "late@example.com", Token: "t1", Status: mailbus.StatusConfirmed, SubscribedAt: now.Add(time.Hour)},
		{ID: "2", Email: "pending@example.com", Token: "t2", Status: mailbus.StatusPending, SubscribedAt: now},
		{ID: "3", Email: "early@example.com", Token: "t3", Status: mailbus.StatusConfirmed, SubscribedAt: now.Add(-time.Hour)},
	} {
		require.NoError(t, ss.Insert(ctx, s))
	}

	err := ss.Insert(ctx, &mailbus.Subscription{ID: "4", Email: "early@example.com", Token: "t4", Status: mailbus.StatusPending})
	assert.Equal(t, mailbus.ErrConflict, mailbus.ErrorCode(err))

	emails, err := ss.FindConfirmedEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"early@example.com", "late@example.com"}, emails)

	require.NoError(t, ss.Confirm(ctx, "t2"))
	s, err := ss.FindByEmail(ctx, "pending@example.com")
	require.NoError(t, err)
	assert.Equal(t, mailbus.StatusConfirmed, s.Status)

	require.NoError(t, ss.Unsubscribe(ctx, "late@example.com"))
	require.NoError(t, ss.Update(ctx, "late@example.com", "t5"))
	s, err = ss.FindByToken(ctx, "t5")
	require.NoError(t, err)
	assert.Equal(t, mailbus.StatusPending, s.Status)

	_, err = ss.FindByToken(ctx, "unknown")
	assert.Equal(t, mailbus.ErrNotFound, mailbus.ErrorCode(err))
	assert.Equal(t, mailbus.ErrNotFound, mailbus.ErrorCode(ss.Confirm(ctx, "unknown")))
}

func TestSubscriptionService_NoConfirmed(t *testing.T) {
	emails, err := NewSubscriptionService(openTestDB(t)).FindConfirmedEmails(context.Background())
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	us := NewUserService(openTestDB(t))

	require.NoError(t, us.Insert(ctx, &mailbus.User{ID: "1", Username: "publisher", PasswordHash: "hash"}))
	err := us.Insert(ctx, &mailbus.User{ID: "2", Username: "publisher", PasswordHash: "other"})
	assert.Equal(t, mailbus.ErrConflict, mailbus.ErrorCode(err))

	u, err := us.FindByUsername(ctx, "publisher")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)

	_, err = us.FindByUsername(ctx, "nobody")
	assert.Equal(t, mailbus.ErrNotFound, mailbus.ErrorCode(err))
}
