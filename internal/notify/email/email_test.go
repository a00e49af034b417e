package email

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to, subject, body string
}

func newTestService(enabled bool) (*NotificationService, *[]sent) {
	var out []sent
	n := New(&config.EmailConfig{Enabled: enabled, SMTPHost: "localhost", FromEmail: "noreply@x.com"}, "https://s.example.com")
	n.send = func(to, subject, body string) error {
		out = append(out, sent{to, subject, body})
		return nil
	}
	return n, &out
}

func TestNotifyWelcome(t *testing.T) {
	n, out := newTestService(true)
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := n.NotifyWelcome(context.Background(), &database.User{Email: "a@x.com", VerificationExpires: &expires})
	require.NoError(t, err)
	require.Len(t, *out, 1)

	msg := (*out)[0]
	assert.Equal(t, "a@x.com", msg.to)
	assert.Contains(t, msg.subject, "account is ready")
	assert.Contains(t, msg.body, "a@x.com")
	assert.Contains(t, msg.body, "https://s.example.com")
	assert.Contains(t, msg.body, expires.Format(time.RFC1123))
}

func TestNotifyBanned(t *testing.T) {
	n, out := newTestService(true)

	require.NoError(t, n.NotifyBanned(context.Background(), &database.User{Email: "b@x.com"}))
	require.Len(t, *out, 1)
	assert.Contains(t, (*out)[0].subject, "suspended")
	assert.Contains(t, (*out)[0].body, "b@x.com")
}

func TestNotify_Skipped(t *testing.T) {
	n, out := newTestService(false)
	require.NoError(t, n.NotifyBanned(context.Background(), &database.User{Email: "b@x.com"}))
	assert.Empty(t, *out)

	n, out = newTestService(true)
	require.NoError(t, n.NotifyWelcome(context.Background(), &database.User{}))
	assert.Empty(t, *out)

	n = New(nil, "")
	assert.NoError(t, n.NotifyWelcome(context.Background(), &database.User{Email: "a@x.com"}))
}
