package mailclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisops/rosterd/pkg/db"
)

type mockMailer struct {
	sent    []string
	subject string
	body    string
	err     error
}

func (m *mockMailer) SendEmail(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	m.subject = subject
	m.body = body
	return nil
}

func noticeShift() *db.Shift {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	return &db.Shift{
		ID:             "SH1",
		LocationID:     "L1",
		Date:           date,
		Start:          date.Add(22 * time.Hour),
		End:            date.Add(30 * time.Hour),
		RequiredGuards: 2,
		Night:          true,
	}
}

func TestShiftNotifier_SendsToAllRecipients(t *testing.T) {
	mailer := &mockMailer{}
	notifier := NewShiftNotifier(mailer, []string{"a@example.com", "b@example.com"})

	err := notifier.NotifyShiftCreated(context.Background(), noticeShift())
	require.NoError(t, err)

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, mailer.sent)
	assert.Contains(t, mailer.subject, "L1")
	assert.Contains(t, mailer.subject, "2026-09-14")
	assert.Contains(t, mailer.body, "night shift")
	assert.Contains(t, mailer.body, "SH1")
}

func TestShiftNotifier_NoRecipientsIsNoOp(t *testing.T) {
	mailer := &mockMailer{err: errors.New("should not be called")}
	notifier := NewShiftNotifier(mailer, nil)

	err := notifier.NotifyShiftCreated(context.Background(), noticeShift())
	assert.NoError(t, err)
}

func TestShiftNotifier_SendFailureIsReturned(t *testing.T) {
	mailer := &mockMailer{err: errors.New("smtp down")}
	notifier := NewShiftNotifier(mailer, []string{"a@example.com"})

	err := notifier.NotifyShiftCreated(context.Background(), noticeShift())
	assert.Error(t, err)
}
