package mailclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/aegisops/rosterd/pkg/db"
)

// Mailer sends one email. Satisfied by *Client.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// ShiftNotifier emails shift creation notices to a fixed recipient list.
// It implements the orchestrator's Notifier interface.
type ShiftNotifier struct {
	mailer     Mailer
	recipients []string
}

// NewShiftNotifier creates a notifier. An empty recipient list makes
// every notification a no-op.
func NewShiftNotifier(mailer Mailer, recipients []string) *ShiftNotifier {
	return &ShiftNotifier{mailer: mailer, recipients: recipients}
}

// NotifyShiftCreated emails a summary of the new shift to every
// recipient. The first send failure is returned; the caller treats it as
// advisory.
func (n *ShiftNotifier) NotifyShiftCreated(ctx context.Context, shift *db.Shift) error {
	if len(n.recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("New shift at %s on %s", shift.LocationID, shift.Date.Format("2006-01-02"))
	body := formatShiftNotice(shift)

	for _, to := range n.recipients {
		if err := n.mailer.SendEmail(to, subject, body); err != nil {
			return fmt.Errorf("failed to notify %s: %w", to, err)
		}
	}
	return nil
}

func formatShiftNotice(shift *db.Shift) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new shift has been scheduled.\n\n")
	fmt.Fprintf(&b, "Location:  %s\n", shift.LocationID)
	fmt.Fprintf(&b, "Date:      %s\n", shift.Date.Format("Monday, 2 January 2006"))
	fmt.Fprintf(&b, "Time:      %s - %s\n", shift.Start.Format("15:04"), shift.End.Format("15:04"))
	fmt.Fprintf(&b, "Guards:    %d required\n", shift.RequiredGuards)
	if shift.Night {
		fmt.Fprintf(&b, "Note:      night shift\n")
	}
	if shift.Holiday {
		fmt.Fprintf(&b, "Note:      falls on a public holiday\n")
	}
	fmt.Fprintf(&b, "\nShift ID: %s\n", shift.ID)
	return b.String()
}
