package schedule

import (
	"time"

	"github.com/aegisops/rosterd/pkg/db"
)

// Window is a half-open [Start, End) time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect.
// Touching endpoints (w.End == o.Start) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// ShiftWindow returns the half-open window occupied by a shift.
func ShiftWindow(s *db.Shift) Window {
	return Window{Start: s.Start, End: s.End}
}

// FindOverlaps returns every shift among the candidates whose window
// intersects the given window. Terminal shifts (cancelled/completed) and
// the shift identified by excludeID are never reported; excludeID is used
// when revalidating an existing shift in place. The full conflict list is
// returned so callers can report counts and details, not just a boolean.
func FindOverlaps(candidates []db.Shift, window Window, excludeID string) []db.Shift {
	var conflicts []db.Shift
	for i := range candidates {
		c := &candidates[i]
		if c.Status.Terminal() {
			continue
		}
		if excludeID != "" && c.ID == excludeID {
			continue
		}
		if window.Overlaps(ShiftWindow(c)) {
			conflicts = append(conflicts, *c)
		}
	}
	return conflicts
}
