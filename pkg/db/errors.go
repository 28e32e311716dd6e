package db

import "errors"

// ErrShiftWindowTaken is returned by InsertShift when the storage layer's
// no-overlap guarantee rejects the insert. Two racing creations for
// intersecting windows at one location both pass the read-side conflict
// check; the constraint makes sure only one commits.
var ErrShiftWindowTaken = errors.New("shift window already taken at location")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")
