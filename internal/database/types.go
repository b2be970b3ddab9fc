package database

import (
	"errors"
	"fmt"
	"time"
)

// Identity represents an enrolled person with their reference LBPH template
type Identity struct {
	ID          int64
	DisplayName string
	Designation string    // Role or job title, informational only
	ImagePath   string    // Source image used at enrollment (optional)
	Template    []float32 // LBPH histogram, see constants.TemplateDim
	CreatedAt   time.Time
}

// AttendanceStatus is the kind of an attendance event
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "Present"
	StatusExit    AttendanceStatus = "Exit"
	StatusAbsent  AttendanceStatus = "Absent"
)

// Valid reports whether s is one of the known statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusExit, StatusAbsent:
		return true
	}
	return false
}

// AttendanceEvent is an immutable row of the attendance ledger
type AttendanceEvent struct {
	ID         int64
	IdentityID int64
	Timestamp  time.Time
	Status     AttendanceStatus
}

// AttendanceFilter narrows ledger listings. Zero values mean "no constraint".
type AttendanceFilter struct {
	IdentityID int64
	Since      time.Time
	Until      time.Time
	Limit      int
}

// AttendanceRecord is an attendance event joined with the identity name for listings
type AttendanceRecord struct {
	AttendanceEvent
	DisplayName string
}

// ErrNotFound is returned by administrative operations on rows that do not exist.
var ErrNotFound = errors.New("not found")

// StorageError wraps a failure of the gallery or ledger backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage turns a backend error into a *StorageError, passing nil and
// already wrapped errors through unchanged.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
