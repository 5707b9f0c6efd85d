package attendance

import "errors"

var (
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrAlreadyCheckedIn   = errors.New("attendance for this employee and date already exists")
	ErrAlreadyCheckedOut  = errors.New("employee has already checked out")
)

// FieldError reports invalid input on a single field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}
