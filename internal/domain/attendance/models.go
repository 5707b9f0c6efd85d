package attendance

import (
	"time"
)

// DateLayout is the wire and storage format of attendance dates.
const DateLayout = "2006-01-02"

type Record struct {
	ID             string    `json:"id"`
	EmployeeID     string    `json:"employeeId"`
	EmployeeName   string    `json:"employeeName,omitempty"`
	AttendanceDate string    `json:"attendanceDate"`
	CheckInTime    Clock     `json:"checkInTime"`
	CheckOutTime   *Clock    `json:"checkOutTime"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Status flags are derived from the schedule when a record is written.
type Status struct {
	Present         bool `json:"present"`
	LateIn          bool `json:"lateIn"`
	OnTimeIn        bool `json:"onTimeIn"`
	EarlyOut        bool `json:"earlyOut"`
	OnTimeOut       bool `json:"onTimeOut"`
	MissingCheckout bool `json:"missingCheckout"`
}

type CheckInInput struct {
	EmployeeID  string `json:"employeeId"`
	CheckInTime string `json:"checkInTime"`
}

type CheckOutInput struct {
	EmployeeID     string `json:"employeeId"`
	AttendanceDate string `json:"attendanceDate"`
	CheckOutTime   string `json:"checkOutTime"`
}

type Filter struct {
	EmployeeID string
	Date       string
}

// Employee is the subset of an employee row attendance needs.
type Employee struct {
	ID        string
	Name      string
	IsDeleted bool
}
