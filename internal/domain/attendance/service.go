package attendance

import (
	"context"
	"strings"
	"time"
)

type Options struct {
	Schedule Schedule
	// Now defaults to time.Now. Check-in dates and default times use its location.
	Now func() time.Time
}

type Service struct {
	store    StoreAPI
	schedule Schedule
	now      func() time.Time
}

func NewService(store StoreAPI, opts Options) *Service {
	svc := &Service{store: store, schedule: opts.Schedule, now: opts.Now}
	if svc.schedule == (Schedule{}) {
		svc.schedule = DefaultSchedule
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

func (s *Service) Schedule() Schedule {
	return s.schedule
}

// CheckIn opens today's record for an employee. A missing check-in time
// means now. Each employee gets at most one record per day.
func (s *Service) CheckIn(ctx context.Context, input CheckInInput) (Record, error) {
	employeeID := strings.TrimSpace(input.EmployeeID)
	if employeeID == "" {
		return Record{}, &FieldError{Field: "employeeId", Reason: "is required"}
	}
	now := s.now()
	at := ClockOf(now)
	if strings.TrimSpace(input.CheckInTime) != "" {
		parsed, err := ParseClock(input.CheckInTime)
		if err != nil {
			return Record{}, &FieldError{Field: "checkInTime", Reason: "must be a time in HH:MM or HH:MM:SS format"}
		}
		at = parsed
	}

	emp, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return Record{}, err
	}
	if emp.IsDeleted {
		return Record{}, ErrEmployeeNotFound
	}

	date := now.Format(DateLayout)
	exists, err := s.store.Exists(ctx, emp.ID, date)
	if err != nil {
		return Record{}, err
	}
	if exists {
		return Record{}, ErrAlreadyCheckedIn
	}
	return s.store.Create(ctx, Record{
		EmployeeID:     emp.ID,
		EmployeeName:   emp.Name,
		AttendanceDate: date,
		CheckInTime:    at,
		Status:         s.schedule.CheckInStatus(at),
	})
}

// CheckOut closes an open record. When employeeId or attendanceDate are
// given they must match the record.
func (s *Service) CheckOut(ctx context.Context, attendanceID string, input CheckOutInput) (Record, error) {
	at := ClockOf(s.now())
	if strings.TrimSpace(input.CheckOutTime) != "" {
		parsed, err := ParseClock(input.CheckOutTime)
		if err != nil {
			return Record{}, &FieldError{Field: "checkOutTime", Reason: "must be a time in HH:MM or HH:MM:SS format"}
		}
		at = parsed
	}
	date := strings.TrimSpace(input.AttendanceDate)
	if date != "" {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return Record{}, &FieldError{Field: "attendanceDate", Reason: "must be a valid date in YYYY-MM-DD format"}
		}
	}

	rec, err := s.store.Get(ctx, attendanceID)
	if err != nil {
		return Record{}, err
	}
	if id := strings.TrimSpace(input.EmployeeID); id != "" && id != rec.EmployeeID {
		return Record{}, ErrAttendanceNotFound
	}
	if date != "" && date != rec.AttendanceDate {
		return Record{}, ErrAttendanceNotFound
	}
	if rec.CheckOutTime != nil {
		return Record{}, ErrAlreadyCheckedOut
	}
	if at <= rec.CheckInTime {
		return Record{}, &FieldError{Field: "checkOutTime", Reason: "must be after check-in time " + rec.CheckInTime.String()}
	}

	rec.CheckOutTime = &at
	rec.Status = s.schedule.CheckOutStatus(rec.Status, at)
	return s.store.UpdateCheckOut(ctx, rec)
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Record, int, error) {
	filter.EmployeeID = strings.TrimSpace(filter.EmployeeID)
	filter.Date = strings.TrimSpace(filter.Date)
	if filter.Date != "" {
		if _, err := time.Parse(DateLayout, filter.Date); err != nil {
			return nil, 0, &FieldError{Field: "date", Reason: "must be a valid date in YYYY-MM-DD format"}
		}
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	records, err := s.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *Service) Get(ctx context.Context, attendanceID string) (Record, error) {
	return s.store.Get(ctx, attendanceID)
}

func (s *Service) Delete(ctx context.Context, attendanceID string) error {
	return s.store.Delete(ctx, attendanceID)
}
