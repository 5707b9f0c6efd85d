package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hrpayroll/internal/platform/querier"
)

type Store struct {
	DB querier.Pool
}

func NewStore(db querier.Pool) *Store {
	return &Store{DB: db}
}

const recordColumns = `
    a.id,
    a.employee_id::text,
    COALESCE(e.first_name || ' ' || e.last_name, ''),
    a.attendance_date::text,
    a.check_in_time::text,
    a.check_out_time::text,
    a.status,
    a.created_at,
    a.updated_at
  FROM attendances a
  LEFT JOIN employees e ON a.employee_id = e.id`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec      Record
		checkIn  string
		checkOut *string
		status   []byte
	)
	if err := row.Scan(&rec.ID, &rec.EmployeeID, &rec.EmployeeName, &rec.AttendanceDate,
		&checkIn, &checkOut, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	in, err := ParseClock(checkIn)
	if err != nil {
		return Record{}, fmt.Errorf("decode check-in time: %w", err)
	}
	rec.CheckInTime = in
	if checkOut != nil {
		out, err := ParseClock(*checkOut)
		if err != nil {
			return Record{}, fmt.Errorf("decode check-out time: %w", err)
		}
		rec.CheckOutTime = &out
	}
	if len(status) > 0 {
		if err := json.Unmarshal(status, &rec.Status); err != nil {
			return Record{}, fmt.Errorf("decode attendance status: %w", err)
		}
	}
	return rec, nil
}

func filterClause(filter Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where = append(where, "a.employee_id::text = $"+strconv.Itoa(len(args)))
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		where = append(where, "a.attendance_date = $"+strconv.Itoa(len(args))+"::date")
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	var emp Employee
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, first_name || ' ' || last_name, is_deleted
    FROM employees
    WHERE id::text = $1
  `, employeeID).Scan(&emp.ID, &emp.Name, &emp.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, err
}

func (s *Store) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filterClause(filter)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM attendances a"+where, args...).Scan(&total)
	return total, err
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Record, error) {
	where, args := filterClause(filter)
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, "SELECT"+recordColumns+where+`
    ORDER BY a.attendance_date DESC, a.check_in_time DESC
    LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, attendanceID string) (Record, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, "SELECT"+recordColumns+" WHERE a.id::text = $1", attendanceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrAttendanceNotFound
	}
	return rec, err
}

func (s *Store) Exists(ctx context.Context, employeeID, date string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM attendances
    WHERE employee_id::text = $1 AND attendance_date = $2::date
  `, employeeID, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	status, err := json.Marshal(rec.Status)
	if err != nil {
		return Record{}, err
	}
	var id string
	err = s.DB.QueryRow(ctx, `
    INSERT INTO attendances (employee_id, attendance_date, check_in_time, status)
    VALUES ($1::uuid, $2::date, $3::time, $4)
    RETURNING id
  `, rec.EmployeeID, rec.AttendanceDate, rec.CheckInTime.String(), status).Scan(&id)
	if isUniqueViolation(err) {
		return Record{}, ErrAlreadyCheckedIn
	}
	if err != nil {
		return Record{}, err
	}
	return s.Get(ctx, id)
}

// UpdateCheckOut only touches records that are still open, so two racing
// check-outs cannot both succeed.
func (s *Store) UpdateCheckOut(ctx context.Context, rec Record) (Record, error) {
	if rec.CheckOutTime == nil {
		return Record{}, fmt.Errorf("check-out time is required")
	}
	status, err := json.Marshal(rec.Status)
	if err != nil {
		return Record{}, err
	}
	cmd, err := s.DB.Exec(ctx, `
    UPDATE attendances
    SET check_out_time = $2::time, status = $3, updated_at = now()
    WHERE id::text = $1 AND check_out_time IS NULL
  `, rec.ID, rec.CheckOutTime.String(), status)
	if err != nil {
		return Record{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Record{}, ErrAlreadyCheckedOut
	}
	return s.Get(ctx, rec.ID)
}

func (s *Store) Delete(ctx context.Context, attendanceID string) error {
	cmd, err := s.DB.Exec(ctx, "DELETE FROM attendances WHERE id::text = $1", attendanceID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAttendanceNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
