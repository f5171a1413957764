// Package ledger records attendance marks and aggregates them into monthly reports.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
)

var (
	// ErrInvalidPeriod is returned for periods outside 1..PeriodsPerDay
	ErrInvalidPeriod = fmt.Errorf("period must be between 1 and %d", constants.PeriodsPerDay)
	// ErrInvalidDate is returned for dates and months that do not parse
	ErrInvalidDate = errors.New("invalid date")
	// ErrMissingSubject is returned when a mark has no subject
	ErrMissingSubject = errors.New("subject is required")
)

// Ledger writes attendance records and reads them back as reports.
type Ledger struct {
	attendance database.AttendanceStore
	owners     database.OwnerReader
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the zone attendance dates and times are recorded in.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Ledger.
func New(attendance database.AttendanceStore, owners database.OwnerReader, opts ...Option) *Ledger {
	l := &Ledger{
		attendance: attendance,
		owners:     owners,
		loc:        time.Local,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the current time in the ledger's zone.
func (l *Ledger) Now() time.Time {
	return l.now().In(l.loc)
}

// Today returns the current date as YYYY-MM-DD.
func (l *Ledger) Today() string {
	return l.Now().Format(constants.DateLayout)
}

// ValidatePeriod checks that period is a class period of the day.
func ValidatePeriod(period int) error {
	if period < 1 || period > constants.PeriodsPerDay {
		return fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}
	return nil
}

// ValidateDate checks a YYYY-MM-DD date.
func ValidateDate(date string) error {
	if _, err := time.Parse(constants.DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// MarkResult describes the record written by Mark.
type MarkResult struct {
	AttendanceID string
	Created      bool
	Date         string
	Time         string
}

// Mark records that ownerID attended period on date. The first mark of an
// (owner, date, period) creates the record; later marks keep its ID and
// overwrite time and subject. The write is one atomic upsert.
func (l *Ledger) Mark(ctx context.Context, ownerID, date string, period int, subject string) (*MarkResult, error) {
	return l.mark(ctx, ownerID, date, l.Now(), period, subject)
}

// MarkAt is Mark with date and time both taken from at, in the ledger's zone.
func (l *Ledger) MarkAt(ctx context.Context, ownerID string, at time.Time, period int, subject string) (*MarkResult, error) {
	at = at.In(l.loc)
	return l.mark(ctx, ownerID, at.Format(constants.DateLayout), at, period, subject)
}

func (l *Ledger) mark(ctx context.Context, ownerID, date string, at time.Time, period int, subject string) (*MarkResult, error) {
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrMissingSubject
	}

	rec := database.AttendanceRecord{
		OwnerID: ownerID,
		Date:    date,
		Period:  period,
		Subject: subject,
		Time:    at.Format(constants.TimeLayout),
	}

	created, err := database.WithRetryValue(ctx, func() (bool, error) {
		attempt := rec
		created, err := l.attendance.UpsertAttendance(ctx, &attempt)
		if err == nil {
			rec = attempt
		}
		return created, err
	})
	if err != nil {
		return nil, fmt.Errorf("mark attendance: %w", err)
	}

	l.logger.Debug("attendance marked",
		zap.String("owner_id", ownerID), zap.String("date", date), zap.Int("period", period),
		zap.String("attendance_id", rec.ID), zap.Bool("created", created))

	return &MarkResult{AttendanceID: rec.ID, Created: created, Date: date, Time: rec.Time}, nil
}

// ByDate returns the records of date joined with their owners. period 0
// returns all periods. Records of deleted owners keep empty owner fields.
func (l *Ledger) ByDate(ctx context.Context, date string, period int) ([]database.AttendanceView, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if period != 0 {
		if err := ValidatePeriod(period); err != nil {
			return nil, err
		}
	}

	records, err := database.WithRetryValue(ctx, func() ([]database.AttendanceRecord, error) {
		return l.attendance.ListAttendanceByDate(ctx, date, period)
	})
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	owners, err := l.ownersByID(ctx, database.OwnerFilter{})
	if err != nil {
		return nil, err
	}

	views := make([]database.AttendanceView, len(records))
	for i, rec := range records {
		views[i].AttendanceRecord = rec
		if o, ok := owners[rec.OwnerID]; ok {
			views[i].Name = o.Name
			views[i].Email = o.Email
			views[i].Department = o.Department
		}
	}
	return views, nil
}

func (l *Ledger) ownersByID(ctx context.Context, filter database.OwnerFilter) (map[string]database.Owner, error) {
	owners, err := database.WithRetryValue(ctx, func() ([]database.Owner, error) {
		return l.owners.ListOwners(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	byID := make(map[string]database.Owner, len(owners))
	for _, o := range owners {
		byID[o.ID] = o
	}
	return byID, nil
}

// Report is a monthly attendance report.
type Report struct {
	Month        string               `json:"month"`
	Department   string               `json:"department"`
	SchoolDays   int                  `json:"school_days"`
	TotalClasses int                  `json:"total_classes"`
	Rows         []database.ReportRow `json:"rows"`
}

// ParseMonth parses a YYYY-MM month selector.
func ParseMonth(month string) (int, time.Month, error) {
	t, err := time.Parse(constants.MonthLayout, month)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month %q, expected YYYY-MM", ErrInvalidDate, month)
	}
	return t.Year(), t.Month(), nil
}

// MonthlyReport computes each owner's attendance percentage for month
// (YYYY-MM). department "" or "all" includes everyone. Every owner in scope
// gets a row, including owners with no attendance.
func (l *Ledger) MonthlyReport(ctx context.Context, month, department string) (*Report, error) {
	year, mon, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}

	schoolDays := SchoolDays(year, mon)
	total := schoolDays * constants.PeriodsPerDay
	from, to := monthRange(year, mon)

	filter := database.OwnerFilter{DepartmentKey: database.DepartmentFilterKey(department)}
	owners, err := database.WithRetryValue(ctx, func() ([]database.Owner, error) {
		return l.owners.ListOwners(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}

	counts, err := database.WithRetryValue(ctx, func() (map[string]int, error) {
		return l.attendance.CountAttendanceByOwner(ctx, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}

	rows := make([]database.ReportRow, 0, len(owners))
	for _, o := range owners {
		attended := counts[o.ID]
		rows = append(rows, database.ReportRow{
			OwnerID:              o.ID,
			Name:                 o.Name,
			Department:           o.Department,
			TotalClasses:         total,
			ClassesAttended:      attended,
			AttendancePercentage: Percentage(attended, total),
		})
	}
	slices.SortStableFunc(rows, func(a, b database.ReportRow) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.OwnerID, b.OwnerID))
	})

	dept := strings.TrimSpace(department)
	if filter.DepartmentKey == "" {
		dept = constants.AllDepartments
	}

	return &Report{
		Month:        fmt.Sprintf("%04d-%02d", year, int(mon)),
		Department:   dept,
		SchoolDays:   schoolDays,
		TotalClasses: total,
		Rows:         rows,
	}, nil
}

// Percentage returns attended/total as a percentage rounded to two decimals,
// 0 when total is 0.
func Percentage(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(total)*100*100) / 100
}
