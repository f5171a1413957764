package database

import (
	"time"
)

// Owner is an enrolled person that descriptors and attendance refer to
type Owner struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Department    string    `json:"department"`
	EmailCI       string    `json:"-"` // folded email, unique per store
	DepartmentKey string    `json:"-"` // folded department, used for filtering
	CreatedAt     time.Time `json:"created_at"`
}

// OwnerFilter narrows owner listings. Zero value lists everyone.
type OwnerFilter struct {
	DepartmentKey string
}

// Department is a distinct department name referenced by owners
type Department struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceRecord is one attendance mark, unique per (owner, date, period)
type AttendanceRecord struct {
	ID        string    `json:"attendance_id"`
	OwnerID   string    `json:"owner_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Period    int       `json:"period"`
	Subject   string    `json:"subject"`
	Time      string    `json:"time"` // HH:MM:SS of the latest recognition
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttendanceView is an attendance record joined with its owner
type AttendanceView struct {
	AttendanceRecord
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// ReportRow is one owner's line in a monthly attendance report
type ReportRow struct {
	OwnerID              string  `json:"owner_id"`
	Name                 string  `json:"name"`
	Department           string  `json:"department"`
	TotalClasses         int     `json:"total_classes"`
	ClassesAttended      int     `json:"classes_attended"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}
