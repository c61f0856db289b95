package model

import "time"

// Roles recognized by the scope resolver. Anything else has no access.
const (
	RoleAdmin = "admin"
	RoleTutor = "tutor"
)

type School struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Comuna    string    `json:"comuna"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Team struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	SchoolID    *int64    `json:"school_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TeamWithSchool carries the joined school name for listings and exports.
type TeamWithSchool struct {
	Team
	SchoolName *string `json:"school_name,omitempty"`
}

type Student struct {
	ID                 int64     `json:"id"`
	NationalID         string    `json:"national_id"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	Course             string    `json:"course"`
	TeamID             int64     `json:"team_id"`
	GuardianName       *string   `json:"guardian_name,omitempty"`
	GuardianContact    *string   `json:"guardian_contact,omitempty"`
	Notes              *string   `json:"notes,omitempty"`
	Active             bool      `json:"active"`
	DeactivationReason *string   `json:"deactivation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Tutor struct {
	ID                 int64     `json:"id"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	Email              string    `json:"email"`
	TeamID             int64     `json:"team_id"`
	Active             bool      `json:"active"`
	DeactivationReason *string   `json:"deactivation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type User struct {
	ID                     int64     `json:"id"`
	Email                  string    `json:"email"`
	PasswordHash           string    `json:"-"`
	FullName               string    `json:"full_name"`
	Role                   string    `json:"role"`
	TeamID                 *int64    `json:"team_id,omitempty"`
	Active                 bool      `json:"active"`
	PasswordChangeRequired bool      `json:"password_change_required"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// EntityKind selects which roster the attendance tracker operates on.
type EntityKind string

const (
	EntityStudents EntityKind = "students"
	EntityTutors   EntityKind = "tutors"
)

func ParseEntityKind(value string) (EntityKind, bool) {
	switch EntityKind(value) {
	case EntityStudents, EntityTutors:
		return EntityKind(value), true
	default:
		return "", false
	}
}

// AttendanceStatus is the shared weekly status type for both tracked entity
// kinds (students and tutors).
type AttendanceStatus string

const (
	StatusAttended    AttendanceStatus = "attended"
	StatusNotAttended AttendanceStatus = "not_attended"
	StatusSuspended   AttendanceStatus = "suspended"
	StatusHoliday     AttendanceStatus = "holiday"
)

func ParseAttendanceStatus(value string) (AttendanceStatus, bool) {
	switch AttendanceStatus(value) {
	case StatusAttended, StatusNotAttended, StatusSuspended, StatusHoliday:
		return AttendanceStatus(value), true
	default:
		return "", false
	}
}

// AttendanceRecord is one weekly slot for a student or a tutor. EntityID is
// the owning student or tutor id depending on which table the record came
// from. MonthLabel and DateRange are denormalized from the week calendar at
// write time.
type AttendanceRecord struct {
	ID         int64            `json:"id"`
	EntityID   int64            `json:"entity_id"`
	WeekKey    string           `json:"week_key"`
	Status     AttendanceStatus `json:"status"`
	MonthLabel string           `json:"month"`
	DateRange  string           `json:"date_range"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// AssessmentKind selects one of the two independent assessment trackers.
type AssessmentKind string

const (
	KindDiagnostic AssessmentKind = "diagnostic"
	KindTicket     AssessmentKind = "ticket"
)

// ResultEmpty is the default-fill bucket shared by both assessment kinds.
const ResultEmpty = "empty"

var diagnosticResults = map[string]bool{
	"0%": true, "20%": true, "40%": true, "60%": true, "80%": true, "100%": true, ResultEmpty: true,
}

var ticketResults = map[string]bool{
	ResultEmpty: true, "80%": true, "100%": true,
}

// ValidResult reports whether value is a legal achievement bucket for the
// given assessment kind.
func ValidResult(kind AssessmentKind, value string) bool {
	switch kind {
	case KindDiagnostic:
		return diagnosticResults[value]
	case KindTicket:
		return ticketResults[value]
	default:
		return false
	}
}

type AssessmentRecord struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	UnitKey   string    `json:"unit_key"`
	ModuleKey string    `json:"module_key"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WeekInfo is one calendar slot of an academic year.
type WeekInfo struct {
	Number     int    `json:"week_number"`
	Key        string `json:"week_key"`
	Month      string `json:"month"`
	DayRange   string `json:"day_range"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	MonthIndex int    `json:"month_number"`
}
