// Package tracker implements the weekly attendance and assessment services.
// Both operate through narrow store interfaces so the aggregation logic can
// be tested against in-memory fakes.
package tracker

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/auth"
	"tutoria/server/internal/calendar"
	"tutoria/server/internal/model"
)

// AtRiskAbsences is the absence count above which an entity is flagged on
// the dashboard.
const AtRiskAbsences = 3

type AttendanceStore interface {
	UpsertAttendance(ctx context.Context, kind model.EntityKind, rec model.AttendanceRecord) (model.AttendanceRecord, error)
	DeleteAttendance(ctx context.Context, kind model.EntityKind, entityID int64, weekKey string) (bool, error)
	ListAttendance(ctx context.Context, kind model.EntityKind, entityID int64) ([]model.AttendanceRecord, error)
	ListAttendanceByEntities(ctx context.Context, kind model.EntityKind, entityIDs []int64) (map[int64][]model.AttendanceRecord, error)
	InitializeAttendance(ctx context.Context, kind model.EntityKind, records []model.AttendanceRecord) (int, error)
}

// RosterReader is the slice of the roster store the trackers need: entity
// lookup for scope checks and scoped listings for aggregate views.
type RosterReader interface {
	GetStudent(ctx context.Context, id int64) (model.Student, error)
	GetTutor(ctx context.Context, id int64) (model.Tutor, error)
	ListStudents(ctx context.Context, teamID *int64) ([]model.Student, error)
	ListTutors(ctx context.Context, teamID *int64) ([]model.Tutor, error)
}

type Attendance struct {
	store         AttendanceStore
	roster        RosterReader
	cal           *calendar.Calendar
	expectedWeeks int
	log           *zap.SugaredLogger
}

func NewAttendance(store AttendanceStore, roster RosterReader, cal *calendar.Calendar, expectedWeeks int, log *zap.SugaredLogger) *Attendance {
	return &Attendance{store: store, roster: roster, cal: cal, expectedWeeks: expectedWeeks, log: log}
}

// entityTeam resolves the team of the target entity, or ErrNotFound when the
// entity does not exist or is deactivated.
func (a *Attendance) entityTeam(ctx context.Context, kind model.EntityKind, entityID int64) (int64, error) {
	switch kind {
	case model.EntityStudents:
		st, err := a.roster.GetStudent(ctx, entityID)
		if err != nil {
			return 0, err
		}
		if !st.Active {
			return 0, apperr.ErrNotFound
		}
		return st.TeamID, nil
	case model.EntityTutors:
		t, err := a.roster.GetTutor(ctx, entityID)
		if err != nil {
			return 0, err
		}
		if !t.Active {
			return 0, apperr.ErrNotFound
		}
		return t.TeamID, nil
	default:
		return 0, fmt.Errorf("entity kind %q: %w", kind, apperr.ErrInvalidValue)
	}
}

func (a *Attendance) checkScope(ctx context.Context, scope auth.Scope, kind model.EntityKind, entityID int64) error {
	teamID, err := a.entityTeam(ctx, kind, entityID)
	if err != nil {
		return err
	}
	if !scope.Allows(teamID) {
		return apperr.ErrForbidden
	}
	return nil
}

// denormalize resolves the month label and day range for a week key. Keys
// outside the loaded calendar keep placeholder values rather than failing
// the write.
func (a *Attendance) denormalize(weekKey string) (string, string) {
	if week, ok := a.cal.ByKey(weekKey); ok {
		return week.Month, week.DayRange
	}
	return "unknown", "N/A"
}

// UpsertStatus records one weekly status, replacing any previous status for
// the same entity and week.
func (a *Attendance) UpsertStatus(ctx context.Context, scope auth.Scope, kind model.EntityKind, entityID int64, weekKey, status string) (model.AttendanceRecord, error) {
	parsed, ok := model.ParseAttendanceStatus(status)
	if !ok {
		return model.AttendanceRecord{}, fmt.Errorf("status %q: %w", status, apperr.ErrInvalidValue)
	}
	if weekKey == "" {
		return model.AttendanceRecord{}, fmt.Errorf("empty week key: %w", apperr.ErrInvalidValue)
	}
	if err := a.checkScope(ctx, scope, kind, entityID); err != nil {
		return model.AttendanceRecord{}, err
	}
	month, dayRange := a.denormalize(weekKey)
	return a.store.UpsertAttendance(ctx, kind, model.AttendanceRecord{
		EntityID:   entityID,
		WeekKey:    weekKey,
		Status:     parsed,
		MonthLabel: month,
		DateRange:  dayRange,
	})
}

// DeleteStatus removes one weekly slot. Deleting an absent slot is a no-op,
// not an error.
func (a *Attendance) DeleteStatus(ctx context.Context, scope auth.Scope, kind model.EntityKind, entityID int64, weekKey string) error {
	if err := a.checkScope(ctx, scope, kind, entityID); err != nil {
		return err
	}
	deleted, err := a.store.DeleteAttendance(ctx, kind, entityID, weekKey)
	if err != nil {
		return err
	}
	if !deleted {
		a.log.Debugw("delete of absent attendance slot", "kind", kind, "entity_id", entityID, "week_key", weekKey)
	}
	return nil
}

// InitializeWeeks creates a not_attended slot for every calendar week the
// entity does not already have a record for. Existing statuses are never
// overwritten. totalWeeks caps the seeding to the first N calendar weeks;
// zero means the whole calendar. Returns how many slots were created.
func (a *Attendance) InitializeWeeks(ctx context.Context, scope auth.Scope, kind model.EntityKind, entityID int64, totalWeeks int) (int, error) {
	if totalWeeks < 0 {
		return 0, fmt.Errorf("total weeks %d: %w", totalWeeks, apperr.ErrInvalidValue)
	}
	if err := a.checkScope(ctx, scope, kind, entityID); err != nil {
		return 0, err
	}
	weeks := a.cal.Weeks()
	if totalWeeks > 0 && totalWeeks < len(weeks) {
		weeks = weeks[:totalWeeks]
	}
	records := make([]model.AttendanceRecord, 0, len(weeks))
	for _, week := range weeks {
		records = append(records, model.AttendanceRecord{
			EntityID:   entityID,
			WeekKey:    week.Key,
			Status:     model.StatusNotAttended,
			MonthLabel: week.Month,
			DateRange:  week.DayRange,
		})
	}
	return a.store.InitializeAttendance(ctx, kind, records)
}

// Summary is the per-entity attendance view: one status per expected week,
// missing weeks filled as not_attended, and the percentage over the fixed
// expected-week denominator.
type Summary struct {
	EntityID   int64                             `json:"entity_id"`
	Weeks      map[string]model.AttendanceStatus `json:"weeks"`
	Attended   int                               `json:"attended_weeks"`
	TotalWeeks int                               `json:"total_weeks"`
	Percentage float64                           `json:"attendance_percentage"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func weekKey(n int) string { return fmt.Sprintf("week_%d", n) }

// summarize builds a Summary from stored records. Pure; shared by Summary
// and Stats.
func (a *Attendance) summarize(entityID int64, records []model.AttendanceRecord) Summary {
	byKey := make(map[string]model.AttendanceStatus, len(records))
	for _, rec := range records {
		byKey[rec.WeekKey] = rec.Status
	}
	sum := Summary{
		EntityID:   entityID,
		Weeks:      make(map[string]model.AttendanceStatus, a.expectedWeeks),
		TotalWeeks: a.expectedWeeks,
	}
	for n := 1; n <= a.expectedWeeks; n++ {
		key := weekKey(n)
		status, ok := byKey[key]
		if !ok {
			status = model.StatusNotAttended
		}
		sum.Weeks[key] = status
		if status == model.StatusAttended {
			sum.Attended++
		}
	}
	if a.expectedWeeks > 0 {
		sum.Percentage = round2(float64(sum.Attended) / float64(a.expectedWeeks) * 100)
	}
	return sum
}

func (a *Attendance) Summary(ctx context.Context, scope auth.Scope, kind model.EntityKind, entityID int64) (Summary, error) {
	if err := a.checkScope(ctx, scope, kind, entityID); err != nil {
		return Summary{}, err
	}
	records, err := a.store.ListAttendance(ctx, kind, entityID)
	if err != nil {
		return Summary{}, err
	}
	return a.summarize(entityID, records), nil
}

// StatsRow is one dashboard line. Absences count not_attended weeks within
// the expected window, default-filled weeks included.
type StatsRow struct {
	EntityID   int64   `json:"id"`
	Name       string  `json:"name"`
	TeamID     int64   `json:"team_id"`
	Attended   int     `json:"attended_weeks"`
	Absences   int     `json:"absences"`
	Percentage float64 `json:"attendance_percentage"`
	AtRisk     bool    `json:"at_risk"`
}

type Stats struct {
	Rows           []StatsRow `json:"entities"`
	TotalEntities  int        `json:"total_entities"`
	OverallAverage float64    `json:"overall_average"`
	AtRisk         []StatsRow `json:"at_risk"`
}

type statsEntity struct {
	id     int64
	name   string
	teamID int64
}

func (a *Attendance) statsEntities(ctx context.Context, scope auth.Scope, kind model.EntityKind) ([]statsEntity, error) {
	switch kind {
	case model.EntityStudents:
		students, err := a.roster.ListStudents(ctx, scope.TeamID)
		if err != nil {
			return nil, err
		}
		entities := make([]statsEntity, 0, len(students))
		for _, st := range students {
			entities = append(entities, statsEntity{id: st.ID, name: st.FirstName + " " + st.LastName, teamID: st.TeamID})
		}
		return entities, nil
	case model.EntityTutors:
		tutors, err := a.roster.ListTutors(ctx, scope.TeamID)
		if err != nil {
			return nil, err
		}
		entities := make([]statsEntity, 0, len(tutors))
		for _, t := range tutors {
			entities = append(entities, statsEntity{id: t.ID, name: t.FirstName + " " + t.LastName, teamID: t.TeamID})
		}
		return entities, nil
	default:
		return nil, fmt.Errorf("entity kind %q: %w", kind, apperr.ErrInvalidValue)
	}
}

// Stats builds the dashboard: one row per visible entity, the overall
// attendance average, and the entities flagged for too many absences.
func (a *Attendance) Stats(ctx context.Context, scope auth.Scope, kind model.EntityKind, teamFilter *int64) (Stats, error) {
	scope = scope.Narrow(teamFilter)
	stats := Stats{Rows: []StatsRow{}, AtRisk: []StatsRow{}}
	if scope.Empty {
		return stats, nil
	}
	entities, err := a.statsEntities(ctx, scope, kind)
	if err != nil {
		return Stats{}, err
	}
	ids := make([]int64, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.id)
	}
	byEntity, err := a.store.ListAttendanceByEntities(ctx, kind, ids)
	if err != nil {
		return Stats{}, err
	}

	var pctSum float64
	for _, e := range entities {
		sum := a.summarize(e.id, byEntity[e.id])
		absences := 0
		for _, status := range sum.Weeks {
			if status == model.StatusNotAttended {
				absences++
			}
		}
		row := StatsRow{
			EntityID:   e.id,
			Name:       e.name,
			TeamID:     e.teamID,
			Attended:   sum.Attended,
			Absences:   absences,
			Percentage: sum.Percentage,
			AtRisk:     absences > AtRiskAbsences,
		}
		stats.Rows = append(stats.Rows, row)
		if row.AtRisk {
			stats.AtRisk = append(stats.AtRisk, row)
		}
		pctSum += row.Percentage
	}
	stats.TotalEntities = len(stats.Rows)
	if stats.TotalEntities > 0 {
		stats.OverallAverage = round2(pctSum / float64(stats.TotalEntities))
	}
	return stats, nil
}

// WeeklyMap returns roster entities with their stored weekly statuses for
// the listing view, optionally restricted to one calendar month.
type WeeklyRow struct {
	EntityID int64                             `json:"id"`
	Name     string                            `json:"name"`
	TeamID   int64                             `json:"team_id"`
	Weeks    map[string]model.AttendanceStatus `json:"weeks"`
}

func (a *Attendance) WeeklyMap(ctx context.Context, scope auth.Scope, kind model.EntityKind, teamFilter *int64, month string) ([]WeeklyRow, error) {
	scope = scope.Narrow(teamFilter)
	if scope.Empty {
		return []WeeklyRow{}, nil
	}
	entities, err := a.statsEntities(ctx, scope, kind)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.id)
	}
	byEntity, err := a.store.ListAttendanceByEntities(ctx, kind, ids)
	if err != nil {
		return nil, err
	}

	var monthKeys map[string]bool
	if month != "" {
		monthKeys = map[string]bool{}
		for _, week := range a.cal.WeeksInMonth(month) {
			monthKeys[week.Key] = true
		}
	}

	rows := make([]WeeklyRow, 0, len(entities))
	for _, e := range entities {
		row := WeeklyRow{EntityID: e.id, Name: e.name, TeamID: e.teamID, Weeks: map[string]model.AttendanceStatus{}}
		for _, rec := range byEntity[e.id] {
			if monthKeys != nil && !monthKeys[rec.WeekKey] {
				continue
			}
			row.Weeks[rec.WeekKey] = rec.Status
		}
		rows = append(rows, row)
	}
	return rows, nil
}
