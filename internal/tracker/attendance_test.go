package tracker

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/auth"
	"tutoria/server/internal/calendar"
	"tutoria/server/internal/model"
)

func ptr(v int64) *int64 { return &v }

func newAttendanceFixture() (*Attendance, *fakeRoster, *fakeAttendanceStore) {
	roster := newFakeRoster()
	roster.students[1] = model.Student{ID: 1, FirstName: "Ana", LastName: "Rojas", TeamID: 10, Active: true}
	roster.students[2] = model.Student{ID: 2, FirstName: "Luis", LastName: "Soto", TeamID: 20, Active: true}
	roster.tutors[5] = model.Tutor{ID: 5, FirstName: "Paula", LastName: "Mena", TeamID: 10, Active: true}
	store := newFakeAttendanceStore()
	svc := NewAttendance(store, roster, calendar.Fallback(2026), 10, zap.NewNop().Sugar())
	return svc, roster, store
}

var adminScope = auth.Scope{Role: model.RoleAdmin}

func TestUpsertStatusReplacesPreviousValue(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	first, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_1", "attended")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_1", "holiday")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row, got ids %d and %d", first.ID, second.ID)
	}
	if second.Status != model.StatusHoliday {
		t.Fatalf("expected holiday, got %s", second.Status)
	}

	sum, err := svc.Summary(ctx, adminScope, model.EntityStudents, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Weeks["week_1"] != model.StatusHoliday {
		t.Fatalf("expected week_1 holiday, got %s", sum.Weeks["week_1"])
	}
}

func TestUpsertStatusDenormalizesCalendarWeek(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	rec, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_1", "attended")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rec.MonthLabel != "March" {
		t.Fatalf("expected March for week_1, got %q", rec.MonthLabel)
	}

	rec, err = svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_99", "attended")
	if err != nil {
		t.Fatalf("upsert unknown week: %v", err)
	}
	if rec.MonthLabel != "unknown" || rec.DateRange != "N/A" {
		t.Fatalf("expected placeholders for unknown week, got %q %q", rec.MonthLabel, rec.DateRange)
	}
}

func TestUpsertStatusValidation(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_1", "present"); !errors.Is(err, apperr.ErrInvalidValue) {
		t.Fatalf("expected invalid value for bad status, got %v", err)
	}
	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 999, "week_1", "attended"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown student, got %v", err)
	}
}

func TestUpsertStatusScopeEnforcement(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()
	tutorScope := auth.Scope{Role: model.RoleTutor, TeamID: ptr(10)}

	if _, err := svc.UpsertStatus(ctx, tutorScope, model.EntityStudents, 1, "week_1", "attended"); err != nil {
		t.Fatalf("own-team upsert: %v", err)
	}
	if _, err := svc.UpsertStatus(ctx, tutorScope, model.EntityStudents, 2, "week_1", "attended"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for other team, got %v", err)
	}
}

func TestDeleteStatusIsIdempotent(t *testing.T) {
	svc, _, store := newAttendanceFixture()
	ctx := context.Background()

	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_2", "attended"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.DeleteStatus(ctx, adminScope, model.EntityStudents, 1, "week_2"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.DeleteStatus(ctx, adminScope, model.EntityStudents, 1, "week_2"); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if len(store.records) != 0 {
		t.Fatalf("expected no records left, got %d", len(store.records))
	}
}

func TestInitializeWeeksDoesNotOverwrite(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_3", "attended"); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	created, err := svc.InitializeWeeks(ctx, adminScope, model.EntityStudents, 1, 0)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if created != calendar.FallbackWeeks-1 {
		t.Fatalf("expected %d created slots, got %d", calendar.FallbackWeeks-1, created)
	}

	sum, err := svc.Summary(ctx, adminScope, model.EntityStudents, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Weeks["week_3"] != model.StatusAttended {
		t.Fatalf("initialize overwrote an existing status: %s", sum.Weeks["week_3"])
	}

	again, err := svc.InitializeWeeks(ctx, adminScope, model.EntityStudents, 1, 0)
	if err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if again != 0 {
		t.Fatalf("second initialize created %d slots", again)
	}
}

func TestInitializeWeeksCapped(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	created, err := svc.InitializeWeeks(ctx, adminScope, model.EntityStudents, 1, 5)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if created != 5 {
		t.Fatalf("expected 5 created slots, got %d", created)
	}

	sum, err := svc.Summary(ctx, adminScope, model.EntityStudents, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Weeks["week_5"] != model.StatusNotAttended {
		t.Fatalf("week_5 should be seeded, got %s", sum.Weeks["week_5"])
	}

	// A cap beyond the calendar falls back to the whole calendar.
	rest, err := svc.InitializeWeeks(ctx, adminScope, model.EntityStudents, 1, calendar.FallbackWeeks+10)
	if err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if rest != calendar.FallbackWeeks-5 {
		t.Fatalf("expected %d created slots, got %d", calendar.FallbackWeeks-5, rest)
	}

	if _, err := svc.InitializeWeeks(ctx, adminScope, model.EntityStudents, 1, -1); !errors.Is(err, apperr.ErrInvalidValue) {
		t.Fatalf("expected invalid value for negative cap, got %v", err)
	}
}

func TestSummaryDefaultFill(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	sum, err := svc.Summary(ctx, adminScope, model.EntityStudents, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalWeeks != 10 || len(sum.Weeks) != 10 {
		t.Fatalf("expected 10 default-filled weeks, got %d/%d", sum.TotalWeeks, len(sum.Weeks))
	}
	for key, status := range sum.Weeks {
		if status != model.StatusNotAttended {
			t.Fatalf("expected %s default not_attended, got %s", key, status)
		}
	}
	if sum.Percentage != 0 {
		t.Fatalf("expected 0%%, got %v", sum.Percentage)
	}
}

func TestSummaryPercentage(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	for n := 1; n <= 7; n++ {
		if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, weekKey(n), "attended"); err != nil {
			t.Fatalf("upsert week %d: %v", n, err)
		}
	}
	sum, err := svc.Summary(ctx, adminScope, model.EntityStudents, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Attended != 7 || sum.Percentage != 70 {
		t.Fatalf("expected 7 attended / 70%%, got %d / %v", sum.Attended, sum.Percentage)
	}
}

func TestSummaryMixedStatuses(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	// 8 attended, 1 not attended, 1 holiday: only attended weeks count.
	for n := 1; n <= 8; n++ {
		if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, weekKey(n), "attended"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_9", "not_attended"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_10", "holiday"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sum, err := svc.Summary(ctx, adminScope, model.EntityStudents, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Percentage != 80 {
		t.Fatalf("expected 80%%, got %v", sum.Percentage)
	}
}

func TestStatsFlagsAbsences(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	// Student 1: full attendance. Student 2: nothing recorded, so 10
	// default absences and an at-risk flag.
	for n := 1; n <= 10; n++ {
		if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, weekKey(n), "attended"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	stats, err := svc.Stats(ctx, adminScope, model.EntityStudents, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntities != 2 {
		t.Fatalf("expected 2 entities, got %d", stats.TotalEntities)
	}
	if stats.OverallAverage != 50 {
		t.Fatalf("expected overall average 50, got %v", stats.OverallAverage)
	}
	if len(stats.AtRisk) != 1 || stats.AtRisk[0].EntityID != 2 {
		t.Fatalf("expected student 2 flagged, got %+v", stats.AtRisk)
	}
	if stats.AtRisk[0].Absences != 10 {
		t.Fatalf("expected 10 absences, got %d", stats.AtRisk[0].Absences)
	}
}

func TestStatsTutorScopeFiltersTeam(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()
	tutorScope := auth.Scope{Role: model.RoleTutor, TeamID: ptr(10)}

	stats, err := svc.Stats(ctx, tutorScope, model.EntityStudents, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntities != 1 || stats.Rows[0].EntityID != 1 {
		t.Fatalf("expected only team 10 student, got %+v", stats.Rows)
	}

	// A team filter from the request cannot widen a tutor's scope.
	stats, err = svc.Stats(ctx, tutorScope, model.EntityStudents, ptr(20))
	if err != nil {
		t.Fatalf("stats with filter: %v", err)
	}
	if stats.TotalEntities != 1 || stats.Rows[0].EntityID != 1 {
		t.Fatalf("tutor escaped their team: %+v", stats.Rows)
	}
}

func TestStatsEmptyScope(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()
	teamless := auth.Scope{Role: model.RoleTutor, Empty: true}

	stats, err := svc.Stats(ctx, teamless, model.EntityStudents, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntities != 0 || len(stats.Rows) != 0 {
		t.Fatalf("teamless tutor should see nothing, got %+v", stats.Rows)
	}
}

func TestTutorAttendanceIsIndependent(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityTutors, 5, "week_1", "attended"); err != nil {
		t.Fatalf("tutor upsert: %v", err)
	}
	sum, err := svc.Summary(ctx, adminScope, model.EntityTutors, 5)
	if err != nil {
		t.Fatalf("tutor summary: %v", err)
	}
	if sum.Attended != 1 {
		t.Fatalf("expected 1 attended tutor week, got %d", sum.Attended)
	}

	// The student with the same numeric id is unaffected.
	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_2", "attended"); err != nil {
		t.Fatalf("student upsert: %v", err)
	}
	studentSum, err := svc.Summary(ctx, adminScope, model.EntityStudents, 1)
	if err != nil {
		t.Fatalf("student summary: %v", err)
	}
	if studentSum.Weeks["week_1"] != model.StatusNotAttended {
		t.Fatalf("tutor record leaked into student summary")
	}
}

func TestWeeklyMapMonthFilter(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	// week_1 is March, week_5 is April in the fallback calendar.
	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_1", "attended"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := svc.UpsertStatus(ctx, adminScope, model.EntityStudents, 1, "week_5", "attended"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := svc.WeeklyMap(ctx, adminScope, model.EntityStudents, nil, "March")
	if err != nil {
		t.Fatalf("weekly map: %v", err)
	}
	var row WeeklyRow
	for _, r := range rows {
		if r.EntityID == 1 {
			row = r
		}
	}
	if len(row.Weeks) != 1 || row.Weeks["week_1"] != model.StatusAttended {
		t.Fatalf("expected only week_1 for March, got %+v", row.Weeks)
	}
}
