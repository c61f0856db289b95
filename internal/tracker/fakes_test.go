package tracker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/model"
)

// In-memory stand-ins for the pgx stores, mirroring their upsert and
// default semantics.

type fakeRoster struct {
	students map[int64]model.Student
	tutors   map[int64]model.Tutor
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{students: map[int64]model.Student{}, tutors: map[int64]model.Tutor{}}
}

func (r *fakeRoster) GetStudent(_ context.Context, id int64) (model.Student, error) {
	st, ok := r.students[id]
	if !ok {
		return model.Student{}, apperr.ErrNotFound
	}
	return st, nil
}

func (r *fakeRoster) GetTutor(_ context.Context, id int64) (model.Tutor, error) {
	t, ok := r.tutors[id]
	if !ok {
		return model.Tutor{}, apperr.ErrNotFound
	}
	return t, nil
}

func (r *fakeRoster) ListStudents(_ context.Context, teamID *int64) ([]model.Student, error) {
	out := []model.Student{}
	for _, st := range r.students {
		if !st.Active {
			continue
		}
		if teamID != nil && st.TeamID != *teamID {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRoster) ListTutors(_ context.Context, teamID *int64) ([]model.Tutor, error) {
	out := []model.Tutor{}
	for _, t := range r.tutors {
		if !t.Active {
			continue
		}
		if teamID != nil && t.TeamID != *teamID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeAttendanceStore struct {
	records map[string]model.AttendanceRecord
	nextID  int64
}

func newFakeAttendanceStore() *fakeAttendanceStore {
	return &fakeAttendanceStore{records: map[string]model.AttendanceRecord{}}
}

func attKey(kind model.EntityKind, entityID int64, weekKey string) string {
	return fmt.Sprintf("%s/%d/%s", kind, entityID, weekKey)
}

func (s *fakeAttendanceStore) UpsertAttendance(_ context.Context, kind model.EntityKind, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	key := attKey(kind, rec.EntityID, rec.WeekKey)
	if existing, ok := s.records[key]; ok {
		existing.Status = rec.Status
		existing.MonthLabel = rec.MonthLabel
		existing.DateRange = rec.DateRange
		existing.UpdatedAt = time.Now()
		s.records[key] = existing
		return existing, nil
	}
	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	s.records[key] = rec
	return rec, nil
}

func (s *fakeAttendanceStore) DeleteAttendance(_ context.Context, kind model.EntityKind, entityID int64, weekKey string) (bool, error) {
	key := attKey(kind, entityID, weekKey)
	if _, ok := s.records[key]; !ok {
		return false, nil
	}
	delete(s.records, key)
	return true, nil
}

func (s *fakeAttendanceStore) ListAttendance(_ context.Context, kind model.EntityKind, entityID int64) ([]model.AttendanceRecord, error) {
	out := []model.AttendanceRecord{}
	for key, rec := range s.records {
		if rec.EntityID == entityID && key == attKey(kind, entityID, rec.WeekKey) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeAttendanceStore) ListAttendanceByEntities(ctx context.Context, kind model.EntityKind, entityIDs []int64) (map[int64][]model.AttendanceRecord, error) {
	out := map[int64][]model.AttendanceRecord{}
	for _, id := range entityIDs {
		records, _ := s.ListAttendance(ctx, kind, id)
		if len(records) > 0 {
			out[id] = records
		}
	}
	return out, nil
}

func (s *fakeAttendanceStore) InitializeAttendance(_ context.Context, kind model.EntityKind, records []model.AttendanceRecord) (int, error) {
	inserted := 0
	for _, rec := range records {
		key := attKey(kind, rec.EntityID, rec.WeekKey)
		if _, ok := s.records[key]; ok {
			continue
		}
		s.nextID++
		rec.ID = s.nextID
		s.records[key] = rec
		inserted++
	}
	return inserted, nil
}

type fakeAssessmentStore struct {
	cells  map[string]string
	nextID int64
}

func newFakeAssessmentStore() *fakeAssessmentStore {
	return &fakeAssessmentStore{cells: map[string]string{}}
}

func cellKey(kind model.AssessmentKind, studentID int64, unitKey, moduleKey string) string {
	return fmt.Sprintf("%s/%d/%s/%s", kind, studentID, unitKey, moduleKey)
}

func (s *fakeAssessmentStore) UpsertAssessment(_ context.Context, kind model.AssessmentKind, rec model.AssessmentRecord) (model.AssessmentRecord, error) {
	key := cellKey(kind, rec.StudentID, rec.UnitKey, rec.ModuleKey)
	if _, ok := s.cells[key]; !ok {
		s.nextID++
		rec.ID = s.nextID
	}
	s.cells[key] = rec.Result
	return rec, nil
}

func (s *fakeAssessmentStore) ListAssessmentsByUnit(_ context.Context, kind model.AssessmentKind, unitKey string, studentIDs []int64) (map[int64]map[string]string, error) {
	out := map[int64]map[string]string{}
	for _, id := range studentIDs {
		prefix := fmt.Sprintf("%s/%d/%s/", kind, id, unitKey)
		for key, result := range s.cells {
			if len(key) > len(prefix) && key[:len(prefix)] == prefix {
				if out[id] == nil {
					out[id] = map[string]string{}
				}
				out[id][key[len(prefix):]] = result
			}
		}
	}
	return out, nil
}

func (s *fakeAssessmentStore) ListAllAssessments(_ context.Context, kind model.AssessmentKind, studentIDs []int64) (map[int64]map[string]string, error) {
	out := map[int64]map[string]string{}
	for _, id := range studentIDs {
		prefix := fmt.Sprintf("%s/%d/", kind, id)
		for key, result := range s.cells {
			if len(key) > len(prefix) && key[:len(prefix)] == prefix {
				if out[id] == nil {
					out[id] = map[string]string{}
				}
				out[id][key[len(prefix):]] = result
			}
		}
	}
	return out, nil
}
