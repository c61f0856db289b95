package http

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/model"
)

// fakeStore is an in-memory RosterStore for handler tests.
type fakeStore struct {
	schools  map[int64]model.School
	teams    map[int64]model.TeamWithSchool
	students map[int64]model.Student
	tutors   map[int64]model.Tutor
	users    map[int64]model.User
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schools:  map[int64]model.School{},
		teams:    map[int64]model.TeamWithSchool{},
		students: map[int64]model.Student{},
		tutors:   map[int64]model.Tutor{},
		users:    map[int64]model.User{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateSchool(_ context.Context, name, comuna string) (model.School, error) {
	sch := model.School{ID: f.id(), Name: name, Comuna: comuna}
	f.schools[sch.ID] = sch
	return sch, nil
}

func (f *fakeStore) GetSchool(_ context.Context, id int64) (model.School, error) {
	sch, ok := f.schools[id]
	if !ok {
		return model.School{}, apperr.ErrNotFound
	}
	return sch, nil
}

func (f *fakeStore) ListSchools(_ context.Context) ([]model.School, error) {
	out := []model.School{}
	for _, sch := range f.schools {
		out = append(out, sch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateSchool(_ context.Context, id int64, name, comuna string) (model.School, error) {
	sch, ok := f.schools[id]
	if !ok {
		return model.School{}, apperr.ErrNotFound
	}
	sch.Name, sch.Comuna = name, comuna
	f.schools[id] = sch
	return sch, nil
}

func (f *fakeStore) DeleteSchool(_ context.Context, id int64) error {
	if _, ok := f.schools[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.schools, id)
	return nil
}

func (f *fakeStore) CreateTeam(_ context.Context, name string, description *string, schoolID *int64) (model.Team, error) {
	t := model.Team{ID: f.id(), Name: name, Description: description, SchoolID: schoolID}
	f.teams[t.ID] = model.TeamWithSchool{Team: t}
	return t, nil
}

func (f *fakeStore) GetTeam(_ context.Context, id int64) (model.TeamWithSchool, error) {
	t, ok := f.teams[id]
	if !ok {
		return model.TeamWithSchool{}, apperr.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) ListTeams(_ context.Context) ([]model.TeamWithSchool, error) {
	out := []model.TeamWithSchool{}
	for _, t := range f.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) TeamExists(_ context.Context, id int64) bool {
	_, ok := f.teams[id]
	return ok
}

func (f *fakeStore) CreateStudent(_ context.Context, st model.Student) (model.Student, error) {
	st.ID = f.id()
	st.Active = true
	f.students[st.ID] = st
	return st, nil
}

func (f *fakeStore) GetStudent(_ context.Context, id int64) (model.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return model.Student{}, apperr.ErrNotFound
	}
	return st, nil
}

func (f *fakeStore) ListStudents(_ context.Context, teamID *int64) ([]model.Student, error) {
	out := []model.Student{}
	for _, st := range f.students {
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

func (f *fakeStore) UpdateStudent(_ context.Context, st model.Student) (model.Student, error) {
	existing, ok := f.students[st.ID]
	if !ok {
		return model.Student{}, apperr.ErrNotFound
	}
	st.Active = existing.Active
	f.students[st.ID] = st
	return st, nil
}

func (f *fakeStore) DeactivateStudent(_ context.Context, id int64, reason string) error {
	st, ok := f.students[id]
	if !ok {
		return apperr.ErrNotFound
	}
	st.Active = false
	st.DeactivationReason = &reason
	f.students[id] = st
	return nil
}

func (f *fakeStore) PurgeStudent(_ context.Context, id int64) error {
	if _, ok := f.students[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.students, id)
	return nil
}

func (f *fakeStore) CreateTutor(_ context.Context, t model.Tutor) (model.Tutor, error) {
	t.ID = f.id()
	t.Active = true
	f.tutors[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetTutor(_ context.Context, id int64) (model.Tutor, error) {
	t, ok := f.tutors[id]
	if !ok {
		return model.Tutor{}, apperr.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) ListTutors(_ context.Context, teamID *int64) ([]model.Tutor, error) {
	out := []model.Tutor{}
	for _, t := range f.tutors {
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

func (f *fakeStore) UpdateTutor(_ context.Context, t model.Tutor) (model.Tutor, error) {
	if _, ok := f.tutors[t.ID]; !ok {
		return model.Tutor{}, apperr.ErrNotFound
	}
	t.Active = true
	f.tutors[t.ID] = t
	return t, nil
}

func (f *fakeStore) DeactivateTutor(_ context.Context, id int64, reason string) error {
	t, ok := f.tutors[id]
	if !ok {
		return apperr.ErrNotFound
	}
	t.Active = false
	t.DeactivationReason = &reason
	f.tutors[id] = t
	return nil
}

func (f *fakeStore) PurgeTutor(_ context.Context, id int64) error {
	if _, ok := f.tutors[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.tutors, id)
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, u model.User) (model.User, error) {
	u.ID = f.id()
	u.Active = true
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range f.users {
		if u.Email == email && u.Active {
			return u, nil
		}
	}
	return model.User{}, apperr.ErrNotFound
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, apperr.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) ListUsers(_ context.Context) ([]model.User, error) {
	out := []model.User{}
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	u, ok := f.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangeRequired = false
	f.users[id] = u
	return nil
}

// fakeAttendanceStore and fakeAssessmentStore mirror the SQL upsert
// semantics for the tracker services under test.

type fakeAttendanceStore struct {
	records map[string]model.AttendanceRecord
	nextID  int64
}

func newFakeAttendanceStore() *fakeAttendanceStore {
	return &fakeAttendanceStore{records: map[string]model.AttendanceRecord{}}
}

func attKey(kind model.EntityKind, entityID int64, weekKey string) string {
	return string(kind) + "/" + weekKey + "/" + strconv.FormatInt(entityID, 10)
}

func (s *fakeAttendanceStore) UpsertAttendance(_ context.Context, kind model.EntityKind, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	key := attKey(kind, rec.EntityID, rec.WeekKey)
	if existing, ok := s.records[key]; ok {
		existing.Status = rec.Status
		s.records[key] = existing
		return existing, nil
	}
	s.nextID++
	rec.ID = s.nextID
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
	cells map[string]string
}

func newFakeAssessmentStore() *fakeAssessmentStore {
	return &fakeAssessmentStore{cells: map[string]string{}}
}

func cellKey(kind model.AssessmentKind, studentID int64, unitKey, moduleKey string) string {
	return string(kind) + "/" + unitKey + "/" + moduleKey + "/" + strconv.FormatInt(studentID, 10)
}

func (s *fakeAssessmentStore) UpsertAssessment(_ context.Context, kind model.AssessmentKind, rec model.AssessmentRecord) (model.AssessmentRecord, error) {
	s.cells[cellKey(kind, rec.StudentID, rec.UnitKey, rec.ModuleKey)] = rec.Result
	return rec, nil
}

func (s *fakeAssessmentStore) ListAssessmentsByUnit(_ context.Context, kind model.AssessmentKind, unitKey string, studentIDs []int64) (map[int64]map[string]string, error) {
	out := map[int64]map[string]string{}
	for _, id := range studentIDs {
		for key, result := range s.cells {
			// key layout: kind/unit/module/id
			segs := strings.Split(key, "/")
			if len(segs) != 4 || segs[0] != string(kind) || segs[1] != unitKey || segs[3] != strconv.FormatInt(id, 10) {
				continue
			}
			if out[id] == nil {
				out[id] = map[string]string{}
			}
			out[id][segs[2]] = result
		}
	}
	return out, nil
}

func (s *fakeAssessmentStore) ListAllAssessments(_ context.Context, kind model.AssessmentKind, studentIDs []int64) (map[int64]map[string]string, error) {
	out := map[int64]map[string]string{}
	for _, id := range studentIDs {
		for key, result := range s.cells {
			segs := strings.Split(key, "/")
			if len(segs) != 4 || segs[0] != string(kind) || segs[3] != strconv.FormatInt(id, 10) {
				continue
			}
			if out[id] == nil {
				out[id] = map[string]string{}
			}
			out[id][segs[1]+"/"+segs[2]] = result
		}
	}
	return out, nil
}
