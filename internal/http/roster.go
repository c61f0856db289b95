package http

import (
	"net/http"
	"regexp"

	"tutoria/server/internal/crypto"
	"tutoria/server/internal/model"
)

var nationalIDPattern = regexp.MustCompile(`^\d{1,2}\.\d{3}\.\d{3}-[\dkK]$`)

// Schools

type schoolRequest struct {
	Name   string `json:"name"`
	Comuna string `json:"comuna"`
}

func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestScope(w, r); !ok {
		return
	}
	schools, err := s.store.ListSchools(r.Context())
	if err != nil {
		writeAppError(w, err, "school_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, schools)
}

func (s *Server) handleGetSchool(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestScope(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	school, err := s.store.GetSchool(r.Context(), id)
	if err != nil {
		writeAppError(w, err, "school_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, school)
}

func (s *Server) handleCreateSchool(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req schoolRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	school, err := s.store.CreateSchool(r.Context(), req.Name, req.Comuna)
	if err != nil {
		writeAppError(w, err, "school_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusCreated, school)
}

func (s *Server) handleUpdateSchool(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	var req schoolRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	school, err := s.store.UpdateSchool(r.Context(), id, req.Name, req.Comuna)
	if err != nil {
		writeAppError(w, err, "school_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, school)
}

func (s *Server) handleDeleteSchool(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	if err := s.store.DeleteSchool(r.Context(), id); err != nil {
		writeAppError(w, err, "school_not_found", "invalid_request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Teams

type teamResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	SchoolID    *int64  `json:"school_id,omitempty"`
	SchoolName  *string `json:"school_name,omitempty"`
}

func mapTeam(t model.TeamWithSchool) teamResponse {
	return teamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		SchoolID:    t.SchoolID,
		SchoolName:  t.SchoolName,
	}
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	teams, err := s.store.ListTeams(r.Context())
	if err != nil {
		writeAppError(w, err, "team_not_found", "invalid_request")
		return
	}
	resp := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		if !scope.Admin() && !scope.Allows(t.ID) {
			continue
		}
		resp = append(resp, mapTeam(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMyTeam(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	if scope.TeamID == nil {
		writeError(w, http.StatusNotFound, "team_not_found")
		return
	}
	team, err := s.store.GetTeam(r.Context(), *scope.TeamID)
	if err != nil {
		writeAppError(w, err, "team_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, mapTeam(team))
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	if !scope.Allows(id) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	team, err := s.store.GetTeam(r.Context(), id)
	if err != nil {
		writeAppError(w, err, "team_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, mapTeam(team))
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
		SchoolID    *int64  `json:"school_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	team, err := s.store.CreateTeam(r.Context(), req.Name, req.Description, req.SchoolID)
	if err != nil {
		writeAppError(w, err, "school_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// Students

type studentRequest struct {
	NationalID      string  `json:"national_id"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Course          string  `json:"course"`
	TeamID          int64   `json:"team_id"`
	GuardianName    *string `json:"guardian_name"`
	GuardianContact *string `json:"guardian_contact"`
	Notes           *string `json:"notes"`
}

type studentResponse struct {
	model.Student
	AttendancePercentage *float64 `json:"attendance_percentage,omitempty"`
}

func (s *Server) validateStudentRequest(w http.ResponseWriter, r *http.Request, req studentRequest) bool {
	if req.FirstName == "" || req.LastName == "" || req.TeamID == 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return false
	}
	if req.NationalID != "" && !nationalIDPattern.MatchString(req.NationalID) {
		writeError(w, http.StatusBadRequest, "invalid_national_id")
		return false
	}
	if !s.store.TeamExists(r.Context(), req.TeamID) {
		writeError(w, http.StatusNotFound, "team_not_found")
		return false
	}
	return true
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	scope = scope.Narrow(queryInt64(r, "team_id"))
	if scope.Empty {
		writeJSON(w, http.StatusOK, []studentResponse{})
		return
	}
	students, err := s.store.ListStudents(r.Context(), scope.TeamID)
	if err != nil {
		writeAppError(w, err, "student_not_found", "invalid_request")
		return
	}

	stats, err := s.attendance.Stats(r.Context(), scope, model.EntityStudents, nil)
	if err != nil {
		writeAppError(w, err, "student_not_found", "invalid_request")
		return
	}
	pctByID := make(map[int64]float64, len(stats.Rows))
	for _, row := range stats.Rows {
		pctByID[row.EntityID] = row.Percentage
	}

	resp := make([]studentResponse, 0, len(students))
	for _, st := range students {
		out := studentResponse{Student: st}
		if pct, ok := pctByID[st.ID]; ok {
			out.AttendancePercentage = &pct
		}
		resp = append(resp, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	student, err := s.store.GetStudent(r.Context(), id)
	if err != nil {
		writeAppError(w, err, "student_not_found", "invalid_request")
		return
	}
	if !scope.Allows(student.TeamID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !s.validateStudentRequest(w, r, req) {
		return
	}
	if !scope.Allows(req.TeamID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	student, err := s.store.CreateStudent(r.Context(), model.Student{
		NationalID:      req.NationalID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Course:          req.Course,
		TeamID:          req.TeamID,
		GuardianName:    req.GuardianName,
		GuardianContact: req.GuardianContact,
		Notes:           req.Notes,
	})
	if err != nil {
		writeAppError(w, err, "team_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	existing, err := s.store.GetStudent(r.Context(), id)
	if err != nil {
		writeAppError(w, err, "student_not_found", "invalid_request")
		return
	}
	if !scope.Allows(existing.TeamID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !s.validateStudentRequest(w, r, req) {
		return
	}
	// Moving a student into a team outside the caller's scope is a write
	// the scope does not cover.
	if !scope.Allows(req.TeamID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	student, err := s.store.UpdateStudent(r.Context(), model.Student{
		ID:              id,
		NationalID:      req.NationalID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Course:          req.Course,
		TeamID:          req.TeamID,
		GuardianName:    req.GuardianName,
		GuardianContact: req.GuardianContact,
		Notes:           req.Notes,
	})
	if err != nil {
		writeAppError(w, err, "student_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	existing, err := s.store.GetStudent(r.Context(), id)
	if err != nil {
		writeAppError(w, err, "student_not_found", "invalid_request")
		return
	}
	if !scope.Allows(existing.TeamID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	switch r.URL.Query().Get("mode") {
	case "", "deactivate":
		reason := r.URL.Query().Get("reason")
		if err := s.store.DeactivateStudent(r.Context(), id, reason); err != nil {
			writeAppError(w, err, "student_not_found", "invalid_request")
			return
		}
	case "purge":
		if !scope.Admin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if err := s.store.PurgeStudent(r.Context(), id); err != nil {
			writeAppError(w, err, "student_not_found", "invalid_request")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_mode")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tutors

type tutorRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	TeamID    int64  `json:"team_id"`
}

func (s *Server) handleListTutors(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	scope = scope.Narrow(queryInt64(r, "team_id"))
	if scope.Empty {
		writeJSON(w, http.StatusOK, []model.Tutor{})
		return
	}
	tutors, err := s.store.ListTutors(r.Context(), scope.TeamID)
	if err != nil {
		writeAppError(w, err, "tutor_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, tutors)
}

func (s *Server) handleGetTutor(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	tutor, err := s.store.GetTutor(r.Context(), id)
	if err != nil {
		writeAppError(w, err, "tutor_not_found", "invalid_request")
		return
	}
	if !scope.Allows(tutor.TeamID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, tutor)
}

func (s *Server) handleCreateTutor(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req tutorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.TeamID == 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !s.store.TeamExists(r.Context(), req.TeamID) {
		writeError(w, http.StatusNotFound, "team_not_found")
		return
	}
	tutor, err := s.store.CreateTutor(r.Context(), model.Tutor{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		TeamID:    req.TeamID,
	})
	if err != nil {
		writeAppError(w, err, "team_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusCreated, tutor)
}

func (s *Server) handleUpdateTutor(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	var req tutorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.TeamID == 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !s.store.TeamExists(r.Context(), req.TeamID) {
		writeError(w, http.StatusNotFound, "team_not_found")
		return
	}
	tutor, err := s.store.UpdateTutor(r.Context(), model.Tutor{
		ID:        id,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		TeamID:    req.TeamID,
	})
	if err != nil {
		writeAppError(w, err, "tutor_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, tutor)
}

func (s *Server) handleDeleteTutor(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	switch r.URL.Query().Get("mode") {
	case "", "deactivate":
		if err := s.store.DeactivateTutor(r.Context(), id, r.URL.Query().Get("reason")); err != nil {
			writeAppError(w, err, "tutor_not_found", "invalid_request")
			return
		}
	case "purge":
		if err := s.store.PurgeTutor(r.Context(), id); err != nil {
			writeAppError(w, err, "tutor_not_found", "invalid_request")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_mode")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Users

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeAppError(w, err, "user_not_found", "invalid_request")
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, mapUser(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err, "user_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
		TeamID   *int64 `json:"team_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleTutor {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if req.Role == model.RoleTutor && req.TeamID != nil && !s.store.TeamExists(r.Context(), *req.TeamID) {
		writeError(w, http.StatusNotFound, "team_not_found")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	user, err := s.store.CreateUser(r.Context(), model.User{
		Email:                  req.Email,
		PasswordHash:           hash,
		FullName:               req.FullName,
		Role:                   req.Role,
		TeamID:                 req.TeamID,
		PasswordChangeRequired: true,
	})
	if err != nil {
		writeAppError(w, err, "team_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusCreated, mapUser(user))
}
