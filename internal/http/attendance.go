package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutoria/server/internal/metrics"
	"tutoria/server/internal/model"
)

func entityKind(r *http.Request) (model.EntityKind, bool) {
	return model.ParseEntityKind(chi.URLParam(r, "kind"))
}

func (s *Server) handleCalendarWeeks(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestScope(w, r); !ok {
		return
	}
	month := r.URL.Query().Get("month")
	weeks := s.cal.Weeks()
	if month != "" {
		weeks = s.cal.WeeksInMonth(month)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":  s.cal.Year,
		"weeks": weeks,
	})
}

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	kind, ok := entityKind(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}

	rows, err := s.attendance.WeeklyMap(r.Context(), scope, kind, queryInt64(r, "team_id"), r.URL.Query().Get("month"))
	if err != nil {
		writeAppError(w, err, "not_found", "invalid_request")
		return
	}

	// The school filter resolves to the school's teams; rows outside them
	// are dropped.
	if schoolID := queryInt64(r, "school_id"); schoolID != nil {
		teams, err := s.store.ListTeams(r.Context())
		if err != nil {
			writeAppError(w, err, "school_not_found", "invalid_request")
			return
		}
		schoolTeams := map[int64]bool{}
		for _, t := range teams {
			if t.SchoolID != nil && *t.SchoolID == *schoolID {
				schoolTeams[t.ID] = true
			}
		}
		filtered := rows[:0]
		for _, row := range rows {
			if schoolTeams[row.TeamID] {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleUpsertAttendance(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	kind, ok := entityKind(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	var req struct {
		EntityID int64  `json:"entity_id"`
		WeekKey  string `json:"week_key"`
		Status   string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.EntityID == 0 || req.WeekKey == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	rec, err := s.attendance.UpsertStatus(r.Context(), scope, kind, req.EntityID, req.WeekKey, req.Status)
	if err != nil {
		writeAppError(w, err, notFoundCode(kind), "invalid_status")
		return
	}
	metrics.AttendanceUpserts.Inc()
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteAttendance(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	kind, ok := entityKind(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	weekKey := chi.URLParam(r, "weekKey")
	if weekKey == "" {
		writeError(w, http.StatusBadRequest, "missing_week_key")
		return
	}
	if err := s.attendance.DeleteStatus(r.Context(), scope, kind, id, weekKey); err != nil {
		writeAppError(w, err, notFoundCode(kind), "invalid_request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInitializeAttendance(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	kind, ok := entityKind(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	// The body is optional; without one the whole calendar is seeded.
	var req struct {
		TotalWeeks int `json:"total_weeks"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	created, err := s.attendance.InitializeWeeks(r.Context(), scope, kind, id, req.TotalWeeks)
	if err != nil {
		writeAppError(w, err, notFoundCode(kind), "invalid_total_weeks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (s *Server) handleAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	kind, ok := entityKind(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	summary, err := s.attendance.Summary(r.Context(), scope, kind, id)
	if err != nil {
		writeAppError(w, err, notFoundCode(kind), "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAttendanceStats(w http.ResponseWriter, r *http.Request) {
	scope, ok := requestScope(w, r)
	if !ok {
		return
	}
	kind, ok := entityKind(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	stats, err := s.attendance.Stats(r.Context(), scope, kind, queryInt64(r, "team_id"))
	if err != nil {
		writeAppError(w, err, notFoundCode(kind), "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func notFoundCode(kind model.EntityKind) string {
	if kind == model.EntityTutors {
		return "tutor_not_found"
	}
	return "student_not_found"
}
