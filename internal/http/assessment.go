package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tutoria/server/internal/catalog"
	"tutoria/server/internal/export"
	"tutoria/server/internal/metrics"
	"tutoria/server/internal/model"
)

// assessmentRoutes mounts the same handler set twice, once per assessment
// kind. Diagnostic and ticket records never mix.
func (s *Server) assessmentRoutes(r chi.Router, prefix string, kind model.AssessmentKind) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/units", s.handleUnits)
		r.Get("/modules", s.handleModules(kind))
		r.Get("/students", s.handleAssessmentMatrix(kind))
		r.Post("/students", s.handleUpsertAssessment(kind))
		r.Get("/export", s.handleAssessmentExport(kind))
		r.Get("/export.xlsx", s.handleAssessmentExportXLSX(kind))
	})
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestScope(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, catalog.Units())
}

func (s *Server) handleModules(kind model.AssessmentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestScope(w, r); !ok {
			return
		}
		unitKey := r.URL.Query().Get("unit")
		if !catalog.ValidUnit(unitKey) {
			writeError(w, http.StatusBadRequest, "invalid_unit")
			return
		}
		writeJSON(w, http.StatusOK, catalog.Modules(kind, unitKey))
	}
}

func (s *Server) handleAssessmentMatrix(kind model.AssessmentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requestScope(w, r)
		if !ok {
			return
		}
		rows, err := s.assessment.MatrixForUnit(r.Context(), scope, kind, r.URL.Query().Get("unit"), queryInt64(r, "team_id"))
		if err != nil {
			writeAppError(w, err, "student_not_found", "invalid_unit")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (s *Server) handleUpsertAssessment(kind model.AssessmentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requestScope(w, r)
		if !ok {
			return
		}
		var req struct {
			StudentID int64  `json:"student_id"`
			Unit      string `json:"unit"`
			Module    string `json:"module"`
			Result    string `json:"result"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if req.StudentID == 0 || req.Unit == "" || req.Module == "" || req.Result == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}
		rec, err := s.assessment.UpsertResult(r.Context(), scope, kind, req.StudentID, req.Unit, req.Module, req.Result)
		if err != nil {
			writeAppError(w, err, "student_not_found", "invalid_result")
			return
		}
		metrics.AssessmentUpserts.Inc()
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleAssessmentExport(kind model.AssessmentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requestScope(w, r)
		if !ok {
			return
		}
		rows, err := s.assessment.FlattenForExport(r.Context(), scope, kind, queryInt64(r, "team_id"))
		if err != nil {
			writeAppError(w, err, "student_not_found", "invalid_request")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"kind":  kind,
			"total": len(rows),
			"rows":  rows,
		})
	}
}

func (s *Server) handleAssessmentExportXLSX(kind model.AssessmentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := requestScope(w, r)
		if !ok {
			return
		}
		rows, err := s.assessment.FlattenForExport(r.Context(), scope, kind, queryInt64(r, "team_id"))
		if err != nil {
			writeAppError(w, err, "student_not_found", "invalid_request")
			return
		}

		filename := fmt.Sprintf("%s_%s.xlsx", kind, time.Now().Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		if err := export.WriteAssessmentWorkbook(w, kind, rows); err != nil {
			s.log.Errorw("write xlsx export", "kind", kind, "err", err)
		}
	}
}
