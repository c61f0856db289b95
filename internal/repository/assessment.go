package repository

import (
	"context"
	"fmt"

	"tutoria/server/internal/model"
)

// assessmentTables maps the assessment kind to its result table. Both share
// the same shape and the same (student, unit, module) unique key.
var assessmentTables = map[model.AssessmentKind]string{
	model.KindDiagnostic: "diagnostic_results",
	model.KindTicket:     "ticket_results",
}

func scanAssessment(row interface{ Scan(...any) error }) (model.AssessmentRecord, error) {
	var rec model.AssessmentRecord
	err := row.Scan(
		&rec.ID,
		&rec.StudentID,
		&rec.UnitKey,
		&rec.ModuleKey,
		&rec.Result,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

// UpsertAssessment writes one result cell, replacing any previous result for
// the same (student, unit, module).
func (s *Store) UpsertAssessment(ctx context.Context, kind model.AssessmentKind, rec model.AssessmentRecord) (model.AssessmentRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (student_id, unit_key, module_key, result)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, unit_key, module_key)
		DO UPDATE SET result = EXCLUDED.result, updated_at = now()
		RETURNING id, student_id, unit_key, module_key, result, created_at, updated_at
	`, assessmentTables[kind]), rec.StudentID, rec.UnitKey, rec.ModuleKey, rec.Result)
	saved, err := scanAssessment(row)
	return saved, wrapErr(err)
}

// ListAssessmentsByUnit bulk-fetches one unit's results for a set of
// students, keyed by (student_id, module_key).
func (s *Store) ListAssessmentsByUnit(ctx context.Context, kind model.AssessmentKind, unitKey string, studentIDs []int64) (map[int64]map[string]string, error) {
	byStudent := map[int64]map[string]string{}
	if len(studentIDs) == 0 {
		return byStudent, nil
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, student_id, unit_key, module_key, result, created_at, updated_at
		FROM %s
		WHERE unit_key = $1 AND student_id = ANY($2)
	`, assessmentTables[kind]), unitKey, studentIDs)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		if byStudent[rec.StudentID] == nil {
			byStudent[rec.StudentID] = map[string]string{}
		}
		byStudent[rec.StudentID][rec.ModuleKey] = rec.Result
	}
	return byStudent, wrapErr(rows.Err())
}

// ListAllAssessments fetches every stored result for a set of students in one
// query, keyed by student then "unit_key/module_key". Used by the export.
func (s *Store) ListAllAssessments(ctx context.Context, kind model.AssessmentKind, studentIDs []int64) (map[int64]map[string]string, error) {
	byStudent := map[int64]map[string]string{}
	if len(studentIDs) == 0 {
		return byStudent, nil
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, student_id, unit_key, module_key, result, created_at, updated_at
		FROM %s
		WHERE student_id = ANY($1)
	`, assessmentTables[kind]), studentIDs)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		if byStudent[rec.StudentID] == nil {
			byStudent[rec.StudentID] = map[string]string{}
		}
		byStudent[rec.StudentID][rec.UnitKey+"/"+rec.ModuleKey] = rec.Result
	}
	return byStudent, wrapErr(rows.Err())
}
