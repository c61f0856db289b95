package tracker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/auth"
	"tutoria/server/internal/catalog"
	"tutoria/server/internal/model"
)

type AssessmentStore interface {
	UpsertAssessment(ctx context.Context, kind model.AssessmentKind, rec model.AssessmentRecord) (model.AssessmentRecord, error)
	ListAssessmentsByUnit(ctx context.Context, kind model.AssessmentKind, unitKey string, studentIDs []int64) (map[int64]map[string]string, error)
	ListAllAssessments(ctx context.Context, kind model.AssessmentKind, studentIDs []int64) (map[int64]map[string]string, error)
}

type Assessment struct {
	store  AssessmentStore
	roster RosterReader
	log    *zap.SugaredLogger
}

func NewAssessment(store AssessmentStore, roster RosterReader, log *zap.SugaredLogger) *Assessment {
	return &Assessment{store: store, roster: roster, log: log}
}

// UpsertResult records one achievement bucket for a (student, unit, module)
// cell, replacing any previous value. Validation runs before any write.
func (a *Assessment) UpsertResult(ctx context.Context, scope auth.Scope, kind model.AssessmentKind, studentID int64, unitKey, moduleKey, result string) (model.AssessmentRecord, error) {
	if !catalog.ValidUnit(unitKey) {
		return model.AssessmentRecord{}, fmt.Errorf("unit %q: %w", unitKey, apperr.ErrInvalidValue)
	}
	if !catalog.ValidModule(kind, unitKey, moduleKey) {
		return model.AssessmentRecord{}, fmt.Errorf("module %q in %s: %w", moduleKey, unitKey, apperr.ErrInvalidValue)
	}
	if !model.ValidResult(kind, result) {
		return model.AssessmentRecord{}, fmt.Errorf("result %q: %w", result, apperr.ErrInvalidValue)
	}
	st, err := a.roster.GetStudent(ctx, studentID)
	if err != nil {
		return model.AssessmentRecord{}, err
	}
	if !st.Active {
		return model.AssessmentRecord{}, apperr.ErrNotFound
	}
	if !scope.Allows(st.TeamID) {
		return model.AssessmentRecord{}, apperr.ErrForbidden
	}
	return a.store.UpsertAssessment(ctx, kind, model.AssessmentRecord{
		StudentID: studentID,
		UnitKey:   unitKey,
		ModuleKey: moduleKey,
		Result:    result,
	})
}

// MatrixRow is one student line in the per-unit matrix, with a result for
// every module of the unit; unrecorded cells read as "empty".
type MatrixRow struct {
	StudentID  int64             `json:"student_id"`
	Name       string            `json:"name"`
	NationalID string            `json:"national_id"`
	Course     string            `json:"course"`
	TeamID     int64             `json:"team_id"`
	Results    map[string]string `json:"results"`
}

func (a *Assessment) MatrixForUnit(ctx context.Context, scope auth.Scope, kind model.AssessmentKind, unitKey string, teamFilter *int64) ([]MatrixRow, error) {
	if !catalog.ValidUnit(unitKey) {
		return nil, fmt.Errorf("unit %q: %w", unitKey, apperr.ErrInvalidValue)
	}
	scope = scope.Narrow(teamFilter)
	if scope.Empty {
		return []MatrixRow{}, nil
	}
	students, err := a.roster.ListStudents(ctx, scope.TeamID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	stored, err := a.store.ListAssessmentsByUnit(ctx, kind, unitKey, ids)
	if err != nil {
		return nil, err
	}

	modules := catalog.Modules(kind, unitKey)
	rows := make([]MatrixRow, 0, len(students))
	for _, st := range students {
		row := MatrixRow{
			StudentID:  st.ID,
			Name:       st.FirstName + " " + st.LastName,
			NationalID: st.NationalID,
			Course:     st.Course,
			TeamID:     st.TeamID,
			Results:    make(map[string]string, len(modules)),
		}
		for _, mod := range modules {
			result, ok := stored[st.ID][mod.Key]
			if !ok {
				result = model.ResultEmpty
			}
			row.Results[mod.Key] = result
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ExportRow is one flattened (student, unit, module) cell for reporting.
type ExportRow struct {
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
	NationalID  string `json:"national_id"`
	Course      string `json:"course"`
	TeamID      int64  `json:"team_id"`
	UnitKey     string `json:"unit_key"`
	UnitName    string `json:"unit_name"`
	ModuleKey   string `json:"module_key"`
	ModuleName  string `json:"module_name"`
	Result      string `json:"result"`
}

// FlattenForExport produces the full cross product of visible students and
// the catalog, one row per cell, with "empty" where nothing is recorded. All
// stored results come from a single bulk fetch.
func (a *Assessment) FlattenForExport(ctx context.Context, scope auth.Scope, kind model.AssessmentKind, teamFilter *int64) ([]ExportRow, error) {
	scope = scope.Narrow(teamFilter)
	if scope.Empty {
		return []ExportRow{}, nil
	}
	students, err := a.roster.ListStudents(ctx, scope.TeamID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	stored, err := a.store.ListAllAssessments(ctx, kind, ids)
	if err != nil {
		return nil, err
	}

	rows := make([]ExportRow, 0, len(students)*catalog.TotalModules(kind))
	for _, st := range students {
		for _, unit := range catalog.Units() {
			for _, mod := range catalog.Modules(kind, unit.Key) {
				result, ok := stored[st.ID][unit.Key+"/"+mod.Key]
				if !ok {
					result = model.ResultEmpty
				}
				rows = append(rows, ExportRow{
					StudentID:   st.ID,
					StudentName: st.FirstName + " " + st.LastName,
					NationalID:  st.NationalID,
					Course:      st.Course,
					TeamID:      st.TeamID,
					UnitKey:     unit.Key,
					UnitName:    unit.Name,
					ModuleKey:   mod.Key,
					ModuleName:  mod.Name,
					Result:      result,
				})
			}
		}
	}
	return rows, nil
}
