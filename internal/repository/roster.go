package repository

import (
	"context"
	"fmt"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/model"
)

// Schools

func (s *Store) CreateSchool(ctx context.Context, name, comuna string) (model.School, error) {
	var sch model.School
	row := s.pool.QueryRow(ctx, `
		INSERT INTO schools (name, comuna)
		VALUES ($1, $2)
		RETURNING id, name, comuna, created_at, updated_at
	`, name, comuna)
	err := row.Scan(&sch.ID, &sch.Name, &sch.Comuna, &sch.CreatedAt, &sch.UpdatedAt)
	return sch, wrapErr(err)
}

func (s *Store) GetSchool(ctx context.Context, id int64) (model.School, error) {
	var sch model.School
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, comuna, created_at, updated_at
		FROM schools
		WHERE id = $1
	`, id)
	err := row.Scan(&sch.ID, &sch.Name, &sch.Comuna, &sch.CreatedAt, &sch.UpdatedAt)
	return sch, wrapErr(err)
}

func (s *Store) ListSchools(ctx context.Context) ([]model.School, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, comuna, created_at, updated_at
		FROM schools
		ORDER BY name
	`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	schools := []model.School{}
	for rows.Next() {
		var sch model.School
		if err := rows.Scan(&sch.ID, &sch.Name, &sch.Comuna, &sch.CreatedAt, &sch.UpdatedAt); err != nil {
			return nil, wrapErr(err)
		}
		schools = append(schools, sch)
	}
	return schools, wrapErr(rows.Err())
}

func (s *Store) UpdateSchool(ctx context.Context, id int64, name, comuna string) (model.School, error) {
	var sch model.School
	row := s.pool.QueryRow(ctx, `
		UPDATE schools
		SET name = $1, comuna = $2, updated_at = now()
		WHERE id = $3
		RETURNING id, name, comuna, created_at, updated_at
	`, name, comuna, id)
	err := row.Scan(&sch.ID, &sch.Name, &sch.Comuna, &sch.CreatedAt, &sch.UpdatedAt)
	return sch, wrapErr(err)
}

func (s *Store) DeleteSchool(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM schools WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Teams

func (s *Store) CreateTeam(ctx context.Context, name string, description *string, schoolID *int64) (model.Team, error) {
	var t model.Team
	row := s.pool.QueryRow(ctx, `
		INSERT INTO teams (name, description, school_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, school_id, created_at, updated_at
	`, name, description, schoolID)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.SchoolID, &t.CreatedAt, &t.UpdatedAt)
	return t, wrapErr(err)
}

func (s *Store) GetTeam(ctx context.Context, id int64) (model.TeamWithSchool, error) {
	var t model.TeamWithSchool
	row := s.pool.QueryRow(ctx, `
		SELECT t.id, t.name, t.description, t.school_id, t.created_at, t.updated_at, s.name
		FROM teams t
		LEFT JOIN schools s ON s.id = t.school_id
		WHERE t.id = $1
	`, id)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.SchoolID, &t.CreatedAt, &t.UpdatedAt, &t.SchoolName)
	return t, wrapErr(err)
}

func (s *Store) ListTeams(ctx context.Context) ([]model.TeamWithSchool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.name, t.description, t.school_id, t.created_at, t.updated_at, s.name
		FROM teams t
		LEFT JOIN schools s ON s.id = t.school_id
		ORDER BY t.name
	`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	teams := []model.TeamWithSchool{}
	for rows.Next() {
		var t model.TeamWithSchool
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.SchoolID, &t.CreatedAt, &t.UpdatedAt, &t.SchoolName); err != nil {
			return nil, wrapErr(err)
		}
		teams = append(teams, t)
	}
	return teams, wrapErr(rows.Err())
}

func (s *Store) TeamExists(ctx context.Context, id int64) bool {
	return exists(ctx, s.pool, `SELECT 1 FROM teams WHERE id = $1`, id)
}

// Students

const studentColumns = `id, national_id, first_name, last_name, course, team_id,
	guardian_name, guardian_contact, notes, active, deactivation_reason,
	created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (model.Student, error) {
	var st model.Student
	err := row.Scan(
		&st.ID,
		&st.NationalID,
		&st.FirstName,
		&st.LastName,
		&st.Course,
		&st.TeamID,
		&st.GuardianName,
		&st.GuardianContact,
		&st.Notes,
		&st.Active,
		&st.DeactivationReason,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	return st, err
}

func (s *Store) CreateStudent(ctx context.Context, st model.Student) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO students (national_id, first_name, last_name, course, team_id, guardian_name, guardian_contact, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+studentColumns+`
	`, st.NationalID, st.FirstName, st.LastName, st.Course, st.TeamID, st.GuardianName, st.GuardianContact, st.Notes)
	created, err := scanStudent(row)
	return created, wrapErr(err)
}

func (s *Store) GetStudent(ctx context.Context, id int64) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE id = $1
	`, id)
	st, err := scanStudent(row)
	return st, wrapErr(err)
}

// ListStudents returns active students, optionally restricted to one team.
// A nil teamID means no team filter.
func (s *Store) ListStudents(ctx context.Context, teamID *int64) ([]model.Student, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE active AND ($1::bigint IS NULL OR team_id = $1)
		ORDER BY last_name, first_name
	`, teamID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		students = append(students, st)
	}
	return students, wrapErr(rows.Err())
}

func (s *Store) UpdateStudent(ctx context.Context, st model.Student) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE students
		SET national_id = $1, first_name = $2, last_name = $3, course = $4,
		    team_id = $5, guardian_name = $6, guardian_contact = $7, notes = $8,
		    updated_at = now()
		WHERE id = $9
		RETURNING `+studentColumns+`
	`, st.NationalID, st.FirstName, st.LastName, st.Course, st.TeamID, st.GuardianName, st.GuardianContact, st.Notes, st.ID)
	updated, err := scanStudent(row)
	return updated, wrapErr(err)
}

func (s *Store) DeactivateStudent(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE students
		SET active = FALSE, deactivation_reason = $1, updated_at = now()
		WHERE id = $2
	`, reason, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// PurgeStudent removes a student and all dependent attendance and assessment
// rows in one transaction.
func (s *Store) PurgeStudent(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapErr(err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"student_attendance", "diagnostic_results", "ticket_results"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE student_id = $1`, table), id); err != nil {
			return wrapErr(err)
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return wrapErr(tx.Commit(ctx))
}

func (s *Store) StudentExists(ctx context.Context, id int64) bool {
	return exists(ctx, s.pool, `SELECT 1 FROM students WHERE id = $1 AND active`, id)
}

// Tutors

const tutorColumns = `id, first_name, last_name, email, team_id, active,
	deactivation_reason, created_at, updated_at`

func scanTutor(row interface{ Scan(...any) error }) (model.Tutor, error) {
	var t model.Tutor
	err := row.Scan(
		&t.ID,
		&t.FirstName,
		&t.LastName,
		&t.Email,
		&t.TeamID,
		&t.Active,
		&t.DeactivationReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func (s *Store) CreateTutor(ctx context.Context, t model.Tutor) (model.Tutor, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tutors (first_name, last_name, email, team_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+tutorColumns+`
	`, t.FirstName, t.LastName, t.Email, t.TeamID)
	created, err := scanTutor(row)
	return created, wrapErr(err)
}

func (s *Store) GetTutor(ctx context.Context, id int64) (model.Tutor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tutorColumns+`
		FROM tutors
		WHERE id = $1
	`, id)
	t, err := scanTutor(row)
	return t, wrapErr(err)
}

func (s *Store) ListTutors(ctx context.Context, teamID *int64) ([]model.Tutor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tutorColumns+`
		FROM tutors
		WHERE active AND ($1::bigint IS NULL OR team_id = $1)
		ORDER BY last_name, first_name
	`, teamID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	tutors := []model.Tutor{}
	for rows.Next() {
		t, err := scanTutor(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		tutors = append(tutors, t)
	}
	return tutors, wrapErr(rows.Err())
}

func (s *Store) UpdateTutor(ctx context.Context, t model.Tutor) (model.Tutor, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tutors
		SET first_name = $1, last_name = $2, email = $3, team_id = $4, updated_at = now()
		WHERE id = $5
		RETURNING `+tutorColumns+`
	`, t.FirstName, t.LastName, t.Email, t.TeamID, t.ID)
	updated, err := scanTutor(row)
	return updated, wrapErr(err)
}

func (s *Store) DeactivateTutor(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tutors
		SET active = FALSE, deactivation_reason = $1, updated_at = now()
		WHERE id = $2
	`, reason, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) PurgeTutor(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapErr(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tutor_attendance WHERE tutor_id = $1`, id); err != nil {
		return wrapErr(err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM tutors WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return wrapErr(tx.Commit(ctx))
}

func (s *Store) TutorExists(ctx context.Context, id int64) bool {
	return exists(ctx, s.pool, `SELECT 1 FROM tutors WHERE id = $1 AND active`, id)
}
