package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tutoria/server/internal/model"
)

// attendanceTables maps the entity kind to its weekly table. Both tables
// share the same column shape apart from the FK name.
type attendanceTable struct {
	name string
	fk   string
}

var attendanceTables = map[model.EntityKind]attendanceTable{
	model.EntityStudents: {name: "student_attendance", fk: "student_id"},
	model.EntityTutors:   {name: "tutor_attendance", fk: "tutor_id"},
}

func scanAttendance(row interface{ Scan(...any) error }) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := row.Scan(
		&rec.ID,
		&rec.EntityID,
		&rec.WeekKey,
		&rec.Status,
		&rec.MonthLabel,
		&rec.DateRange,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

// UpsertAttendance writes one weekly slot. The unique (entity, week_key)
// index makes concurrent writes last-write-wins without a read first.
func (s *Store) UpsertAttendance(ctx context.Context, kind model.EntityKind, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	t := attendanceTables[kind]
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, week_key, status, month_label, date_range)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (%[2]s, week_key)
		DO UPDATE SET status = EXCLUDED.status,
		              month_label = EXCLUDED.month_label,
		              date_range = EXCLUDED.date_range,
		              updated_at = now()
		RETURNING id, %[2]s, week_key, status, month_label, date_range, created_at, updated_at
	`, t.name, t.fk), rec.EntityID, rec.WeekKey, rec.Status, rec.MonthLabel, rec.DateRange)
	saved, err := scanAttendance(row)
	return saved, wrapErr(err)
}

// DeleteAttendance removes one weekly slot. Deleting a slot that does not
// exist is not an error; the second return reports whether a row went away.
func (s *Store) DeleteAttendance(ctx context.Context, kind model.EntityKind, entityID int64, weekKey string) (bool, error) {
	t := attendanceTables[kind]
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE %s = $1 AND week_key = $2
	`, t.name, t.fk), entityID, weekKey)
	if err != nil {
		return false, wrapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListAttendance(ctx context.Context, kind model.EntityKind, entityID int64) ([]model.AttendanceRecord, error) {
	t := attendanceTables[kind]
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, %[2]s, week_key, status, month_label, date_range, created_at, updated_at
		FROM %[1]s
		WHERE %[2]s = $1
	`, t.name, t.fk), entityID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	records := []model.AttendanceRecord{}
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		records = append(records, rec)
	}
	return records, wrapErr(rows.Err())
}

// ListAttendanceByEntities bulk-fetches weekly records for a roster page in
// one query, keyed by entity id.
func (s *Store) ListAttendanceByEntities(ctx context.Context, kind model.EntityKind, entityIDs []int64) (map[int64][]model.AttendanceRecord, error) {
	t := attendanceTables[kind]
	byEntity := map[int64][]model.AttendanceRecord{}
	if len(entityIDs) == 0 {
		return byEntity, nil
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, %[2]s, week_key, status, month_label, date_range, created_at, updated_at
		FROM %[1]s
		WHERE %[2]s = ANY($1)
	`, t.name, t.fk), entityIDs)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, wrapErr(err)
		}
		byEntity[rec.EntityID] = append(byEntity[rec.EntityID], rec)
	}
	return byEntity, wrapErr(rows.Err())
}

// InitializeAttendance inserts the given default slots, skipping week keys
// that already hold a record. Returns how many rows were created.
func (s *Store) InitializeAttendance(ctx context.Context, kind model.EntityKind, records []model.AttendanceRecord) (int, error) {
	t := attendanceTables[kind]
	if len(records) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s, week_key, status, month_label, date_range)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (%[2]s, week_key) DO NOTHING
		`, t.name, t.fk), rec.EntityID, rec.WeekKey, rec.Status, rec.MonthLabel, rec.DateRange)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return inserted, wrapErr(err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
