package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, service_id, room_id, professional_ids, start_time, end_time,
	status, price_cents, currency, payment_method, notes, created_at, updated_at`

const draftColumns = `id, patient_id, replace_existing, result, status, created_at, updated_at, expires_at`

// Helpers

func scanAppointment(row pgx.Row) (*schedule.Appointment, error) {
	var a schedule.Appointment
	var roomID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ServiceID,
		&roomID,
		&a.ProfessionalIDs,
		&a.Start,
		&a.End,
		&a.Status,
		&a.PriceCents,
		&a.Currency,
		&a.PaymentMethod,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.RoomID = roomID
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]schedule.Appointment, error) {
	defer rows.Close()

	var result []schedule.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func scanDraft(row pgx.Row) (*AutoScheduleDraft, error) {
	var d AutoScheduleDraft
	var raw []byte

	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.ReplaceExisting,
		&raw,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(raw, &d.Result); err != nil {
		return nil, fmt.Errorf("decode draft result: %w", err)
	}
	return &d, nil
}

// Interface methods

func (r *PgRepository) GetCatalog(ctx context.Context) (schedule.Catalog, error) {
	var c schedule.Catalog

	rows, err := r.pool.Query(ctx, `SELECT id, name FROM rooms ORDER BY id`)
	if err != nil {
		return c, fmt.Errorf("list rooms: %w", err)
	}
	for rows.Next() {
		var room schedule.Room
		if err := rows.Scan(&room.ID, &room.Name); err != nil {
			rows.Close()
			return c, err
		}
		c.Rooms = append(c.Rooms, room)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return c, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, name, default_duration_minutes, default_price_cents
		FROM services
		ORDER BY name
	`)
	if err != nil {
		return c, fmt.Errorf("list services: %w", err)
	}
	for rows.Next() {
		var s schedule.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DefaultDurationMinutes, &s.DefaultPriceCents); err != nil {
			rows.Close()
			return c, err
		}
		c.Services = append(c.Services, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return c, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT p.id, p.name,
		       COALESCE(array_agg(ps.service_id) FILTER (WHERE ps.service_id IS NOT NULL), '{}')
		FROM professionals p
		LEFT JOIN professional_services ps ON ps.professional_id = p.id
		GROUP BY p.id, p.name
		ORDER BY p.id
	`)
	if err != nil {
		return c, fmt.Errorf("list professionals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p schedule.Professional
		if err := rows.Scan(&p.ID, &p.Name, &p.ServiceIDs); err != nil {
			return c, err
		}
		c.Professionals = append(c.Professionals, p)
	}

	return c, rows.Err()
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*schedule.Patient, error) {
	var p schedule.Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, dni, birthdate, guardians
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.DNI, &p.Birthdate, &p.Guardians)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) ListRequiredServices(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT service_id
		FROM patient_required_services
		WHERE patient_id = $1
		ORDER BY position, service_id
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]schedule.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time < $2
		  AND end_time > $1
		ORDER BY start_time, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]schedule.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time, id
	`, patientID)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListOverlapping(ctx context.Context, start, end time.Time, roomID *uuid.UUID, professionalIDs []uuid.UUID) ([]schedule.Appointment, error) {
	if professionalIDs == nil {
		professionalIDs = []uuid.UUID{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status <> 'cancelled'
		  AND start_time < $2
		  AND end_time > $1
		  AND (($3::uuid IS NOT NULL AND room_id = $3) OR professional_ids && $4::uuid[])
		ORDER BY start_time, id
	`, start, end, roomID, professionalIDs)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertAppointment(ctx context.Context, q rowQuerier, a schedule.Appointment) (*schedule.Appointment, error) {
	id := uuid.New()

	row := q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, service_id, room_id, professional_ids, start_time, end_time,
		                          status, price_cents, currency, payment_method, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+appointmentColumns,
		id, a.PatientID, a.ServiceID, a.RoomID, nonNilIDs(a.ProfessionalIDs), a.Start, a.End,
		a.Status, a.PriceCents, a.Currency, a.PaymentMethod, a.Notes)

	created, err := scanAppointment(row)
	if db.IsForeignKeyViolation(err) {
		return nil, &schedule.ValidationError{Field: "appointment", Message: "references an unknown patient, service or room"}
	}
	return created, err
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a schedule.Appointment) (*schedule.Appointment, error) {
	return insertAppointment(ctx, r.pool, a)
}

// ReplaceAppointments cancels the given bookings and inserts a in one
// transaction. Every id must still be active.
func (r *PgRepository) ReplaceAppointments(ctx context.Context, cancel []uuid.UUID, a schedule.Appointment) (*schedule.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(cancel) > 0 {
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2, updated_at = now()
			WHERE id = ANY($1) AND status <> $2
		`, cancel, schedule.StatusCancelled)
		if err != nil {
			return nil, fmt.Errorf("cancel replaced appointments: %w", err)
		}
		if tag.RowsAffected() != int64(len(cancel)) {
			return nil, ErrAppointmentNotFound
		}
	}

	created, err := insertAppointment(ctx, tx, a)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a schedule.Appointment) (*schedule.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET room_id = $2,
		    professional_ids = $3,
		    start_time = $4,
		    end_time = $5,
		    status = $6,
		    price_cents = $7,
		    currency = $8,
		    payment_method = $9,
		    notes = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, a.RoomID, nonNilIDs(a.ProfessionalIDs), a.Start, a.End,
		a.Status, a.PriceCents, a.Currency, a.PaymentMethod, a.Notes)

	updated, err := scanAppointment(row)
	if db.IsForeignKeyViolation(err) {
		return nil, &schedule.ValidationError{Field: "room_id", Message: "unknown room"}
	}
	return updated, err
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) CreateDraft(ctx context.Context, d AutoScheduleDraft) (*AutoScheduleDraft, error) {
	raw, err := json.Marshal(d.Result)
	if err != nil {
		return nil, fmt.Errorf("encode draft result: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO autoschedule_drafts (id, patient_id, replace_existing, result, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, now(), now(), $6)
		RETURNING `+draftColumns,
		uuid.New(), d.PatientID, d.ReplaceExisting, raw, d.Status, d.ExpiresAt)

	return scanDraft(row)
}

func (r *PgRepository) GetPendingDraft(ctx context.Context, patientID uuid.UUID) (*AutoScheduleDraft, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+draftColumns+`
		FROM autoschedule_drafts
		WHERE patient_id = $1 AND status = 'pending'
	`, patientID)
	return scanDraft(row)
}

func (r *PgRepository) UpdateDraftStatus(ctx context.Context, id uuid.UUID, from, to DraftStatus) (*AutoScheduleDraft, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE autoschedule_drafts
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+draftColumns,
		id, to, from)

	return scanDraft(row)
}

func (r *PgRepository) FindExpiredDrafts(ctx context.Context, now time.Time) ([]AutoScheduleDraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+draftColumns+`
		FROM autoschedule_drafts
		WHERE status = 'pending'
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AutoScheduleDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// FetchUnpublishedEvents and MarkEventsPublished make the repository an
// events.Source for the Kafka relay.
func (r *PgRepository) FetchUnpublishedEvents(ctx context.Context, limit int) ([]events.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, COALESCE(payload, 'null'::jsonb), created_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Record
	for rows.Next() {
		var rec events.Record
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.AppointmentID, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PgRepository) MarkEventsPublished(ctx context.Context, ids []int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE event_logs
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
