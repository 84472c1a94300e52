package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// DBTX is the subset of *pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DBTX
}

func NewPgRepository(db DBTX) *PgRepository {
	return &PgRepository{db: db}
}

var _ Repository = (*PgRepository)(nil)

// Helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func parseClock(raw string, dst *TimeOfDay) error {
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*dst = t
	return nil
}

const patientColumns = `id, national_id, name, birth_date, phone, email, insurance_card, billing, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.NationalID,
		&p.Name,
		&p.BirthDate,
		&p.Phone,
		&p.Email,
		&p.InsuranceCard,
		&p.Billing,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

const appointmentColumns = `id, patient_id, doctor_id, specialty_id, location_id, appointment_date,
		       to_char(appointment_time, 'HH24:MI'), status, attachment_name, attachment_path,
		       cancel_reason, cancelled_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var at string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.SpecialtyID,
		&a.LocationID,
		&a.Date,
		&at,
		&a.Status,
		&a.AttachmentName,
		&a.AttachmentPath,
		&a.CancelReason,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if err := parseClock(at, &a.Time); err != nil {
		return nil, err
	}

	return &a, nil
}

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Name, &l.Address, &l.City, &l.Phone, &l.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	return &l, nil
}

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.Active, &s.RequiresAttachment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpecialtyNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.License, &d.SpecialtyID, &d.Active, &d.RecurringSchedule, &d.AgendaOpenDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanAvailability(row pgx.Row) (*WeeklyAvailability, error) {
	var w WeeklyAvailability
	var start, end string
	err := row.Scan(&w.ID, &w.DoctorID, &w.LocationID, &w.Weekday, &start, &end, &w.DurationMinutes, &w.Active)
	if err != nil {
		return nil, err
	}
	if err := parseClock(start, &w.StartTime); err != nil {
		return nil, err
	}
	if err := parseClock(end, &w.EndTime); err != nil {
		return nil, err
	}
	return &w, nil
}

// collect drains rows through scan, closing them.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Patients

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) FindPatientByNationalID(ctx context.Context, nationalID string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE national_id = $1
	`, nationalID)
	return scanPatient(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, p NewPatient) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, national_id, name, birth_date, phone, email, insurance_card, billing, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+patientColumns,
		uuid.New(), p.NationalID, p.Name, Date(p.BirthDate), p.Phone, p.Email, p.InsuranceCard, p.Billing)

	created, err := scanPatient(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrPatientExists
		}
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return created, nil
}

// Catalogue

func (r *PgRepository) ListActiveLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, address, city, phone, active
		FROM locations
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLocation)
}

func (r *PgRepository) GetLocationByID(ctx context.Context, id uuid.UUID) (*Location, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, address, city, phone, active
		FROM locations
		WHERE id = $1
	`, id)
	return scanLocation(row)
}

func (r *PgRepository) ListActiveSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, active, requires_attachment
		FROM specialties
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSpecialty)
}

func (r *PgRepository) ListSpecialtiesAtLocation(ctx context.Context, locationID uuid.UUID) ([]Specialty, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT s.id, s.name, s.active, s.requires_attachment
		FROM specialties s
		JOIN doctors d ON d.specialty_id = s.id AND d.active
		JOIN weekly_availability w ON w.doctor_id = d.id AND w.active
		WHERE s.active
		  AND w.location_id = $1
		ORDER BY s.name
	`, locationID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSpecialty)
}

func (r *PgRepository) GetSpecialtyByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, active, requires_attachment
		FROM specialties
		WHERE id = $1
	`, id)
	return scanSpecialty(row)
}

func (r *PgRepository) ListActiveDoctors(ctx context.Context, specialtyID uuid.UUID) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, license, specialty_id, active, recurring_schedule, agenda_open_date
		FROM doctors
		WHERE active
		  AND specialty_id = $1
		ORDER BY name
	`, specialtyID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDoctor)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, license, specialty_id, active, recurring_schedule, agenda_open_date
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListQualifyingAvailability(ctx context.Context, specialtyID, locationID uuid.UUID) ([]DoctorAvailability, error) {
	rows, err := r.db.Query(ctx, `
		SELECT d.id, d.name, d.license, d.specialty_id, d.active, d.recurring_schedule, d.agenda_open_date,
		       w.id, w.doctor_id, w.location_id, w.weekday,
		       to_char(w.start_time, 'HH24:MI'), to_char(w.end_time, 'HH24:MI'),
		       w.duration_minutes, w.active,
		       s.name, l.name
		FROM doctors d
		JOIN weekly_availability w ON w.doctor_id = d.id
		JOIN specialties s ON s.id = d.specialty_id
		JOIN locations l ON l.id = w.location_id
		WHERE d.active
		  AND w.active
		  AND d.specialty_id = $1
		  AND w.location_id = $2
		ORDER BY d.name, w.weekday, w.start_time
	`, specialtyID, locationID)
	if err != nil {
		return nil, err
	}

	return collect(rows, func(row pgx.Row) (*DoctorAvailability, error) {
		var da DoctorAvailability
		var start, end string
		err := row.Scan(
			&da.Doctor.ID, &da.Doctor.Name, &da.Doctor.License, &da.Doctor.SpecialtyID,
			&da.Doctor.Active, &da.Doctor.RecurringSchedule, &da.Doctor.AgendaOpenDate,
			&da.Availability.ID, &da.Availability.DoctorID, &da.Availability.LocationID, &da.Availability.Weekday,
			&start, &end,
			&da.Availability.DurationMinutes, &da.Availability.Active,
			&da.SpecialtyName, &da.LocationName,
		)
		if err != nil {
			return nil, err
		}
		if err := parseClock(start, &da.Availability.StartTime); err != nil {
			return nil, err
		}
		if err := parseClock(end, &da.Availability.EndTime); err != nil {
			return nil, err
		}
		return &da, nil
	})
}

func (r *PgRepository) ListDoctorAvailability(ctx context.Context, doctorID uuid.UUID, weekday int) ([]WeeklyAvailability, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, location_id, weekday,
		       to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
		       duration_minutes, active
		FROM weekly_availability
		WHERE doctor_id = $1
		  AND weekday = $2
		  AND active
	`, doctorID, weekday)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAvailability)
}

func (r *PgRepository) ListRecurringBlocks(ctx context.Context, doctorID uuid.UUID, weekday int) ([]RecurringBlock, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, patient_id, weekday, to_char(block_time, 'HH24:MI'), start_date, end_date, active
		FROM recurring_blocks
		WHERE doctor_id = $1
		  AND weekday = $2
		  AND active
	`, doctorID, weekday)
	if err != nil {
		return nil, err
	}

	return collect(rows, func(row pgx.Row) (*RecurringBlock, error) {
		var b RecurringBlock
		var at string
		if err := row.Scan(&b.ID, &b.DoctorID, &b.PatientID, &b.Weekday, &at, &b.StartDate, &b.EndDate, &b.Active); err != nil {
			return nil, err
		}
		if err := parseClock(at, &b.Time); err != nil {
			return nil, err
		}
		return &b, nil
	})
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ExistsScheduled(ctx context.Context, doctorID uuid.UUID, date time.Time, at TimeOfDay) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND appointment_time = $3::time
			  AND status = 'scheduled'
		)
	`, doctorID, Date(date), at.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check scheduled appointment: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a NewAppointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, specialty_id, location_id,
		                          appointment_date, appointment_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::time, $8, now(), now())
		RETURNING `+appointmentColumns,
		uuid.New(), a.PatientID, a.DoctorID, a.SpecialtyID, a.LocationID, Date(a.Date), a.Time.String(), a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateScheduled
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	updated, err := scanAppointment(row)
	if err != nil && isUniqueViolation(err) {
		return nil, ErrDuplicateScheduled
	}
	return updated, err
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, reason string, at time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancel_reason = $3,
		    cancelled_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns,
		id, from, reason, at)
	return scanAppointment(row)
}

func (r *PgRepository) SetAttachment(ctx context.Context, id uuid.UUID, name, path string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET attachment_name = $2,
		    attachment_path = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, name, path)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.patient_id, a.doctor_id, a.specialty_id, a.location_id, a.appointment_date,
		       to_char(a.appointment_time, 'HH24:MI'), a.status, a.attachment_name, a.attachment_path,
		       a.cancel_reason, a.cancelled_at, a.created_at, a.updated_at,
		       d.name, s.name, l.name
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN specialties s ON s.id = a.specialty_id
		JOIN locations l ON l.id = a.location_id
		WHERE a.patient_id = $1
		ORDER BY a.appointment_date, a.appointment_time
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}

	return collect(rows, func(row pgx.Row) (*AppointmentDetail, error) {
		var d AppointmentDetail
		var at string
		err := row.Scan(
			&d.ID, &d.PatientID, &d.DoctorID, &d.SpecialtyID, &d.LocationID, &d.Date,
			&at, &d.Status, &d.AttachmentName, &d.AttachmentPath,
			&d.CancelReason, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt,
			&d.DoctorName, &d.SpecialtyName, &d.LocationName,
		)
		if err != nil {
			return nil, err
		}
		if err := parseClock(at, &d.Time); err != nil {
			return nil, err
		}
		return &d, nil
	})
}

func (r *PgRepository) FindStalePlaceholders(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('attachment_pending', 'confirmation_pending')
		  AND updated_at < $1
	`, before)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
