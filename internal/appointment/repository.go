package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrPatientExists       = errors.New("patient already registered")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrSpecialtyNotFound   = errors.New("specialty not found")
	ErrLocationNotFound    = errors.New("location not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDuplicateScheduled  = errors.New("a scheduled appointment already occupies this slot")
)

type PatientRepository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	FindPatientByNationalID(ctx context.Context, nationalID string) (*Patient, error)
	// CreatePatient returns ErrPatientExists when the national id is taken.
	CreatePatient(ctx context.Context, p NewPatient) (*Patient, error)
}

// CatalogRepository covers the read side of locations, specialties, doctors
// and their schedules.
type CatalogRepository interface {
	ListActiveLocations(ctx context.Context) ([]Location, error)
	GetLocationByID(ctx context.Context, id uuid.UUID) (*Location, error)

	ListActiveSpecialties(ctx context.Context) ([]Specialty, error)
	// ListSpecialtiesAtLocation returns active specialties with at least one
	// active doctor holding active availability at the location.
	ListSpecialtiesAtLocation(ctx context.Context, locationID uuid.UUID) ([]Specialty, error)
	GetSpecialtyByID(ctx context.Context, id uuid.UUID) (*Specialty, error)

	ListActiveDoctors(ctx context.Context, specialtyID uuid.UUID) ([]Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	// ListQualifyingAvailability joins active doctors of the specialty with
	// their active availability rows at the location.
	ListQualifyingAvailability(ctx context.Context, specialtyID, locationID uuid.UUID) ([]DoctorAvailability, error)
	ListDoctorAvailability(ctx context.Context, doctorID uuid.UUID, weekday int) ([]WeeklyAvailability, error)
	ListRecurringBlocks(ctx context.Context, doctorID uuid.UUID, weekday int) ([]RecurringBlock, error)
}

type AppointmentRepository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks
	ExistsScheduled(ctx context.Context, doctorID uuid.UUID, date time.Time, at TimeOfDay) (bool, error)

	// Creation and updates. Both return ErrDuplicateScheduled when the write
	// would leave two scheduled rows on the same (doctor, date, time).
	CreateAppointment(ctx context.Context, a NewAppointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, reason string, at time.Time) (*Appointment, error)
	SetAttachment(ctx context.Context, id uuid.UUID, name, path string) (*Appointment, error)

	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error)

	// Reaper
	FindStalePlaceholders(ctx context.Context, before time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repository contains all DB interactions needed by the booking service and
// the dialogue engine.
type Repository interface {
	PatientRepository
	CatalogRepository
	AppointmentRepository
}
