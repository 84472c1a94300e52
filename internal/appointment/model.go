package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled           AppointmentStatus = "scheduled"
	StatusAttachmentPending   AppointmentStatus = "attachment_pending"
	StatusConfirmationPending AppointmentStatus = "confirmation_pending"
	StatusCompleted           AppointmentStatus = "completed"
	StatusCancelled           AppointmentStatus = "cancelled"
)

// IsPlaceholder reports whether the status marks a hold that still needs an
// explicit confirmation before it blocks the slot.
func (s AppointmentStatus) IsPlaceholder() bool {
	return s == StatusAttachmentPending || s == StatusConfirmationPending
}

type BillingType string

const (
	BillingPrivate BillingType = "private"
	BillingInsured BillingType = "insured"
)

// TimeOfDay is a wall clock time without a date, minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// MustTimeOfDay is ParseTimeOfDay for literals.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On places the time of day on the calendar date of d in loc.
func (t TimeOfDay) On(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// Date truncates t to its calendar date, expressed at midnight UTC, which is
// how DATE columns round-trip through pgx.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Weekday numbers days Monday=0 through Sunday=6, the numbering used by
// weekly availability rows and recurring blocks.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// SlotKey identifies a (doctor, date, time) tuple for locking.
func SlotKey(doctorID uuid.UUID, date time.Time, at TimeOfDay) string {
	return fmt.Sprintf("%s:%s:%s", doctorID, date.Format("2006-01-02"), at)
}

type Patient struct {
	ID            uuid.UUID
	NationalID    string
	Name          string
	BirthDate     time.Time
	Phone         string
	Email         *string
	InsuranceCard *string
	Billing       BillingType
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Specialty struct {
	ID                 uuid.UUID
	Name               string
	Active             bool
	RequiresAttachment bool
}

type Location struct {
	ID      uuid.UUID
	Name    string
	Address string
	City    string
	Phone   string
	Active  bool
}

type Doctor struct {
	ID                uuid.UUID
	Name              string
	License           string
	SpecialtyID       uuid.UUID
	Active            bool
	RecurringSchedule bool
	AgendaOpenDate    *time.Time
}

type WeeklyAvailability struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	LocationID      uuid.UUID
	Weekday         int
	StartTime       TimeOfDay
	EndTime         TimeOfDay
	DurationMinutes int
	Active          bool
}

// DoctorAvailability is one availability row joined with its doctor and the
// names needed to describe a slot.
type DoctorAvailability struct {
	Doctor        Doctor
	Availability  WeeklyAvailability
	SpecialtyName string
	LocationName  string
}

// AttachmentKey is where an appointment's referral document is stored,
// relative to the upload bucket or base URL.
func AttachmentKey(id uuid.UUID) string {
	return "attachments/" + id.String()
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	SpecialtyID    uuid.UUID
	LocationID     uuid.UUID
	Date           time.Time
	Time           TimeOfDay
	Status         AppointmentStatus
	AttachmentName *string
	AttachmentPath *string
	CancelReason   *string
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AppointmentDetail carries the display names used when listing a patient's
// appointments.
type AppointmentDetail struct {
	Appointment
	DoctorName    string
	SpecialtyName string
	LocationName  string
}

// RecurringBlock reserves a weekly (doctor, weekday, time) within a date window.
type RecurringBlock struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID *uuid.UUID
	Weekday   int
	Time      TimeOfDay
	StartDate time.Time
	EndDate   *time.Time
	Active    bool
}

// CoversDate reports whether the block is in force on date.
func (b RecurringBlock) CoversDate(date time.Time) bool {
	d := Date(date)
	if !b.Active || Date(b.StartDate).After(d) {
		return false
	}
	return b.EndDate == nil || !Date(*b.EndDate).Before(d)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type NewPatient struct {
	NationalID    string
	Name          string
	BirthDate     time.Time
	Phone         string
	Email         *string
	InsuranceCard *string
	Billing       BillingType
}

type NewAppointment struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	SpecialtyID uuid.UUID
	LocationID  uuid.UUID
	Date        time.Time
	Time        TimeOfDay
	Status      AppointmentStatus
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
