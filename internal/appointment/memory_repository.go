package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by the memory storage
// backend and by tests. It enforces the same uniqueness rules as the schema.
type MemoryRepository struct {
	mu sync.RWMutex

	patients     map[uuid.UUID]Patient
	locations    map[uuid.UUID]Location
	specialties  map[uuid.UUID]Specialty
	doctors      map[uuid.UUID]Doctor
	availability map[uuid.UUID]WeeklyAvailability
	blocks       map[uuid.UUID]RecurringBlock
	appointments map[uuid.UUID]Appointment
	events       []EventLog
	nextEventID  int64
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		locations:    make(map[uuid.UUID]Location),
		specialties:  make(map[uuid.UUID]Specialty),
		doctors:      make(map[uuid.UUID]Doctor),
		availability: make(map[uuid.UUID]WeeklyAvailability),
		blocks:       make(map[uuid.UUID]RecurringBlock),
		appointments: make(map[uuid.UUID]Appointment),
		now:          time.Now,
	}
}

var _ Repository = (*MemoryRepository)(nil)

// Seeding helpers. Zero IDs are replaced with fresh ones.

func (m *MemoryRepository) AddLocation(l Location) Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.locations[l.ID] = l
	return l
}

func (m *MemoryRepository) AddSpecialty(s Specialty) Specialty {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.specialties[s.ID] = s
	return s
}

func (m *MemoryRepository) AddDoctor(d Doctor) Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.doctors[d.ID] = d
	return d
}

func (m *MemoryRepository) AddAvailability(w WeeklyAvailability) WeeklyAvailability {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	m.availability[w.ID] = w
	return w
}

func (m *MemoryRepository) AddRecurringBlock(b RecurringBlock) RecurringBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.blocks[b.ID] = b
	return b
}

// PutAppointment stores a as-is, bypassing uniqueness checks.
func (m *MemoryRepository) PutAppointment(a Appointment) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Date = Date(a.Date)
	m.appointments[a.ID] = a
	return a
}

// Appointments returns a snapshot of every stored appointment.
func (m *MemoryRepository) Appointments() []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Appointment, 0, len(m.appointments))
	for _, a := range m.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Patients

func (m *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) FindPatientByNationalID(_ context.Context, nationalID string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patients {
		if p.NationalID == nationalID {
			return &p, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *MemoryRepository) CreatePatient(_ context.Context, np NewPatient) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.NationalID == np.NationalID {
			return nil, ErrPatientExists
		}
	}
	now := m.now()
	p := Patient{
		ID:            uuid.New(),
		NationalID:    np.NationalID,
		Name:          np.Name,
		BirthDate:     Date(np.BirthDate),
		Phone:         np.Phone,
		Email:         np.Email,
		InsuranceCard: np.InsuranceCard,
		Billing:       np.Billing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.patients[p.ID] = p
	return &p, nil
}

// Catalogue

func (m *MemoryRepository) ListActiveLocations(_ context.Context) ([]Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Location
	for _, l := range m.locations {
		if l.Active {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRepository) GetLocationByID(_ context.Context, id uuid.UUID) (*Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}
	return &l, nil
}

func (m *MemoryRepository) ListActiveSpecialties(_ context.Context) ([]Specialty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Specialty
	for _, s := range m.specialties {
		if s.Active {
			out = append(out, s)
		}
	}
	sortSpecialties(out)
	return out, nil
}

func (m *MemoryRepository) ListSpecialtiesAtLocation(_ context.Context, locationID uuid.UUID) ([]Specialty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[uuid.UUID]bool)
	var out []Specialty
	for _, w := range m.availability {
		if !w.Active || w.LocationID != locationID {
			continue
		}
		d, ok := m.doctors[w.DoctorID]
		if !ok || !d.Active {
			continue
		}
		s, ok := m.specialties[d.SpecialtyID]
		if !ok || !s.Active || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	sortSpecialties(out)
	return out, nil
}

func sortSpecialties(s []Specialty) {
	sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
}

func (m *MemoryRepository) GetSpecialtyByID(_ context.Context, id uuid.UUID) (*Specialty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.specialties[id]
	if !ok {
		return nil, ErrSpecialtyNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) ListActiveDoctors(_ context.Context, specialtyID uuid.UUID) ([]Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Doctor
	for _, d := range m.doctors {
		if d.Active && d.SpecialtyID == specialtyID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryRepository) ListQualifyingAvailability(_ context.Context, specialtyID, locationID uuid.UUID) ([]DoctorAvailability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []DoctorAvailability
	for _, w := range m.availability {
		if !w.Active || w.LocationID != locationID {
			continue
		}
		d, ok := m.doctors[w.DoctorID]
		if !ok || !d.Active || d.SpecialtyID != specialtyID {
			continue
		}
		out = append(out, DoctorAvailability{
			Doctor:        d,
			Availability:  w,
			SpecialtyName: m.specialties[d.SpecialtyID].Name,
			LocationName:  m.locations[w.LocationID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Doctor.Name != b.Doctor.Name {
			return a.Doctor.Name < b.Doctor.Name
		}
		if a.Availability.Weekday != b.Availability.Weekday {
			return a.Availability.Weekday < b.Availability.Weekday
		}
		return a.Availability.StartTime.Minutes() < b.Availability.StartTime.Minutes()
	})
	return out, nil
}

func (m *MemoryRepository) ListDoctorAvailability(_ context.Context, doctorID uuid.UUID, weekday int) ([]WeeklyAvailability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []WeeklyAvailability
	for _, w := range m.availability {
		if w.Active && w.DoctorID == doctorID && w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ListRecurringBlocks(_ context.Context, doctorID uuid.UUID, weekday int) ([]RecurringBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RecurringBlock
	for _, b := range m.blocks {
		if b.Active && b.DoctorID == doctorID && b.Weekday == weekday {
			out = append(out, b)
		}
	}
	return out, nil
}

// Appointments

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) ExistsScheduled(_ context.Context, doctorID uuid.UUID, date time.Time, at TimeOfDay) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scheduledLocked(doctorID, date, at, uuid.Nil), nil
}

func (m *MemoryRepository) scheduledLocked(doctorID uuid.UUID, date time.Time, at TimeOfDay, except uuid.UUID) bool {
	d := Date(date)
	for _, a := range m.appointments {
		if a.ID != except && a.Status == StatusScheduled && a.DoctorID == doctorID && a.Date.Equal(d) && a.Time == at {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) CreateAppointment(_ context.Context, na NewAppointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if na.Status == StatusScheduled && m.scheduledLocked(na.DoctorID, na.Date, na.Time, uuid.Nil) {
		return nil, ErrDuplicateScheduled
	}
	now := m.now()
	a := Appointment{
		ID:          uuid.New(),
		PatientID:   na.PatientID,
		DoctorID:    na.DoctorID,
		SpecialtyID: na.SpecialtyID,
		LocationID:  na.LocationID,
		Date:        Date(na.Date),
		Time:        na.Time,
		Status:      na.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	if to == StatusScheduled && m.scheduledLocked(a.DoctorID, a.Date, a.Time, a.ID) {
		return nil, ErrDuplicateScheduled
	}
	a.Status = to
	a.UpdatedAt = m.now()
	m.appointments[id] = a
	return &a, nil
}

func (m *MemoryRepository) CancelAppointment(_ context.Context, id uuid.UUID, from AppointmentStatus, reason string, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCancelled
	a.CancelReason = &reason
	a.CancelledAt = &at
	a.UpdatedAt = m.now()
	m.appointments[id] = a
	return &a, nil
}

func (m *MemoryRepository) SetAttachment(_ context.Context, id uuid.UUID, name, path string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.AttachmentName = &name
	a.AttachmentPath = &path
	a.UpdatedAt = m.now()
	m.appointments[id] = a
	return &a, nil
}

func (m *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AppointmentDetail
	for _, a := range m.appointments {
		if a.PatientID != patientID {
			continue
		}
		out = append(out, AppointmentDetail{
			Appointment:   a,
			DoctorName:    m.doctors[a.DoctorID].Name,
			SpecialtyName: m.specialties[a.SpecialtyID].Name,
			LocationName:  m.locations[a.LocationID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time.Minutes() < out[j].Time.Minutes()
	})
	return out, nil
}

func (m *MemoryRepository) FindStalePlaceholders(_ context.Context, before time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.Status.IsPlaceholder() && a.UpdatedAt.Before(before) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	ev.ID = m.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	m.events = append(m.events, ev)
	return nil
}

// EventTypes lists the logged event types in insertion order.
func (m *MemoryRepository) EventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.EventType)
	}
	return out
}
