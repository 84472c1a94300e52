// Package slots computes bookable appointment slots from weekly doctor
// availability and resolves a patient's free-text pick among them.
package slots

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
)

const (
	MaxSlots        = 5
	HorizonDays     = 50
	LeadTime        = time.Hour
	DefaultDuration = 30
	MinDuration     = 5

	thursday = 3
)

var weekdayNames = [7]string{"Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado", "Domingo"}

// WeekdayName returns the Portuguese day name for a Monday=0 weekday.
func WeekdayName(weekday int) string {
	if weekday < 0 || weekday > 6 {
		return ""
	}
	return weekdayNames[weekday]
}

// Slot is a concrete bookable (doctor, date, time) offered to the patient.
type Slot struct {
	DoctorID        uuid.UUID             `json:"doctor_id"`
	DoctorName      string                `json:"doctor_name"`
	DoctorLicense   string                `json:"doctor_license"`
	SpecialtyName   string                `json:"specialty_name"`
	LocationID      uuid.UUID             `json:"location_id"`
	LocationName    string                `json:"location_name"`
	Date            time.Time             `json:"date"`
	DateFormatted   string                `json:"date_formatted"`
	Time            appointment.TimeOfDay `json:"time"`
	Weekday         string                `json:"weekday"`
	DurationMinutes int                   `json:"duration_minutes"`
	Timestamp       int64                 `json:"timestamp"`
}

// Source is the persistence the generator reads.
type Source interface {
	ListQualifyingAvailability(ctx context.Context, specialtyID, locationID uuid.UUID) ([]appointment.DoctorAvailability, error)
	ExistsScheduled(ctx context.Context, doctorID uuid.UUID, date time.Time, at appointment.TimeOfDay) (bool, error)
}

type Generator struct {
	source  Source
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.SchedulingMetrics
}

// NewGenerator builds a generator evaluating dates in the clinic's time zone.
func NewGenerator(source Source, loc *time.Location, logger *slog.Logger, m *metrics.SchedulingMetrics) *Generator {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		source:  source,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
		metrics: m,
	}
}

// WithClock replaces the generator clock; used by tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate returns up to MaxSlots slots for the pair. Any failure is logged
// and reported as an empty list.
func (g *Generator) Generate(ctx context.Context, specialtyID, locationID uuid.UUID) []Slot {
	started := time.Now()

	rows, err := g.source.ListQualifyingAvailability(ctx, specialtyID, locationID)
	if err != nil {
		g.logger.Error("slot generation failed", "stage", "availability", "specialty_id", specialtyID, "location_id", locationID, "error", err)
		g.metrics.ObserveSlotGeneration(time.Since(started).Seconds(), 0)
		return nil
	}

	found, err := g.FromRows(ctx, rows)
	if err != nil {
		g.logger.Error("slot generation failed", "stage", "scan", "specialty_id", specialtyID, "location_id", locationID, "error", err)
		found = nil
	}

	g.metrics.ObserveSlotGeneration(time.Since(started).Seconds(), len(found))
	return found
}

// FromRows scans the next HorizonDays weekdays day by day, and within each
// day the rows in order, keeping the first MaxSlots free slots. The result
// lists Thursday slots first, each group in chronological order.
func (g *Generator) FromRows(ctx context.Context, rows []appointment.DoctorAvailability) ([]Slot, error) {
	now := g.now().In(g.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)
	earliest := now.Add(LeadTime)

	var found []Slot

scan:
	for offset := 0; offset < HorizonDays; offset++ {
		day := today.AddDate(0, 0, offset)
		weekday := appointment.Weekday(day)
		if weekday >= 5 {
			continue
		}
		date := appointment.Date(day)

		for _, row := range rows {
			if row.Availability.Weekday != weekday {
				continue
			}
			if open := row.Doctor.AgendaOpenDate; open != nil && appointment.Date(*open).After(date) {
				continue
			}

			duration := row.Availability.DurationMinutes
			if duration < MinDuration {
				duration = DefaultDuration
			}

			end := row.Availability.EndTime.Minutes()
			for m := row.Availability.StartTime.Minutes(); m < end; m += duration {
				at := appointment.TimeOfDay{Hour: m / 60, Minute: m % 60}
				startsAt := at.On(day, g.loc)
				if offset == 0 && !startsAt.After(earliest) {
					continue
				}

				taken, err := g.source.ExistsScheduled(ctx, row.Doctor.ID, date, at)
				if err != nil {
					return nil, fmt.Errorf("check slot %s: %w", appointment.SlotKey(row.Doctor.ID, date, at), err)
				}
				if taken {
					continue
				}

				found = append(found, Slot{
					DoctorID:        row.Doctor.ID,
					DoctorName:      row.Doctor.Name,
					DoctorLicense:   row.Doctor.License,
					SpecialtyName:   row.SpecialtyName,
					LocationID:      row.Availability.LocationID,
					LocationName:    row.LocationName,
					Date:            date,
					DateFormatted:   date.Format("02/01/2006"),
					Time:            at,
					Weekday:         WeekdayName(weekday),
					DurationMinutes: duration,
					Timestamp:       startsAt.Unix(),
				})
				if len(found) >= MaxSlots {
					break scan
				}
			}
		}
	}

	SortThursdayFirst(found)
	return found, nil
}

// SortThursdayFirst orders Thursday slots ahead of all others, each group
// by timestamp.
func SortThursdayFirst(s []Slot) {
	sort.SliceStable(s, func(i, j int) bool {
		ti := appointment.Weekday(s[i].Date) == thursday
		tj := appointment.Weekday(s[j].Date) == thursday
		if ti != tj {
			return ti
		}
		return s[i].Timestamp < s[j].Timestamp
	})
}
