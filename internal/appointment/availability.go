package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reasons reported by CheckAvailability when a slot is not bookable.
const (
	ReasonDoctorInactive   = "doctor_inactive"
	ReasonBeforeAgendaOpen = "before_agenda_open"
	ReasonOutsideSchedule  = "outside_weekly_availability"
	ReasonAlreadyBooked    = "already_booked"
	ReasonRecurringBlock   = "recurring_block"
)

type AvailabilityCheck struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// CheckAvailability is the general-purpose bookability test for a single
// (doctor, date, time). Unlike slot generation it also honours recurring
// blocks.
func (s *Service) CheckAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time, at TimeOfDay) (AvailabilityCheck, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return AvailabilityCheck{}, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Active {
		return AvailabilityCheck{Reason: ReasonDoctorInactive}, nil
	}

	day := Date(date)
	if doctor.AgendaOpenDate != nil && Date(*doctor.AgendaOpenDate).After(day) {
		return AvailabilityCheck{Reason: ReasonBeforeAgendaOpen}, nil
	}

	weekday := Weekday(day)
	windows, err := s.repo.ListDoctorAvailability(ctx, doctorID, weekday)
	if err != nil {
		return AvailabilityCheck{}, fmt.Errorf("load availability: %w", err)
	}
	inside := false
	for _, w := range windows {
		if w.StartTime.Minutes() <= at.Minutes() && at.Minutes() < w.EndTime.Minutes() {
			inside = true
			break
		}
	}
	if !inside {
		return AvailabilityCheck{Reason: ReasonOutsideSchedule}, nil
	}

	taken, err := s.repo.ExistsScheduled(ctx, doctorID, day, at)
	if err != nil {
		return AvailabilityCheck{}, err
	}
	if taken {
		return AvailabilityCheck{Reason: ReasonAlreadyBooked}, nil
	}

	blocks, err := s.repo.ListRecurringBlocks(ctx, doctorID, weekday)
	if err != nil {
		return AvailabilityCheck{}, fmt.Errorf("load recurring blocks: %w", err)
	}
	for _, b := range blocks {
		if b.Time == at && b.CoversDate(day) {
			return AvailabilityCheck{Reason: ReasonRecurringBlock}, nil
		}
	}

	return AvailabilityCheck{Available: true}, nil
}
