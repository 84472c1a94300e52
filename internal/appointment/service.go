package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAttachmentPending    = "ATTACHMENT_PENDING"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventPlaceholderExpired   = "PLACEHOLDER_EXPIRED"
	EventPlaceholderDiscarded = "PLACEHOLDER_DISCARDED"
)

const (
	CancelReasonPatient   = "Cancelado pelo paciente via chatbot"
	CancelReasonDiscarded = "Descartado pelo paciente antes da confirmação"
	CancelReasonExpired   = "hold expired"
)

var (
	// ErrSlotUnavailable means another booking won the (doctor, date, time).
	ErrSlotUnavailable         = errors.New("slot no longer available")
	ErrSlotBeingBooked         = fmt.Errorf("%w: slot is currently being booked", ErrSlotUnavailable)
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// BookingRequest is the (patient, doctor, date, time) tuple chosen in chat.
type BookingRequest struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	SpecialtyID uuid.UUID
	LocationID  uuid.UUID
	Date        time.Time
	Time        TimeOfDay

	// AttachmentName is set when the patient reported sending the referral
	// document; the booked row then records it under AttachmentKey.
	AttachmentName string
}

func (r BookingRequest) slotKey() string {
	return SlotKey(r.DoctorID, r.Date, r.Time)
}

func (r BookingRequest) newAppointment(status AppointmentStatus) NewAppointment {
	return NewAppointment{
		PatientID:   r.PatientID,
		DoctorID:    r.DoctorID,
		SpecialtyID: r.SpecialtyID,
		LocationID:  r.LocationID,
		Date:        r.Date,
		Time:        r.Time,
		Status:      status,
	}
}

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.SchedulingMetrics
	now     func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger *slog.Logger, m *metrics.SchedulingMetrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the service clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HoldForAttachment creates the attachment_pending placeholder that a
// specialty requiring a referral document needs before confirmation.
func (s *Service) HoldForAttachment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	var created *Appointment

	err := s.withSlot(ctx, req, func(lockCtx context.Context) error {
		appt, err := s.repo.CreateAppointment(lockCtx, req.newAppointment(StatusAttachmentPending))
		if err != nil {
			return fmt.Errorf("create placeholder appointment: %w", err)
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAttachmentPending, map[string]any{
			"patient_id": req.PatientID.String(),
			"doctor_id":  req.DoctorID.String(),
			"date":       req.Date.Format("2006-01-02"),
			"time":       req.Time.String(),
		})
		return nil
	})

	s.metrics.ObserveBooking("hold", outcome(err))
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Finalize turns the chosen slot into a scheduled appointment. A placeholder,
// when given and still pending, is promoted in place; otherwise a new row is
// inserted. Losing a race for the slot yields ErrSlotUnavailable.
func (s *Service) Finalize(ctx context.Context, req BookingRequest, placeholderID *uuid.UUID) (*Appointment, error) {
	var result *Appointment

	err := s.withSlot(ctx, req, func(lockCtx context.Context) error {
		if placeholderID != nil {
			promoted, err := s.repo.UpdateAppointmentStatus(lockCtx, *placeholderID, StatusAttachmentPending, StatusScheduled)
			switch {
			case err == nil:
				result = promoted
				s.logEvent(lockCtx, promoted.ID, EventAppointmentConfirmed, map[string]any{"promoted": true})
				return s.recordAttachment(lockCtx, req, &result)
			case errors.Is(err, ErrDuplicateScheduled):
				return ErrSlotUnavailable
			case !errors.Is(err, ErrAppointmentNotFound):
				return fmt.Errorf("promote placeholder: %w", err)
			}
			// The hold expired or was discarded; book from scratch.
		}

		appt, err := s.repo.CreateAppointment(lockCtx, req.newAppointment(StatusScheduled))
		if err != nil {
			if errors.Is(err, ErrDuplicateScheduled) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		result = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"patient_id": req.PatientID.String(),
			"doctor_id":  req.DoctorID.String(),
			"date":       req.Date.Format("2006-01-02"),
			"time":       req.Time.String(),
		})
		return s.recordAttachment(lockCtx, req, &result)
	})

	s.metrics.ObserveBooking("finalize", outcome(err))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) recordAttachment(ctx context.Context, req BookingRequest, appt **Appointment) error {
	if req.AttachmentName == "" {
		return nil
	}
	updated, err := s.repo.SetAttachment(ctx, (*appt).ID, req.AttachmentName, AttachmentKey((*appt).ID))
	if err != nil {
		return fmt.Errorf("record attachment: %w", err)
	}
	*appt = updated
	return nil
}

// withSlot runs fn under the slot lock after confirming nothing is scheduled
// on the slot yet.
func (s *Service) withSlot(ctx context.Context, req BookingRequest, fn func(ctx context.Context) error) error {
	err := s.locker.WithSlotLock(ctx, req.slotKey(), func(lockCtx context.Context) error {
		taken, err := s.repo.ExistsScheduled(lockCtx, req.DoctorID, req.Date, req.Time)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotUnavailable
		}
		return fn(lockCtx)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

// Discard cancels a placeholder the patient walked away from. Missing or
// already-settled placeholders are ignored.
func (s *Service) Discard(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.CancelAppointment(ctx, id, StatusAttachmentPending, CancelReasonDiscarded, s.now())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil
		}
		return fmt.Errorf("discard placeholder: %w", err)
	}
	s.logEvent(ctx, id, EventPlaceholderDiscarded, map[string]any{})
	return nil
}

// CancelByPatient cancels a scheduled appointment on the patient's request.
func (s *Service) CancelByPatient(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.CancelAppointment(ctx, id, StatusScheduled, CancelReasonPatient, s.now())
	if err != nil {
		s.metrics.ObserveBooking("cancel", outcome(err))
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.metrics.ObserveBooking("cancel", "ok")
	s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
		"reason": CancelReasonPatient,
	})
	return appt, nil
}

// ExpireStalePlaceholders is intended to be called by the reaper periodically.
// It cancels holds that were never confirmed within the placeholder TTL.
func (s *Service) ExpireStalePlaceholders(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.repo.FindStalePlaceholders(ctx, now.Add(-s.cfg.PlaceholderTTL))
	if err != nil {
		return 0, fmt.Errorf("find stale placeholders: %w", err)
	}

	expired := 0
	for _, appt := range stale {
		_, err := s.repo.CancelAppointment(ctx, appt.ID, appt.Status, CancelReasonExpired, now)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Error("failed to expire placeholder", "appointment_id", appt.ID, "error", err)
			}
			continue
		}
		expired++
		s.logEvent(ctx, appt.ID, EventPlaceholderExpired, map[string]any{
			"reason": "worker",
			"status": string(appt.Status),
		})
	}

	s.metrics.ObserveReaped("placeholder", expired)
	return expired, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "event", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log", "event", eventType, "appointment_id", appointmentID, "error", err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "conflict"
	default:
		return "error"
	}
}
