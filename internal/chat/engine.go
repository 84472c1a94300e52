// Package chat is the conversational scheduling engine: a per-session state
// machine that identifies the patient, registers newcomers, walks them
// through location, specialty and slot selection, and books, cancels or
// lists appointments.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/errreport"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-chat-scheduling/internal/slots"
	"github.com/hackgods/clinic-chat-scheduling/internal/upload"
)

const apologyMessage = "Desculpe, ocorreu um erro. Vamos recomeçar o atendimento."

// Booker is the booking side the engine drives; *appointment.Service
// implements it.
type Booker interface {
	HoldForAttachment(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	Finalize(ctx context.Context, req appointment.BookingRequest, placeholderID *uuid.UUID) (*appointment.Appointment, error)
	Discard(ctx context.Context, id uuid.UUID) error
	CancelByPatient(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type SlotGenerator interface {
	Generate(ctx context.Context, specialtyID, locationID uuid.UUID) []slots.Slot
}

type IntentDecider interface {
	Decide(ctx context.Context, text string) intent.Decision
}

type Deps struct {
	Repo     appointment.Repository
	Booking  Booker
	Slots    SlotGenerator
	Intents  IntentDecider
	Uploads  upload.Linker
	Clinic   config.Clinic
	Logger   *slog.Logger
	Metrics  *metrics.SchedulingMetrics
	Reporter *errreport.Reporter
}

type Engine struct {
	repo     appointment.Repository
	booking  Booker
	slots    SlotGenerator
	intents  IntentDecider
	uploads  upload.Linker
	clinic   config.Clinic
	logger   *slog.Logger
	metrics  *metrics.SchedulingMetrics
	reporter *errreport.Reporter
	now      func() time.Time
}

func NewEngine(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Uploads == nil {
		d.Uploads = upload.PathLinker{}
	}
	if d.Clinic.Location == nil {
		d.Clinic.Location = time.Local
	}
	return &Engine{
		repo:     d.Repo,
		booking:  d.Booking,
		slots:    d.Slots,
		intents:  d.Intents,
		uploads:  d.Uploads,
		clinic:   d.Clinic,
		logger:   d.Logger,
		metrics:  d.Metrics,
		reporter: d.Reporter,
		now:      time.Now,
	}
}

// WithClock replaces the engine clock; used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ProcessMessage handles one patient message. Handlers work on a copy of
// conv that replaces it only when the turn succeeds; an error or panic
// resets conv to start and yields an apology instead. It never fails.
func (e *Engine) ProcessMessage(ctx context.Context, message string, conv *Conversation) (resp Response) {
	from := conv.State
	work := conv.Clone()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while processing message", "session", conv.SessionID, "state", from, "panic", r, "stack", string(debug.Stack()))
			resp = e.fault(conv, from, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err := e.dispatch(ctx, strings.TrimSpace(message), work)
	if err != nil {
		e.logger.Error("message processing failed", "session", conv.SessionID, "state", from, "error", err)
		return e.fault(conv, from, err)
	}

	work.UpdatedAt = e.now()
	*conv = *work
	out.NextState = conv.State

	e.logger.Info("message processed", "session", conv.SessionID, "state", from, "next_state", conv.State, "kind", out.Kind)
	e.metrics.ObserveMessage(string(from), string(out.Kind))
	return out
}

func (e *Engine) fault(conv *Conversation, from State, err error) Response {
	conv.Reset()
	conv.UpdatedAt = e.now()

	e.metrics.ObserveFault()
	e.metrics.ObserveMessage(string(from), string(KindError))
	e.reporter.Capture(err, map[string]any{"session": conv.SessionID, "state": string(from)})

	return Response{Success: false, Message: apologyMessage, Kind: KindError, NextState: StateStart}
}

func (e *Engine) dispatch(ctx context.Context, msg string, c *Conversation) (Response, error) {
	if c.State != StateCancellation && isCancellation(msg) {
		e.releaseHold(ctx, c)
		c.State = StateCancellation
		c.Draft = nil
		if _, ok := ExtractNationalID(msg); ok {
			return e.handleCancellation(ctx, msg, c)
		}
		return reply(KindText, "Para cancelar uma consulta, preciso do CPF do paciente. Digite apenas os 11 números:"), nil
	}

	if isGreeting(msg) {
		e.releaseHold(ctx, c)
		c.Reset()
		return e.handleStart(ctx, msg, c)
	}

	switch c.State {
	case StateStart, StateDone:
		return e.handleStart(ctx, msg, c)
	case StateAwaitingID:
		return e.handleAwaitingID(ctx, msg, c)
	case StateRegistration:
		return e.handleRegistration(ctx, msg, c)
	case StateChooseLocation:
		return e.handleChooseLocation(ctx, msg, c)
	case StateChooseSpecialty:
		return e.handleChooseSpecialty(ctx, msg, c)
	case StateChooseSlot:
		return e.handleChooseSlot(ctx, msg, c)
	case StateAttachmentRequest:
		return e.handleAttachment(ctx, msg, c)
	case StateConfirm:
		return e.handleConfirm(ctx, msg, c)
	case StateCancellation:
		return e.handleCancellation(ctx, msg, c)
	case StateLookup:
		return e.handleLookup(ctx, msg, c)
	default:
		e.logger.Warn("unknown conversation state, resetting", "session", c.SessionID, "state", c.State)
		c.Reset()
		return e.handleStart(ctx, msg, c)
	}
}

// releaseHold cancels the placeholder of a booking the patient abandoned by
// starting over. A failure is only logged: the reaper expires the hold later.
func (e *Engine) releaseHold(ctx context.Context, c *Conversation) {
	d := c.booking()
	if d == nil || d.PlaceholderID == nil {
		return
	}
	if err := e.booking.Discard(ctx, *d.PlaceholderID); err != nil {
		e.logger.Warn("could not release placeholder", "session", c.SessionID, "placeholder", *d.PlaceholderID, "error", err)
		return
	}
	d.PlaceholderID = nil
}

// restart resets c and explains why; used when the draft no longer supports
// the current state.
func restart(c *Conversation, msg string) Response {
	c.Reset()
	return reject(KindError, msg)
}
