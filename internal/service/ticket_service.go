package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/opsdesk/internal/domain"
	"github.com/spec-kit/opsdesk/internal/events"
	"github.com/spec-kit/opsdesk/internal/history"
	"github.com/spec-kit/opsdesk/internal/lifecycle"
	"github.com/spec-kit/opsdesk/internal/observability"
	"github.com/spec-kit/opsdesk/internal/repository"
	apperrors "github.com/spec-kit/opsdesk/pkg/util/errorutil"
)

// TicketService is the only entry point for ticket commands and queries. It sequences
// the store, the validation gate and the lifecycle engine.
type TicketService struct {
	tickets    repository.TicketRepository
	gate       lifecycle.Gate
	engine     lifecycle.Engine
	cache      *TicketCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Gate       lifecycle.Gate
	Engine     lifecycle.Engine
	Cache      *TicketCache
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	engine := deps.Engine
	if engine.Now == nil || engine.NewID == nil {
		engine = lifecycle.NewEngine()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		gate:       deps.Gate,
		engine:     engine,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// CreateTicket validates payload and stores a new ticket in its initial status.
func (s *TicketService) CreateTicket(ctx context.Context, kind domain.TicketKind, payload lifecycle.Payload, actor string) (*domain.Ticket, error) {
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	in, violations, err := s.gate.Check(schema, payload, nil)
	if err != nil {
		s.metrics.RecordTicketOp(string(kind), "create", "malformed")
		return nil, apperrors.NewMalformed("ticket payload is malformed", err)
	}
	if len(violations) > 0 {
		s.metrics.RecordTicketOp(string(kind), "create", "invalid")
		return nil, violationError(violations)
	}

	ticket := s.engine.Initialize(schema, in, actor)
	if err := s.tickets.Create(ctx, &ticket); err != nil {
		s.metrics.RecordTicketOp(string(kind), "create", "error")
		return nil, s.storeFailure("create", kind, ticket.ID, err)
	}

	s.cache.Set(&ticket)
	s.metrics.RecordTicketOp(string(kind), "create", "ok")
	s.metrics.RecordHistoryAppend(string(kind))
	s.logger.Info("ticket created",
		zap.String("kind", string(kind)),
		zap.String("ticket_id", ticket.ID),
		zap.String("actor", ticket.History[0].Actor),
	)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		Kind:     kind,
		TicketID: ticket.ID,
		Actor:    ticket.History[0].Actor,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Status:   ticket.Status,
			Priority: ticket.Priority,
		},
	})
	return &ticket, nil
}

// GetTicket returns one ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, kind domain.TicketKind, id string) (*domain.Ticket, error) {
	if _, err := schemaFor(kind); err != nil {
		return nil, err
	}
	if ticket, ok := s.cache.Get(kind, id); ok {
		return ticket, nil
	}
	ticket, err := s.tickets.GetByID(ctx, kind, id)
	if err != nil {
		return nil, s.storeFailure("get", kind, id, err)
	}
	s.cache.Set(ticket)
	return ticket, nil
}

// ListTickets returns every ticket of a kind, oldest first.
func (s *TicketService) ListTickets(ctx context.Context, kind domain.TicketKind) ([]domain.Ticket, error) {
	if _, err := schemaFor(kind); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, kind)
	if err != nil {
		return nil, s.storeFailure("list", kind, "", err)
	}
	return tickets, nil
}

// UpdateTicket applies a transition: merge fields, maybe append a history entry, persist.
// A payload that changes nothing and carries no note leaves the ticket untouched.
func (s *TicketService) UpdateTicket(ctx context.Context, kind domain.TicketKind, id string, payload lifecycle.Payload, actor string) (*domain.Ticket, error) {
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	current, err := s.tickets.GetByID(ctx, kind, id)
	if err != nil {
		s.metrics.RecordTicketOp(string(kind), "update", outcomeOf(err))
		return nil, s.storeFailure("get", kind, id, err)
	}

	in, violations, err := s.gate.Check(schema, payload, current)
	if err != nil {
		s.metrics.RecordTicketOp(string(kind), "update", "malformed")
		return nil, apperrors.NewMalformed("ticket payload is malformed", err)
	}
	if len(violations) > 0 {
		s.metrics.RecordTicketOp(string(kind), "update", "invalid")
		return nil, violationError(violations)
	}
	if in.Version != nil && *in.Version != current.Version {
		s.metrics.RecordTicketOp(string(kind), "update", "conflict")
		return nil, apperrors.NewConflict("ticket was modified by another request", map[string]any{
			"expected_version": *in.Version,
			"current_version":  current.Version,
		})
	}

	outcome := s.engine.Transition(schema, *current, in, actor)
	if !outcome.Changed {
		s.metrics.RecordTicketOp(string(kind), "update", "noop")
		return current, nil
	}
	if !history.IsExtensionOf(current.History, outcome.Ticket.History) {
		return nil, apperrors.NewInternalError(fmt.Errorf("ticket %s: history is append-only", id))
	}

	next := outcome.Ticket
	if err := s.tickets.Update(ctx, &next); err != nil {
		s.cache.Delete(kind, id)
		s.metrics.RecordTicketOp(string(kind), "update", outcomeOf(err))
		return nil, s.storeFailure("update", kind, id, err)
	}

	s.cache.Set(&next)
	s.metrics.RecordTicketOp(string(kind), "update", "ok")
	payloadEvent := events.TicketTransitionedPayload{
		OldStatus: outcome.PreviousStatus,
		NewStatus: next.Status,
		Version:   next.Version,
	}
	eventActor := actor
	if outcome.Entry != nil {
		s.metrics.RecordHistoryAppend(string(kind))
		payloadEvent.EntryID = outcome.Entry.ID
		payloadEvent.NotePreview = stringPreview(outcome.Entry.Description, 120)
		eventActor = outcome.Entry.Actor
	}
	s.logger.Info("ticket updated",
		zap.String("kind", string(kind)),
		zap.String("ticket_id", id),
		zap.String("old_status", string(outcome.PreviousStatus)),
		zap.String("new_status", string(next.Status)),
		zap.Bool("entry_appended", outcome.Entry != nil),
		zap.Int64("version", next.Version),
	)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketTransitioned,
		Kind:     kind,
		TicketID: id,
		Actor:    eventActor,
		Payload:  payloadEvent,
	})
	return &next, nil
}

// DeleteTicket hard-deletes a ticket and its history.
func (s *TicketService) DeleteTicket(ctx context.Context, kind domain.TicketKind, id string, actor string) error {
	if _, err := schemaFor(kind); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, kind, id); err != nil {
		s.metrics.RecordTicketOp(string(kind), "delete", outcomeOf(err))
		return s.storeFailure("delete", kind, id, err)
	}
	s.cache.Delete(kind, id)
	s.metrics.RecordTicketOp(string(kind), "delete", "ok")
	s.logger.Info("ticket deleted", zap.String("kind", string(kind)), zap.String("ticket_id", id))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		Kind:     kind,
		TicketID: id,
		Actor:    actor,
	})
	return nil
}

// TicketHistory returns the history log of a ticket, oldest first unless newestFirst.
func (s *TicketService) TicketHistory(ctx context.Context, kind domain.TicketKind, id string, newestFirst bool) ([]domain.HistoryEntry, error) {
	ticket, err := s.GetTicket(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if newestFirst {
		return history.ReverseChronological(*ticket), nil
	}
	return history.Chronological(*ticket), nil
}

// EvictCached drops the cached copy of the ticket an event refers to. It is
// subscribed to events written by other replicas of the service.
func (s *TicketService) EvictCached(_ context.Context, event events.Event) error {
	if event.TicketID == "" {
		return nil
	}
	s.cache.Delete(event.Kind, event.TicketID)
	return nil
}

// Ping checks the backing store.
func (s *TicketService) Ping(ctx context.Context) error {
	return s.tickets.Ping(ctx)
}

func schemaFor(kind domain.TicketKind) (domain.Schema, error) {
	schema, ok := domain.SchemaFor(kind)
	if !ok {
		return domain.Schema{}, apperrors.NewUnknownKind(string(kind))
	}
	return schema, nil
}

func violationError(violations lifecycle.Violations) error {
	return apperrors.NewValidationError("ticket payload is invalid", map[string]any{
		"violations": violations,
		"fields":     violations.ByField(),
	})
}

func (s *TicketService) storeFailure(op string, kind domain.TicketKind, id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"kind": kind, "id": id})
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict("ticket was modified by another request", map[string]any{"kind": kind, "id": id})
	}
	s.logger.Error("ticket store failure",
		zap.String("op", op),
		zap.String("kind", string(kind)),
		zap.String("ticket_id", id),
		zap.Error(err),
	)
	return apperrors.NewInternalError(fmt.Errorf("%s ticket: %w", op, err))
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
