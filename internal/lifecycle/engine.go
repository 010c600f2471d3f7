package lifecycle

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/opsdesk/internal/domain"
	"github.com/spec-kit/opsdesk/internal/history"
)

// Engine computes next ticket states. It performs no I/O.
type Engine struct {
	Now   func() time.Time
	NewID func() string
}

// NewEngine returns an engine using the wall clock and random UUIDs.
func NewEngine() Engine {
	return Engine{Now: time.Now, NewID: uuid.NewString}
}

// Outcome is the result of a transition.
type Outcome struct {
	Ticket         domain.Ticket
	Entry          *domain.HistoryEntry
	PreviousStatus domain.TicketStatus
	// Changed is false when the payload matched the persisted record and carried no note.
	Changed bool
}

// Initialize builds a brand new ticket with its implicit creation entry.
func (e Engine) Initialize(schema domain.Schema, in Input, actor string) domain.Ticket {
	now := e.now()
	ticket := domain.Ticket{
		ID:            e.NewID(),
		Kind:          schema.Kind,
		Title:         trimmed(in.Title),
		Description:   trimmed(in.Description),
		Status:        schema.InitialStatus,
		SiteID:        trimmed(in.SiteID),
		StartTime:     trimmed(in.StartTime),
		TroubleSource: trimmed(in.TroubleSource),
		Reporters:     slices.Clone(in.Reporters),
		Images:        nonNil(in.Images),
		Attributes:    maps.Clone(in.Attributes),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if schema.HasPriority {
		ticket.Priority = domain.PriorityMinor
		if in.Priority != nil {
			ticket.Priority = *in.Priority
		}
	}

	entryImages := []string{}
	if schema.MirrorCreateImages {
		entryImages = slices.Clone(ticket.Images)
	}
	ticket.History = history.Append(nil, domain.HistoryEntry{
		ID:          e.NewID(),
		TicketID:    ticket.ID,
		Date:        now,
		Actor:       creationActor(in, actor),
		Status:      schema.InitialStatus,
		Description: schema.CreationNote,
		Images:      entryImages,
	})
	return ticket
}

// Transition merges in over current and decides whether a history entry is appended.
// in must already have passed the Gate for current.
func (e Engine) Transition(schema domain.Schema, current domain.Ticket, in Input, actor string) Outcome {
	next := current.Clone()
	nextStatus := current.Status
	if in.Status != nil {
		nextStatus = *in.Status
	}

	merge(schema, &next, in)
	statusChanged := nextStatus != current.Status
	fieldsChanged := !sameFields(current, next)
	appendEntry := in.Note != "" || statusChanged

	out := Outcome{Ticket: current.Clone(), PreviousStatus: current.Status}
	if !fieldsChanged && !appendEntry {
		return out
	}

	now := e.now()
	if now.Before(current.UpdatedAt) {
		now = current.UpdatedAt
	}
	if appendEntry {
		entry := domain.HistoryEntry{
			ID:          e.NewID(),
			TicketID:    current.ID,
			Date:        now,
			Actor:       entryActor(in.Actors, actor),
			Status:      nextStatus,
			Description: in.Note,
			Images:      nonNil(in.EntryImages),
		}
		if entry.Description == "" {
			entry.Description = fmt.Sprintf("Status changed from %s to %s", current.Status, nextStatus)
		}
		next.History = history.Append(current.History, entry)
		out.Entry = &entry
	}

	next.Status = nextStatus
	next.UpdatedAt = now
	next.Version = current.Version + 1
	out.Ticket = next
	out.Changed = true
	return out
}

// now truncates to microseconds, the finest precision every store keeps.
func (e Engine) now() time.Time {
	return e.Now().UTC().Truncate(time.Microsecond)
}

func merge(schema domain.Schema, next *domain.Ticket, in Input) {
	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil && !schema.NoteIsMainDescription {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.SiteID != nil {
		next.SiteID = strings.TrimSpace(*in.SiteID)
	}
	if in.StartTime != nil {
		next.StartTime = strings.TrimSpace(*in.StartTime)
	}
	if in.TroubleSource != nil {
		next.TroubleSource = strings.TrimSpace(*in.TroubleSource)
	}
	if in.Priority != nil && schema.HasPriority {
		next.Priority = *in.Priority
	}
	if in.Reporters != nil {
		next.Reporters = slices.Clone(in.Reporters)
	}
	if in.Images != nil && schema.MutableImages {
		next.Images = slices.Clone(in.Images)
	}
	for k, v := range in.Attributes {
		if next.Attributes == nil {
			next.Attributes = make(map[string]string, len(in.Attributes))
		}
		next.Attributes[k] = v
	}
}

func sameFields(a, b domain.Ticket) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.Priority == b.Priority &&
		a.SiteID == b.SiteID &&
		a.StartTime == b.StartTime &&
		a.TroubleSource == b.TroubleSource &&
		slices.Equal(a.Reporters, b.Reporters) &&
		slices.Equal(a.Images, b.Images) &&
		maps.Equal(a.Attributes, b.Attributes)
}

func creationActor(in Input, actor string) string {
	if len(in.Actors) > 0 {
		return strings.Join(in.Actors, ", ")
	}
	if len(in.Reporters) > 0 {
		return strings.Join(in.Reporters, ", ")
	}
	return entryActor(nil, actor)
}

func entryActor(named []string, fallback string) string {
	if len(named) > 0 {
		return strings.Join(named, ", ")
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return domain.SystemActor
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
