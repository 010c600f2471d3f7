package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketKind selects one of the parallel ticket schemas.
type TicketKind string

const (
	KindGeneric     TicketKind = "generic"
	KindTrouble     TicketKind = "trouble"
	KindMaintenance TicketKind = "maintenance"
)

// Kinds lists every supported ticket kind.
var Kinds = []TicketKind{KindGeneric, KindTrouble, KindMaintenance}

// ParseKind resolves a path segment into a TicketKind.
func ParseKind(raw string) (TicketKind, error) {
	kind := TicketKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, k := range Kinds {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown ticket kind %q", raw)
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	StatusScheduled TicketStatus = "Scheduled"
	StatusOpen      TicketStatus = "open"
	StatusProcess   TicketStatus = "process"
	StatusClosed    TicketStatus = "closed"
	StatusPending   TicketStatus = "pending"
)

// TicketPriority enumerates trouble urgency.
type TicketPriority string

const (
	PriorityCritical TicketPriority = "Critical"
	PriorityMajor    TicketPriority = "Major"
	PriorityMinor    TicketPriority = "Minor"
)

// Priorities lists accepted trouble priorities.
var Priorities = []TicketPriority{PriorityCritical, PriorityMajor, PriorityMinor}

// Ticket is the mutable root record shared by every kind.
type Ticket struct {
	ID            string            `json:"id"`
	Kind          TicketKind        `json:"kind"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Status        TicketStatus      `json:"status"`
	Priority      TicketPriority    `json:"priority,omitempty"`
	SiteID        string            `json:"siteId,omitempty"`
	StartTime     string            `json:"startTime,omitempty"`
	TroubleSource string            `json:"troubleSource,omitempty"`
	Reporters     []string          `json:"reporters,omitempty"`
	Images        []string          `json:"images"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	History       []HistoryEntry    `json:"history"`
}

// Clone returns a deep copy so callers never share slices or maps with a stored record.
func (t Ticket) Clone() Ticket {
	out := t
	out.Reporters = cloneStrings(t.Reporters)
	out.Images = cloneStrings(t.Images)
	if t.Attributes != nil {
		out.Attributes = make(map[string]string, len(t.Attributes))
		for k, v := range t.Attributes {
			out.Attributes[k] = v
		}
	}
	if t.History != nil {
		out.History = make([]HistoryEntry, len(t.History))
		for i, entry := range t.History {
			out.History[i] = entry.Clone()
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
