// Package history holds the append-only audit log helpers shared by every ticket kind.
package history

import (
	"github.com/spec-kit/opsdesk/internal/domain"
)

// Append returns a new log with entry at the end. The input slice is never written to,
// so a log handed out earlier cannot observe the new entry.
func Append(log []domain.HistoryEntry, entry domain.HistoryEntry) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(log), len(log)+1)
	copy(out, log)
	return append(out, entry.Clone())
}

// Chronological returns the entries oldest first.
func Chronological(ticket domain.Ticket) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(ticket.History))
	for i, entry := range ticket.History {
		out[i] = entry.Clone()
	}
	return out
}

// ReverseChronological returns the entries newest first.
func ReverseChronological(ticket domain.Ticket) []domain.HistoryEntry {
	n := len(ticket.History)
	out := make([]domain.HistoryEntry, n)
	for i, entry := range ticket.History {
		out[n-1-i] = entry.Clone()
	}
	return out
}

// Latest returns the most recent entry.
func Latest(ticket domain.Ticket) (domain.HistoryEntry, bool) {
	if len(ticket.History) == 0 {
		return domain.HistoryEntry{}, false
	}
	return ticket.History[len(ticket.History)-1].Clone(), true
}

// IsExtensionOf reports whether next keeps every entry of prev unchanged and in place.
func IsExtensionOf(prev, next []domain.HistoryEntry) bool {
	if len(next) < len(prev) {
		return false
	}
	for i := range prev {
		if !sameEntry(prev[i], next[i]) {
			return false
		}
	}
	return true
}

func sameEntry(a, b domain.HistoryEntry) bool {
	if a.ID != b.ID || a.TicketID != b.TicketID || a.Actor != b.Actor ||
		a.Status != b.Status || a.Description != b.Description || !a.Date.Equal(b.Date) {
		return false
	}
	if len(a.Images) != len(b.Images) {
		return false
	}
	for i := range a.Images {
		if a.Images[i] != b.Images[i] {
			return false
		}
	}
	return true
}
