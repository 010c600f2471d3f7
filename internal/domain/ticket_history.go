package domain

import "time"

// SystemActor is attributed to entries with no named actor.
const SystemActor = "System"

// HistoryEntry is an immutable audit trail entry. Status is the ticket status at the
// moment the entry was recorded.
type HistoryEntry struct {
	ID          string       `json:"id"`
	TicketID    string       `json:"ticketId"`
	Date        time.Time    `json:"date"`
	Actor       string       `json:"actor"`
	Status      TicketStatus `json:"status"`
	Description string       `json:"description"`
	Images      []string     `json:"images"`
}

// Clone copies the entry including its image list.
func (e HistoryEntry) Clone() HistoryEntry {
	out := e
	out.Images = cloneStrings(e.Images)
	return out
}
