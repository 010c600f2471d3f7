package lifecycle

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/opsdesk/internal/domain"
)

// Violation is a single field-level validation failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Violations collects every failing field of a payload.
type Violations []Violation

// Has reports whether field has at least one violation.
func (v Violations) Has(field string) bool {
	for _, violation := range v {
		if violation.Field == field {
			return true
		}
	}
	return false
}

// ByField groups messages per field path for client rendering.
func (v Violations) ByField() map[string][]string {
	out := make(map[string][]string, len(v))
	for _, violation := range v {
		out[violation.Field] = append(out[violation.Field], violation.Message)
	}
	return out
}

func (v *Violations) add(field, format string, args ...any) {
	*v = append(*v, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// startTimeLayouts are accepted for trouble start times; datetime-local inputs omit the zone.
var startTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Gate validates payloads against a kind schema.
type Gate struct {
	// ClosedIsTerminal rejects any status change away from closed.
	ClosedIsTerminal bool
}

// Check normalizes payload and collects violations. current is nil on create.
// The returned error is non-nil only for malformed payloads, never for violations.
func (g Gate) Check(schema domain.Schema, payload Payload, current *domain.Ticket) (Input, Violations, error) {
	in, err := decode(schema, payload)
	if err != nil {
		return Input{}, nil, err
	}

	var violations Violations
	if current == nil {
		g.checkCreate(schema, in, &violations)
	} else {
		g.checkUpdate(schema, in, *current, &violations)
	}

	checkImages("images", in.Images, &violations)
	checkImages(schema.EntryImagesField, in.EntryImages, &violations)
	return in, violations, nil
}

func (g Gate) checkCreate(schema domain.Schema, in Input, v *Violations) {
	for _, rule := range schema.Required {
		checkText(rule, textField(in, rule.Name), true, v)
	}
	if schema.RequiresStartTime {
		checkStartTime(in.StartTime, true, v)
	}
	if schema.RequiresReporters && len(in.Reporters) == 0 {
		v.add("reporters", "at least one reporter is required")
	}
	checkPriority(in.Priority, v)
}

func (g Gate) checkUpdate(schema domain.Schema, in Input, current domain.Ticket, v *Violations) {
	for _, rule := range schema.Required {
		if rule.Name == schema.NoteField && schema.NoteIsMainDescription {
			continue
		}
		checkText(rule, textField(in, rule.Name), false, v)
	}
	if schema.RequiresStartTime {
		checkStartTime(in.StartTime, false, v)
	}
	if schema.RequiresReporters && in.Reporters != nil && len(in.Reporters) == 0 {
		v.add("reporters", "at least one reporter is required")
	}
	checkPriority(in.Priority, v)

	if in.Status == nil {
		return
	}
	next := *in.Status
	if !schema.AllowsStatus(next) {
		v.add("status", "must be one of %s", joinStatuses(schema.Statuses))
		return
	}
	if next == current.Status {
		return
	}
	if g.ClosedIsTerminal && current.Status == domain.StatusClosed {
		v.add("status", "closed tickets cannot change status")
	}
	if next == schema.InitialStatus {
		return
	}
	if utf8.RuneCountInString(in.Note) < domain.MinNoteLength {
		v.add(schema.NoteField, "a note of at least %d characters is required when changing status", domain.MinNoteLength)
	}
	if len(in.Actors) == 0 {
		v.add(schema.ActorsField, "at least one name is required when changing status")
	}
}

func textField(in Input, name string) *string {
	switch name {
	case "title":
		return in.Title
	case "description":
		return in.Description
	case "siteId":
		return in.SiteID
	case "troubleSource":
		return in.TroubleSource
	}
	return nil
}

// checkText enforces a length floor. Absent fields only fail when required.
func checkText(rule domain.FieldRule, value *string, required bool, v *Violations) {
	if value == nil {
		if required {
			v.add(rule.Name, "is required")
		}
		return
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		v.add(rule.Name, "must not be blank")
		return
	}
	if utf8.RuneCountInString(trimmed) < rule.MinLen {
		v.add(rule.Name, "must be at least %d characters", rule.MinLen)
	}
}

func checkStartTime(value *string, required bool, v *Violations) {
	if value == nil {
		if required {
			v.add("startTime", "is required")
		}
		return
	}
	if _, ok := ParseStartTime(*value); !ok {
		v.add("startTime", "must be a valid date-time")
	}
}

// ParseStartTime parses any accepted start time layout.
func ParseStartTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func checkPriority(priority *domain.TicketPriority, v *Violations) {
	if priority == nil {
		return
	}
	for _, allowed := range domain.Priorities {
		if *priority == allowed {
			return
		}
	}
	v.add("priority", "must be one of Critical, Major, Minor")
}

func checkImages(field string, images []string, v *Violations) {
	if len(images) > domain.MaxImages {
		v.add(field, "at most %d images are allowed", domain.MaxImages)
	}
}

func joinStatuses(statuses []domain.TicketStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
