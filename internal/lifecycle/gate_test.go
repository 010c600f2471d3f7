package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/opsdesk/internal/domain"
)

func schema(t *testing.T, kind domain.TicketKind) domain.Schema {
	t.Helper()
	s, ok := domain.SchemaFor(kind)
	require.True(t, ok, "schema for %s", kind)
	return s
}

func troubleTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:        "t-1",
		Kind:      domain.KindTrouble,
		Title:     "Mains Failure",
		SiteID:    "BDO001",
		StartTime: "2025-01-01T08:00",
		Reporters: []string{"Teknisi A"},
		Status:    status,
		Priority:  domain.PriorityMinor,
		Images:    []string{},
		Version:   1,
	}
}

func TestGate_CreateTroubleScenarioA(t *testing.T) {
	in, violations, err := Gate{}.Check(schema(t, domain.KindTrouble), Payload{
		"title":     "Mains Failure",
		"siteId":    "BDO001",
		"startTime": "2025-01-01T08:00",
		"reporters": []any{"Teknisi A"},
	}, nil)

	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.Equal(t, "Mains Failure", *in.Title)
	assert.Equal(t, []string{"Teknisi A"}, in.Reporters)
}

func TestGate_CreateCollectsEveryViolation(t *testing.T) {
	_, violations, err := Gate{}.Check(schema(t, domain.KindTrouble), Payload{
		"title":     "  ",
		"siteId":    "BD",
		"startTime": "yesterday",
		"reporters": []any{" ", ""},
		"priority":  "Urgent",
		"images":    []any{"1", "2", "3", "4", "5", "6"},
	}, nil)

	require.NoError(t, err)
	fields := violations.ByField()
	assert.Equal(t, []string{"must not be blank"}, fields["title"])
	assert.Equal(t, []string{"must be at least 3 characters"}, fields["siteId"])
	assert.Equal(t, []string{"must be a valid date-time"}, fields["startTime"])
	assert.Equal(t, []string{"at least one reporter is required"}, fields["reporters"])
	assert.Contains(t, fields, "priority")
	assert.Equal(t, []string{"at most 5 images are allowed"}, fields["images"])
}

func TestGate_CreateMissingRequiredFields(t *testing.T) {
	_, violations, err := Gate{}.Check(schema(t, domain.KindMaintenance), Payload{}, nil)

	require.NoError(t, err)
	for _, field := range []string{"title", "description", "troubleSource"} {
		assert.True(t, violations.Has(field), "expected violation on %s", field)
	}
}

func TestGate_GenericDescriptionFloor(t *testing.T) {
	_, violations, err := Gate{}.Check(schema(t, domain.KindGeneric), Payload{
		"title":       "Printer jam",
		"description": "bad",
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, Violations{{Field: "description", Message: "must be at least 5 characters"}}, violations)
}

func TestGate_StatusChangeRequiresNoteAndActors(t *testing.T) {
	current := troubleTicket(domain.StatusOpen)

	_, violations, err := Gate{}.Check(schema(t, domain.KindTrouble), Payload{"status": "process"}, current)
	require.NoError(t, err)
	assert.True(t, violations.Has("updateDescription"))
	assert.True(t, violations.Has("updateReporters"))

	_, violations, err = Gate{}.Check(schema(t, domain.KindTrouble), Payload{
		"status":            "process",
		"updateDescription": "Genset diganti",
		"updateReporters":   []any{"Teknisi B"},
	}, current)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestGate_ScenarioCClosingWithoutNote(t *testing.T) {
	current := troubleTicket(domain.StatusProcess)

	_, violations, err := Gate{}.Check(schema(t, domain.KindTrouble), Payload{"status": "closed"}, current)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"updateDescription", "updateReporters"}, fieldNames(violations))
}

func TestGate_NoteLengthIsTrimmed(t *testing.T) {
	current := troubleTicket(domain.StatusOpen)

	_, violations, err := Gate{}.Check(schema(t, domain.KindTrouble), Payload{
		"status":            "process",
		"updateDescription": "  ok   ",
		"updateReporters":   []any{"Teknisi B"},
	}, current)

	require.NoError(t, err)
	assert.Equal(t, []string{"updateDescription"}, fieldNames(violations))
}

func TestGate_SameStatusNeedsNoNote(t *testing.T) {
	current := troubleTicket(domain.StatusProcess)

	_, violations, err := Gate{}.Check(schema(t, domain.KindTrouble), Payload{"status": "process"}, current)

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestGate_ReturnToInitialStatusNeedsNoNote(t *testing.T) {
	current := &domain.Ticket{Kind: domain.KindMaintenance, Status: domain.StatusOpen}

	_, violations, err := Gate{}.Check(schema(t, domain.KindMaintenance), Payload{"status": "Scheduled"}, current)

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestGate_RejectsStatusOutsideKind(t *testing.T) {
	current := troubleTicket(domain.StatusOpen)

	_, violations, err := Gate{}.Check(schema(t, domain.KindTrouble), Payload{
		"status":            "pending",
		"updateDescription": "waiting on parts",
		"updateReporters":   []any{"Teknisi B"},
	}, current)

	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "status", violations[0].Field)
	assert.Equal(t, "must be one of open, process, closed", violations[0].Message)
}

func TestGate_ClosedIsTerminalOnlyWhenConfigured(t *testing.T) {
	current := troubleTicket(domain.StatusClosed)
	payload := Payload{
		"status":            "process",
		"updateDescription": "reopened after alarm",
		"updateReporters":   []any{"NOC"},
	}

	_, violations, err := Gate{}.Check(schema(t, domain.KindTrouble), payload, current)
	require.NoError(t, err)
	assert.Empty(t, violations)

	_, violations, err = Gate{ClosedIsTerminal: true}.Check(schema(t, domain.KindTrouble), payload, current)
	require.NoError(t, err)
	assert.Equal(t, Violations{{Field: "status", Message: "closed tickets cannot change status"}}, violations)
}

func TestGate_EntryImagesLimitUsesKindField(t *testing.T) {
	current := &domain.Ticket{Kind: domain.KindMaintenance, Status: domain.StatusScheduled}

	_, violations, err := Gate{}.Check(schema(t, domain.KindMaintenance), Payload{
		"historyNote":   "photos from site",
		"historyImages": []any{"a", "b", "c", "d", "e", "f"},
	}, current)

	require.NoError(t, err)
	assert.Equal(t, []string{"historyImages"}, fieldNames(violations))
}

func TestGate_MalformedPayload(t *testing.T) {
	cases := map[string]Payload{
		"reporters not array":  {"title": "x", "reporters": "Teknisi A"},
		"title not string":     {"title": 42},
		"reporter not string":  {"reporters": []any{"a", 1}},
		"version not integer":  {"version": 1.5},
		"version out of range": {"version": 1e19},
		"version too negative": {"version": -1e300},
		"attribute not scalar": {"networkElement": map[string]any{"a": "b"}},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Gate{}.Check(schema(t, domain.KindTrouble), payload, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPayload))
		})
	}
}

func TestGate_DecodesAttributesAndVersion(t *testing.T) {
	in, violations, err := Gate{}.Check(schema(t, domain.KindMaintenance), Payload{
		"title":            "Genset service",
		"description":      "quarterly",
		"troubleSource":    "PLN",
		"runHours":         float64(1250),
		"estimasiDowntime": "2h",
		"unknownField":     "dropped",
		"version":          float64(3),
	}, nil)

	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.Equal(t, map[string]string{"runHours": "1250", "estimasiDowntime": "2h"}, in.Attributes)
	require.NotNil(t, in.Version)
	assert.EqualValues(t, 3, *in.Version)
}

func TestGate_VersionAtExactIntegerLimit(t *testing.T) {
	in, _, err := Gate{}.Check(schema(t, domain.KindGeneric), Payload{"version": float64(1 << 53)}, nil)
	require.NoError(t, err)
	require.NotNil(t, in.Version)
	assert.EqualValues(t, int64(1)<<53, *in.Version)

	_, _, err = Gate{}.Check(schema(t, domain.KindGeneric), Payload{"version": float64(1<<53) * 2}, nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseStartTime(t *testing.T) {
	for _, raw := range []string{"2025-01-01T08:00", "2025-01-01T08:00:30", "2025-01-01 08:00", "2025-01-01T08:00:00+07:00"} {
		_, ok := ParseStartTime(raw)
		assert.True(t, ok, raw)
	}
	_, ok := ParseStartTime("01/01/2025")
	assert.False(t, ok)
}

func fieldNames(violations Violations) []string {
	names := make([]string, 0, len(violations))
	for _, v := range violations {
		names = append(names, v.Field)
	}
	return names
}
