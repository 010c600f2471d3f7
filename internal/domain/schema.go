package domain

// MaxImages caps every image list (main record and history entry).
const MaxImages = 5

// MinNoteLength is the trimmed floor for a note that justifies a status change.
const MinNoteLength = 5

// FieldRule is a length floor for a required text field.
type FieldRule struct {
	Name   string
	MinLen int
}

// Schema describes how a kind differs from the shared lifecycle.
type Schema struct {
	Kind                  TicketKind
	Statuses              []TicketStatus
	InitialStatus         TicketStatus
	Required              []FieldRule
	RequiresReporters     bool
	RequiresStartTime     bool
	HasPriority           bool
	NoteField             string
	ActorsField           string
	EntryImagesField      string
	MutableImages         bool
	MirrorCreateImages    bool
	CreationNote          string
	Attributes            []string
	NoteIsMainDescription bool
}

var schemas = map[TicketKind]Schema{
	KindGeneric: {
		Kind:          KindGeneric,
		Statuses:      []TicketStatus{StatusOpen, StatusProcess, StatusClosed},
		InitialStatus: StatusOpen,
		Required: []FieldRule{
			{Name: "title", MinLen: 3},
			{Name: "description", MinLen: 5},
		},
		NoteField:             "description",
		ActorsField:           "handlers",
		EntryImagesField:      "updateImages",
		MutableImages:         true,
		MirrorCreateImages:    true,
		CreationNote:          "Ticket created",
		Attributes:            []string{"category", "location", "contact"},
		NoteIsMainDescription: true,
	},
	KindTrouble: {
		Kind:          KindTrouble,
		Statuses:      []TicketStatus{StatusOpen, StatusProcess, StatusClosed},
		InitialStatus: StatusOpen,
		Required: []FieldRule{
			{Name: "title", MinLen: 1},
			{Name: "siteId", MinLen: 3},
		},
		RequiresReporters:  true,
		RequiresStartTime:  true,
		HasPriority:        true,
		NoteField:          "updateDescription",
		ActorsField:        "updateReporters",
		EntryImagesField:   "updateImages",
		MirrorCreateImages: true,
		CreationNote:       "Trouble ticket opened",
		Attributes:         []string{"networkElement", "statusTx", "duration", "endTime", "rootCause", "actionTaken"},
	},
	KindMaintenance: {
		Kind:          KindMaintenance,
		Statuses:      []TicketStatus{StatusScheduled, StatusOpen, StatusProcess, StatusClosed, StatusPending},
		InitialStatus: StatusScheduled,
		Required: []FieldRule{
			{Name: "title", MinLen: 3},
			{Name: "description", MinLen: 1},
			{Name: "troubleSource", MinLen: 1},
		},
		NoteField:        "historyNote",
		ActorsField:      "technicians",
		EntryImagesField: "historyImages",
		CreationNote:     "Maintenance scheduled",
		Attributes:       []string{"runHours", "estimasiDowntime", "scheduledDate", "equipment", "location"},
	},
}

// SchemaFor returns the descriptor for kind.
func SchemaFor(kind TicketKind) (Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}

// AllowsStatus reports whether status belongs to the kind's status set.
func (s Schema) AllowsStatus(status TicketStatus) bool {
	for _, candidate := range s.Statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// HasAttribute reports whether name is one of the kind's technical attributes.
func (s Schema) HasAttribute(name string) bool {
	for _, attr := range s.Attributes {
		if attr == name {
			return true
		}
	}
	return false
}
