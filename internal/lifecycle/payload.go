package lifecycle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spec-kit/opsdesk/internal/domain"
)

// ErrMalformedPayload marks a payload whose JSON shape does not match the kind schema.
var ErrMalformedPayload = errors.New("malformed payload")

// Payload is a decoded JSON object as received from a client.
type Payload map[string]any

// Input is a payload normalized against a kind schema. Nil pointers and nil slices
// mean the field was absent; a non-nil empty slice means it was sent empty.
type Input struct {
	Title         *string
	Description   *string
	SiteID        *string
	StartTime     *string
	TroubleSource *string
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	Reporters     []string
	Images        []string
	Attributes    map[string]string
	Note          string
	Actors        []string
	EntryImages   []string
	Version       *int64
}

func decode(schema domain.Schema, p Payload) (Input, error) {
	var in Input
	var err error

	if in.Title, err = p.str("title"); err != nil {
		return in, err
	}
	if in.Description, err = p.str("description"); err != nil {
		return in, err
	}
	if schema.Kind == domain.KindTrouble {
		if in.SiteID, err = p.str("siteId"); err != nil {
			return in, err
		}
		if in.StartTime, err = p.str("startTime"); err != nil {
			return in, err
		}
		reporters, err := p.strs("reporters")
		if err != nil {
			return in, err
		}
		in.Reporters = compact(reporters)
	}
	if schema.Kind == domain.KindMaintenance {
		if in.TroubleSource, err = p.str("troubleSource"); err != nil {
			return in, err
		}
	}

	status, err := p.str("status")
	if err != nil {
		return in, err
	}
	if status != nil {
		s := domain.TicketStatus(strings.TrimSpace(*status))
		in.Status = &s
	}
	if schema.HasPriority {
		priority, err := p.str("priority")
		if err != nil {
			return in, err
		}
		if priority != nil {
			pr := domain.TicketPriority(strings.TrimSpace(*priority))
			in.Priority = &pr
		}
	}

	if in.Images, err = p.strs("images"); err != nil {
		return in, err
	}

	note, err := p.str(schema.NoteField)
	if err != nil {
		return in, err
	}
	if note != nil {
		in.Note = strings.TrimSpace(*note)
	}
	actors, err := p.strs(schema.ActorsField)
	if err != nil {
		return in, err
	}
	in.Actors = compact(actors)
	if in.EntryImages, err = p.strs(schema.EntryImagesField); err != nil {
		return in, err
	}

	for _, name := range schema.Attributes {
		val, err := p.scalar(name)
		if err != nil {
			return in, err
		}
		if val == nil {
			continue
		}
		if in.Attributes == nil {
			in.Attributes = make(map[string]string)
		}
		in.Attributes[name] = *val
	}

	if in.Version, err = p.integer("version"); err != nil {
		return in, err
	}
	return in, nil
}

// maxExactInteger is the largest magnitude a JSON number keeps exactly as float64.
const maxExactInteger = 1 << 53

func (p Payload) integer(key string) (*int64, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var n int64
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > maxExactInteger {
			return nil, malformed(key, "an integer")
		}
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	default:
		return nil, malformed(key, "an integer")
	}
	return &n, nil
}

func (p Payload) str(key string) (*string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, malformed(key, "a string")
	}
	return &s, nil
}

func (p Payload) strs(key string) ([]string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, malformed(key, "an array of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, malformed(key, "an array of strings")
	}
}

// scalar accepts strings, numbers and booleans for opaque technical attributes.
func (p Payload) scalar(key string) (*string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return nil, malformed(key, "a scalar value")
	}
	return &s, nil
}

func malformed(field, want string) error {
	return fmt.Errorf("%w: %s must be %s", ErrMalformedPayload, field, want)
}

// compact trims entries and drops blanks. A present-but-empty list stays non-nil.
func compact(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
