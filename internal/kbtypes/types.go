// Package kbtypes holds the data model shared by every layer of the
// knowledge-base engine: the Item record, its base-type taxonomy, and the
// small value types (Date, ClockTime, Ref) that give the Markdown front
// matter and the relational index a single source of truth for shape.
package kbtypes

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BaseType is one of the three field-set families a user-defined type can
// be built on (spec §3.1, §4.5).
type BaseType string

const (
	BaseTasks     BaseType = "tasks"
	BaseDocuments BaseType = "documents"
	BaseSessions  BaseType = "sessions"
)

// Valid reports whether b is one of the three recognised base kinds.
func (b BaseType) Valid() bool {
	switch b {
	case BaseTasks, BaseDocuments, BaseSessions:
		return true
	}
	return false
}

// Priority is one of the three fixed item priorities.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a recognised priority or empty (which
// NormalizedOrDefault maps to medium).
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow, "":
		return true
	}
	return false
}

// NormalizedOrDefault returns p, defaulting to medium when empty.
func (p Priority) NormalizedOrDefault() Priority {
	if p == "" {
		return PriorityMedium
	}
	return p
}

// Reserved type names a user can never create, rename, or delete
// (spec §3.1, §4.5).
const (
	TypeSessions = "sessions"
	TypeDailies  = "dailies"
)

// IsReservedType reports whether name is one of the built-in reserved
// type names.
func IsReservedType(name string) bool {
	return name == TypeSessions || name == TypeDailies
}

// Date is a calendar date with no time-of-day component, rendered as
// YYYY-MM-DD in both YAML front matter and JSON.
type Date struct {
	Year, Month, Day int
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// DateFromTime truncates t to its calendar date in t's own location.
func DateFromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Date) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ClockTime is a time-of-day with second precision, used only by the
// sessions base type, rendered as HH:MM:SS.
type ClockTime struct {
	Hour, Minute, Second int
}

// ParseClockTime parses a strict HH:MM:SS string.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

func (c ClockTime) IsZero() bool { return c.Hour == 0 && c.Minute == 0 && c.Second == 0 }

func (c ClockTime) MarshalYAML() (any, error) { return c.String(), nil }

func (c *ClockTime) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ClockTime) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Ref is a typed reference to another item, rendered as "<type>-<id>"
// (spec §4.7, §6). Splitting happens on the first hyphen only, so ids
// that themselves contain hyphens (session ids, dates) survive the
// round trip.
type Ref struct {
	Type string
	ID   string
}

func (r Ref) String() string { return r.Type + "-" + r.ID }

func (r Ref) IsZero() bool { return r.Type == "" && r.ID == "" }

// ParseRef splits "<type>-<id>" on the first hyphen. It returns an error
// if there is no hyphen or either half is empty.
func ParseRef(s string) (Ref, error) {
	idx := strings.Index(s, "-")
	if idx <= 0 || idx == len(s)-1 {
		return Ref{}, fmt.Errorf("malformed reference %q", s)
	}
	return Ref{Type: s[:idx], ID: s[idx+1:]}, nil
}

// Item is the single record shape covering every content kind
// (spec §3.1). Extra carries front-matter keys the codec doesn't know
// about so they survive a read-modify-write cycle unchanged (spec §4.1).
type Item struct {
	Type        string
	ID          string
	Title       string
	Description string
	Content     string
	Priority    Priority
	StatusID    int64
	StatusName  string
	StartDate   *Date
	EndDate     *Date
	StartTime   *ClockTime
	Tags        []string
	Related     []Ref
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Extra       map[string]any
}

// Summary is the lightweight projection list returns: no Content.
type Summary struct {
	Type        string
	ID          string
	Title       string
	Description string
	Priority    Priority
	StatusID    int64
	StatusName  string
	IsClosed    bool
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizedTags returns a deduplicated, sorted copy of tags with each
// entry trimmed. Used at every write boundary so the persisted set is
// deterministic (spec §8 property 3).
func NormalizedTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Status is a named workflow state (spec §3.1).
type Status struct {
	ID        int64
	Name      string
	IsClosed  bool
	CreatedAt time.Time
}

// Tag is a unique label (spec §3.1).
type Tag struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// TagWithCount augments Tag with a usage count across all item types.
type TagWithCount struct {
	Tag
	Count int64
}

// TypeDefinition is a dynamically registered item type (spec §3.1, §4.5).
type TypeDefinition struct {
	Type        string
	BaseType    BaseType
	Description string
	Sequence    int64
}

// TypeNamePattern is the validation regex source for type names, spec §3.1:
// ^[a-z][a-z0-9_]{0,49}$
const TypeNamePattern = `^[a-z][a-z0-9_]{0,49}$`

// CurrentState is the singleton latest-version scratch record (spec §3.1).
type CurrentState struct {
	Content   string
	Tags      []string
	Metadata  map[string]any
	Version   int64
	IsActive  bool
	CreatedAt time.Time
}

// FieldsFor returns the field names a base type is expected to carry,
// for tool-argument validation (spec §4.5). This informs validation; it
// never constrains what the store will actually persist.
func FieldsFor(base BaseType) []string {
	switch base {
	case BaseTasks:
		return []string{"priority", "status", "start_date", "end_date", "related"}
	case BaseDocuments:
		return []string{"related"}
	case BaseSessions:
		return []string{"content?", "start_time", "related"}
	default:
		return nil
	}
}

// FormatSequenceID renders an auto-numbered sequence value as its
// canonical decimal id string.
func FormatSequenceID(n int64) string { return strconv.FormatInt(n, 10) }
