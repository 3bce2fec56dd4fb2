package task

import (
	"fmt"
	"strings"
	"time"
)

// Fields is the user input for the add-task operation.
type Fields struct {
	Title       string
	Description string
	DueDate     time.Time
	Priority    Priority
}

// Validate trims the text fields and checks that title, description and due
// date are present. The returned Fields carry the normalized values.
func (f Fields) Validate() (Fields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)

	var missing []string
	if f.Title == "" {
		missing = append(missing, "title")
	}
	if f.Description == "" {
		missing = append(missing, "description")
	}
	if f.DueDate.IsZero() {
		missing = append(missing, "due date")
	}
	if len(missing) > 0 {
		return f, fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	if f.Priority == "" {
		f.Priority = DefaultPriority
	}
	if !f.Priority.Valid() {
		return f, fmt.Errorf("%w: %w: %q", ErrInvalidInput, ErrInvalidPriority, string(f.Priority))
	}
	return f, nil
}

// DueLayouts are the accepted due date input formats, tried in order.
// The first mirrors an HTML datetime-local input.
var DueLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

// ParseDue parses a due date in loc (time.Local when nil).
func ParseDue(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing due date", ErrInvalidInput)
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range DueLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid due date %q (use YYYY-MM-DDTHH:MM)", ErrInvalidInput, raw)
}
