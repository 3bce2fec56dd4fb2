package task

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority is used when the add form leaves priority empty.
const DefaultPriority = PriorityMedium

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func (p Priority) String() string { return string(p) }

// ParsePriority accepts the canonical labels case-insensitively.
// An empty string yields DefaultPriority.
func ParsePriority(raw string) (Priority, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return DefaultPriority, nil
	}
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q (want low, medium or high)", ErrInvalidPriority, raw)
	}
	return p, nil
}

// UnmarshalJSON is lenient: persisted data with an unknown label decodes as
// DefaultPriority instead of failing the whole task list.
func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*p = DefaultPriority
		return nil
	}
	v, err := ParsePriority(s)
	if err != nil {
		v = DefaultPriority
	}
	*p = v
	return nil
}
