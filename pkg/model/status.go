package model

import (
	"fmt"
	"time"
)

type Priority int

const (
	PriorityRoutine Priority = iota
	PriorityMilestone
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityRoutine:
		return "routine"
	case PriorityMilestone:
		return "milestone"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	switch string(b) {
	case "routine":
		*p = PriorityRoutine
	case "milestone":
		*p = PriorityMilestone
	case "critical":
		*p = PriorityCritical
	default:
		return fmt.Errorf("unknown priority %q", string(b))
	}
	return nil
}

type StatusMessage struct {
	Priority Priority  `json:"priority"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}
