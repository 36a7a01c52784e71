package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned when a persisted status string is not one of
// the known names.
var ErrUnknownStatus = errors.New("unknown batch status")

// Status is the persisted validation status of a batch. The zero value means
// no status has ever been recorded.
type Status uint8

const (
	StatusNone Status = iota
	StatusRunning
	StatusValid
	StatusInvalid
	StatusError
)

var statusNames = map[Status]string{
	StatusRunning: "RUNNING",
	StatusValid:   "VALID",
	StatusInvalid: "INVALID",
	StatusError:   "ERROR",
}

// Statuses lists every recorded status, in lifecycle order.
func Statuses() []Status {
	return []Status{StatusRunning, StatusValid, StatusInvalid, StatusError}
}

// String returns the persisted name, or "" for StatusNone.
func (s Status) String() string {
	return statusNames[s]
}

// IsTerminal reports whether s ends a validation run.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusError:
		return true
	default:
		return false
	}
}

// ParseStatus parses a persisted status name. The empty string parses to StatusNone.
func ParseStatus(s string) (Status, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return StatusNone, nil
	}
	for _, st := range Statuses() {
		if st.String() == name {
			return st, nil
		}
	}
	return StatusNone, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s Status) MarshalJSON() ([]byte, error) {
	if s == StatusNone {
		return []byte("null"), nil
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = StatusNone
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	st, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
