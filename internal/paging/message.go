// Package paging holds the value types that flow through the gateway:
// a decoded POCSAG paging message and the 16-slot transmission schedule.
package paging

import (
	"fmt"
	"time"
)

// Functional is the 2-bit POCSAG address suffix.
type Functional uint8

const (
	FunctionalNumeric Functional = iota
	FunctionalAlert1
	FunctionalAlert2
	FunctionalAlphanumeric
)

func (f Functional) String() string {
	switch f {
	case FunctionalNumeric:
		return "Numeric"
	case FunctionalAlert1:
		return "Alert 1"
	case FunctionalAlert2:
		return "Alert 2"
	case FunctionalAlphanumeric:
		return "Alphanumeric"
	default:
		return fmt.Sprintf("Functional(%d)", uint8(f))
	}
}

// Message is a single transmission candidate, owned exclusively by the
// dispatcher's queue from the moment it is constructed until it is either
// sent or dropped.
type Message struct {
	Type       uint8
	RIC        uint32 // 24-bit receiver identifier, 1..2^24-1
	Functional Functional
	Body       []byte
	QueuedAt   time.Time
}

// New constructs a Message, copying body so the caller's buffer can be
// reused. It returns an error if the invariants are violated.
func New(msgType uint8, ric uint32, functional Functional, body []byte, queuedAt time.Time) (Message, error) {
	if ric == 0 || ric > 0xFFFFFF {
		return Message{}, fmt.Errorf("paging: invalid RIC %d", ric)
	}
	if functional > FunctionalAlphanumeric {
		return Message{}, fmt.Errorf("paging: invalid functional code %d", functional)
	}
	if len(body) == 0 && functional != FunctionalAlert1 {
		return Message{}, fmt.Errorf("paging: empty body not allowed for functional %s", functional)
	}

	buf := make([]byte, len(body))
	copy(buf, body)

	return Message{
		Type:       msgType,
		RIC:        ric,
		Functional: functional,
		Body:       buf,
		QueuedAt:   queuedAt,
	}, nil
}

// Length is the byte count of Body.
func (m Message) Length() int {
	return len(m.Body)
}

// IsTimeSync reports whether m carries a clock update.
func (m Message) IsTimeSync() bool {
	if m.Type == 5 && m.Functional == FunctionalNumeric {
		return true
	}
	if m.Type == 6 && m.Functional == FunctionalAlphanumeric && hasPrefix(m.Body, "XTIME=") {
		return true
	}
	return false
}

func hasPrefix(body []byte, prefix string) bool {
	if len(body) < len(prefix) {
		return false
	}
	return string(body[:len(prefix)]) == prefix
}
