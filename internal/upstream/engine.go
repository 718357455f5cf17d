package upstream

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/g4klx/dapnetgateway/internal/paging"
)

// Backoff is the fixed reconnect/login-failure backoff table, in seconds,
// saturating at the last element.
var Backoff = [...]time.Duration{
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	10 * time.Second,
	20 * time.Second,
	60 * time.Second,
	120 * time.Second,
	240 * time.Second,
	480 * time.Second,
	600 * time.Second,
}

// BackoffFor returns Backoff[failCount], saturating at the table's last
// entry.
func BackoffFor(failCount int) time.Duration {
	if failCount >= len(Backoff) {
		failCount = len(Backoff) - 1
	}
	if failCount < 0 {
		failCount = 0
	}
	return Backoff[failCount]
}

// EventKind enumerates what HandleLine observed.
type EventKind int

const (
	EventNone EventKind = iota
	EventMessage
	EventSchedule
	EventLoginFailed
)

// Event carries the decoded payload for EventMessage/EventSchedule, and
// the backoff the supervisor must sleep for EventLoginFailed. The sleep
// is the caller's job so the acknowledgement line goes out before the
// stall, not after it.
type Event struct {
	Kind     EventKind
	Message  paging.Message
	Schedule paging.Schedule
	Backoff  time.Duration
}

// Engine is the upstream protocol state machine. It is not safe for
// concurrent use.
type Engine struct {
	LoggedIn  bool
	FailCount int

	now func() time.Time
}

// NewEngine constructs an Engine ready to process lines from a freshly
// opened connection (LoggedIn starts false).
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// HandleLine dispatches a single received line by its first byte per the
// tag table, returning zero or more lines to write back (in
// order, CRLF appended by the caller/Link) and an Event describing any
// side effect the dispatcher cares about.
func (e *Engine) HandleLine(line string) ([]string, Event) {
	if line == "" {
		return nil, Event{}
	}

	switch line[0] {
	case '+':
		return nil, Event{}

	case '-':
		log.Warn("An error has been reported by DAPNET")
		return nil, Event{}

	case '2':
		return e.handleTimeSync(line)

	case '3':
		return []string{"+"}, Event{}

	case '4':
		return e.handleSchedule(line)

	case '7':
		return e.handleLoginFailed(line)

	case '#':
		return e.handleMessage(line)

	default:
		log.Warnf("An unknown message from DAPNET: %q", line)
		return []string{"-"}, Event{}
	}
}

func (e *Engine) handleTimeSync(line string) ([]string, Event) {
	if !e.LoggedIn {
		e.LoggedIn = true
		log.Info("Logged into the DAPNET network")
	}

	echoed := line + ":0000"
	return []string{echoed, "+"}, Event{}
}

func (e *Engine) handleSchedule(line string) ([]string, Event) {
	token := ""
	if len(line) > 1 {
		token = line[1:]
	}
	token = strings.TrimSpace(token)

	sched := paging.ParseSchedule(token)

	if sched.AllSlots {
		log.Info("All slots are available for transmission")
	} else {
		log.Infof("Loaded new schedule: %s", sched.String())
	}

	return []string{"+"}, Event{Kind: EventSchedule, Schedule: sched}
}

func (e *Engine) handleLoginFailed(line string) ([]string, Event) {
	reason := strings.TrimSpace(line[1:])
	log.Infof("Login failed: %s", reason)

	backoff := BackoffFor(e.FailCount)
	if e.FailCount < len(Backoff)-1 {
		e.FailCount++
	}

	return []string{"+"}, Event{Kind: EventLoginFailed, Backoff: backoff}
}

// handleMessage parses a "#<id><anything><fields...>" paging record. The
// sequence id occupies the two hex digits right after '#'; the five
// colon-separated fields start at byte offset 4.
func (e *Engine) handleMessage(line string) ([]string, Event) {
	if len(line) < 3 {
		return nil, Event{}
	}

	id, err := strconv.ParseUint(line[1:3], 16, 8)
	if err != nil {
		return nil, Event{}
	}
	nextID := (id + 1) % 256

	if len(line) < 4 {
		return []string{fmt.Sprintf("#%02X -", nextID)}, Event{}
	}

	fields := strings.SplitN(line[4:], ":", 5)
	if len(fields) != 5 {
		log.Debugf("Received a malformed message from DAPNET: %q", line)
		return []string{fmt.Sprintf("#%02X -", nextID)}, Event{}
	}
	for _, f := range fields {
		if f == "" {
			log.Debugf("Received a malformed message from DAPNET: %q", line)
			return []string{fmt.Sprintf("#%02X -", nextID)}, Event{}
		}
	}

	msgType, err1 := strconv.ParseUint(fields[0], 10, 8)
	ric, err2 := strconv.ParseUint(fields[2], 16, 32)
	functional, err3 := strconv.ParseUint(fields[3], 10, 8)
	body := fields[4]

	if err1 != nil || err2 != nil || err3 != nil {
		log.Debugf("Received a malformed message from DAPNET: %q", line)
		return []string{fmt.Sprintf("#%02X -", nextID)}, Event{}
	}

	// Functional codes >=4 are silently dropped: no ack at all, distinct
	// from a malformed record.
	if functional >= 4 {
		log.Debugf("Dropping message with unknown functional code %d: %q", functional, line)
		return nil, Event{}
	}

	msg, err := paging.New(uint8(msgType), uint32(ric), paging.Functional(functional), []byte(body), e.now())
	if err != nil {
		log.Debugf("Rejecting message from DAPNET: %v", err)
		return []string{fmt.Sprintf("#%02X -", nextID)}, Event{}
	}

	return []string{fmt.Sprintf("#%02X +", nextID)}, Event{Kind: EventMessage, Message: msg}
}

// LoginLine builds the exact login string (CRLF appended by
// the caller). callsign is lowercased per the upstream convention.
func LoginLine(version, callsign, authKey string) (string, error) {
	if authKey == "" || authKey == "TOPSECRET" {
		return "", fmt.Errorf("upstream: AuthKey not set or invalid")
	}
	return fmt.Sprintf("[DAPNETGateway v%s %s %s]", version, strings.ToLower(callsign), authKey), nil
}
