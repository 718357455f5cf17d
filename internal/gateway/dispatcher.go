package gateway

import (
	log "github.com/sirupsen/logrus"

	"github.com/g4klx/dapnetgateway/internal/paging"
	"github.com/g4klx/dapnetgateway/internal/queue"
)

// Dispatcher owns the pending-message queue, the current schedule, the
// slot clock, the per-slot codeword budget, and the modem idle flag. It
// is driven entirely from the single-threaded event loop in Gateway and
// is not safe for concurrent use.
type Dispatcher struct {
	clock *SlotClock
	queue queue.Queue

	schedule    paging.Schedule
	hasSchedule bool
	currentSlot int

	sentCodewords int
	modemIdle     bool
}

// NewDispatcher constructs a Dispatcher bound to clock. currentSlot is
// seeded to -1 so the very first AdvanceSlot call always sees the slot
// as "changed".
func NewDispatcher(clock *SlotClock) *Dispatcher {
	return &Dispatcher{clock: clock, currentSlot: -1}
}

// Enqueue pushes msg to the front of the queue.
func (d *Dispatcher) Enqueue(msg paging.Message) {
	d.queue.PushFront(msg)
}

// QueueLen reports how many messages are pending.
func (d *Dispatcher) QueueLen() int {
	return d.queue.Len()
}

// SetModemIdle updates the modem idle/busy flag. On the busy-to-idle edge
// it conservatively recomputes sentCodewords as if the modem had been
// transmitting continuously for the elapsed portion of the slot, so the
// slot cannot be over-filled on recovery.
func (d *Dispatcher) SetModemIdle(idle bool) {
	if idle && !d.modemIdle {
		d.sentCodewords = int((d.clock.ElapsedMS() * 1000) / CodewordTimeUS)
	}
	d.modemIdle = idle
}

// ModemIdle reports the current modem state.
func (d *Dispatcher) ModemIdle() bool {
	return d.modemIdle
}

// AdvanceSlot recomputes the current slot from the clock. When the slot
// has changed, it resets the codeword budget and the in-slot timer, and,
// if a schedule refresh is due (no schedule has ever been received, or
// the cycle has wrapped back to slot 0), consumes a pending schedule from
// takePending. When takePending has nothing, the old schedule is kept.
func (d *Dispatcher) AdvanceSlot(takePending func() (paging.Schedule, bool)) {
	slot := d.clock.CurrentSlot()
	if slot == d.currentSlot {
		return
	}
	d.currentSlot = slot

	if !d.hasSchedule || slot == 0 {
		if s, ok := takePending(); ok {
			d.schedule = s
			d.hasSchedule = true
		}
	}

	d.sentCodewords = 0
	d.clock.ResetSlotTimer()
}

// SendOutcome describes what TrySend did this tick.
type SendOutcome struct {
	Attempted bool // a message was popped and handed to send
	Sent      bool // the message was handed to send (false only when a stale time-sync was dropped)
	Message   paging.Message
}

// TrySend implements the per-tick send decision. At most one message is
// sent per call: send is invoked with the chosen message and should hand
// it to the downstream link. A downstream write error is not a send
// failure; TrySend returns Sent=false only for a time-sync message
// dropped for staleness without ever calling send.
func (d *Dispatcher) TrySend(send func(paging.Message)) SendOutcome {
	if !d.modemIdle {
		return SendOutcome{}
	}
	if !d.hasSchedule {
		return SendOutcome{}
	}
	if !d.schedule.Slots[d.currentSlot] {
		return SendOutcome{}
	}

	msg, ok := d.queue.Back()
	if !ok {
		return SendOutcome{}
	}

	if d.schedule.AllSlots {
		d.queue.PopBack()
		sent := d.sendMessage(msg, send)
		return SendOutcome{Attempted: true, Sent: sent, Message: msg}
	}

	cw := Codewords(msg)
	total := d.sentCodewords + PreambleLengthCW + cw
	if total >= CodewordsPerSlot {
		// No room left in this slot; leave the message at the back of
		// the queue for the next eligible slot.
		return SendOutcome{}
	}

	sendTimeMS := (PreambleLengthCW + cw) * CodewordTimeUS / 1000
	timeLeftMS := SlotTimeMS - d.clock.ElapsedMS()
	if int64(sendTimeMS) >= timeLeftMS {
		return SendOutcome{}
	}

	d.queue.PopBack()
	sent := d.sendMessage(msg, send)
	if sent {
		d.sentCodewords = total
	}
	return SendOutcome{Attempted: true, Sent: sent, Message: msg}
}

// sendMessage implements the time-sync aging rule: a
// time-sync message queued for more than 15000ms is dropped silently
// instead of transmitted. Every other message is always sent.
func (d *Dispatcher) sendMessage(msg paging.Message, send func(paging.Message)) bool {
	if msg.IsTimeSync() {
		age := d.clock.Now().Sub(msg.QueuedAt)
		if age.Milliseconds() > maxTimeToHoldTimeMessagesMS {
			log.Debugf("Rejecting stale time-sync message to %07d, type %d", msg.RIC, msg.Type)
			return false
		}
	}

	send(msg)
	return true
}

// Snapshot is a read-only copy of dispatcher state for the status API.
type Snapshot struct {
	CurrentSlot   int
	Schedule      paging.Schedule
	HasSchedule   bool
	SentCodewords int
	ModemIdle     bool
	QueueDepth    int
}

// Snapshot returns a point-in-time copy of the dispatcher's state for the
// status API. The event loop remains the sole writer of the underlying
// state; the returned value shares no storage with it.
func (d *Dispatcher) Snapshot() Snapshot {
	return Snapshot{
		CurrentSlot:   d.currentSlot,
		Schedule:      d.schedule,
		HasSchedule:   d.hasSchedule,
		SentCodewords: d.sentCodewords,
		ModemIdle:     d.modemIdle,
		QueueDepth:    d.queue.Len(),
	}
}
