package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g4klx/dapnetgateway/internal/paging"
)

func newTestDispatcher(fc *fakeClock) *Dispatcher {
	return NewDispatcher(NewSlotClock(fc.now))
}

func noSchedule() (paging.Schedule, bool) { return paging.Schedule{}, false }

func TestTrySendNoOpWhenModemBusy(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)
	d.AdvanceSlot(noSchedule)
	d.Enqueue(mustMsg(t, paging.FunctionalAlphanumeric, 10))

	var sent []paging.Message
	out := d.TrySend(func(m paging.Message) { sent = append(sent, m) })
	assert.False(t, out.Attempted)
	assert.Empty(t, sent)
}

func TestTrySendNoOpWithoutSchedule(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)
	d.SetModemIdle(true)
	d.Enqueue(mustMsg(t, paging.FunctionalAlphanumeric, 10))

	out := d.TrySend(func(paging.Message) {})
	assert.False(t, out.Attempted)
}

func TestTrySendNoOpWhenSlotNotScheduled(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)
	d.SetModemIdle(true)
	d.AdvanceSlot(func() (paging.Schedule, bool) {
		return paging.ParseSchedule("1"), true // only slot 1, current slot is 0
	})
	d.Enqueue(mustMsg(t, paging.FunctionalAlphanumeric, 10))

	out := d.TrySend(func(paging.Message) {})
	assert.False(t, out.Attempted)
}

func TestTrySendAllSlotsFastPath(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)
	d.SetModemIdle(true)
	d.AdvanceSlot(func() (paging.Schedule, bool) {
		return paging.ParseSchedule("0123456789ABCDEF"), true
	})
	msg := mustMsg(t, paging.FunctionalAlphanumeric, 10)
	d.Enqueue(msg)

	var sent []paging.Message
	out := d.TrySend(func(m paging.Message) { sent = append(sent, m) })
	assert.True(t, out.Attempted)
	require.Len(t, sent, 1)
	assert.Equal(t, msg.RIC, sent[0].RIC)
	assert.Equal(t, 0, d.QueueLen())
}

func TestTrySendRespectsCodewordBudget(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)
	d.SetModemIdle(true)
	d.AdvanceSlot(func() (paging.Schedule, bool) {
		return paging.ParseSchedule("0"), true // current slot is 0, eligible
	})

	// Force sentCodewords to the edge of the CodewordsPerSlot (239) slot budget.
	d.sentCodewords = CodewordsPerSlot - PreambleLengthCW - 1

	msg := mustMsg(t, paging.FunctionalAlphanumeric, 60) // Codewords == 28
	d.Enqueue(msg)

	out := d.TrySend(func(paging.Message) {})
	assert.False(t, out.Attempted)
	assert.Equal(t, 1, d.QueueLen(), "message should remain queued for the next eligible slot")
}

func TestTrySendRespectsTimeLeftInSlot(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)
	d.SetModemIdle(true)
	d.AdvanceSlot(func() (paging.Schedule, bool) {
		return paging.ParseSchedule("0"), true
	})

	// Leave almost no time remaining in the slot.
	fc.advance(time.Duration(SlotTimeMS-1) * time.Millisecond)

	msg := mustMsg(t, paging.FunctionalAlphanumeric, 60)
	d.Enqueue(msg)

	out := d.TrySend(func(paging.Message) {})
	assert.False(t, out.Attempted)
}

func TestSetModemIdleRecomputesSentCodewordsOnBusyToIdleEdge(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)
	d.SetModemIdle(false)

	fc.advance(1 * time.Second)
	d.SetModemIdle(true)

	want := int((1000 * time.Millisecond).Microseconds() / CodewordTimeUS)
	assert.Equal(t, want, d.sentCodewords)
}

func TestAdvanceSlotRefreshesScheduleOnlyWhenDue(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)

	calls := 0
	take := func() (paging.Schedule, bool) {
		calls++
		return paging.ParseSchedule("0"), true
	}

	d.AdvanceSlot(take) // first call: no schedule yet, refreshes
	assert.Equal(t, 1, calls)

	fc.advance(6400 * time.Millisecond) // moves to slot 1, schedule already held
	d.AdvanceSlot(take)
	assert.Equal(t, 1, calls, "should not refresh mid-cycle once a schedule is held")

	fc.advance(15 * 6400 * time.Millisecond) // wraps back to slot 0
	d.AdvanceSlot(take)
	assert.Equal(t, 2, calls, "should refresh again at slot 0")
}

func TestSendMessageDropsStaleTimeSync(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	d := newTestDispatcher(fc)
	d.SetModemIdle(true)
	d.AdvanceSlot(func() (paging.Schedule, bool) {
		return paging.ParseSchedule("0123456789ABCDEF"), true
	})

	msg, err := paging.New(5, 100, paging.FunctionalNumeric, []byte("12345"), fc.now())
	require.NoError(t, err)
	d.Enqueue(msg)

	fc.advance(16 * time.Second) // older than the 15s time-sync ceiling

	var sent []paging.Message
	out := d.TrySend(func(m paging.Message) { sent = append(sent, m) })
	assert.True(t, out.Attempted)
	assert.False(t, out.Sent)
	assert.Empty(t, sent)
}
