package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScheduleAllSlots(t *testing.T) {
	s := ParseSchedule("0123456789ABCDEF")
	assert.True(t, s.AllSlots)
	for i := 0; i < 16; i++ {
		assert.True(t, s.Slots[i], "slot %d", i)
	}
}

func TestParseScheduleSubset(t *testing.T) {
	s := ParseSchedule("048C")
	assert.False(t, s.AllSlots)
	for i := 0; i < 16; i++ {
		want := i == 0 || i == 4 || i == 8 || i == 12
		assert.Equal(t, want, s.Slots[i], "slot %d", i)
	}
}

func TestParseScheduleLowercaseAndWhitespace(t *testing.T) {
	s := ParseSchedule("  048c  ")
	assert.True(t, s.Slots[0])
	assert.True(t, s.Slots[4])
	assert.True(t, s.Slots[8])
	assert.True(t, s.Slots[12])
}

func TestParseScheduleEmpty(t *testing.T) {
	s := ParseSchedule("")
	assert.False(t, s.AllSlots)
	for i := 0; i < 16; i++ {
		assert.False(t, s.Slots[i])
	}
}

// TestParseScheduleIdempotent verifies that re-parsing the rendered form
// of a schedule reproduces the same schedule.
func TestParseScheduleIdempotent(t *testing.T) {
	original := ParseSchedule("048C")
	rendered := original.String()

	hex := ""
	for i := 0; i < 16; i++ {
		if rendered[i] == '*' {
			hex += string("0123456789ABCDEF"[i])
		}
	}

	reparsed := ParseSchedule(hex)
	assert.Equal(t, original, reparsed)
}

func TestScheduleString(t *testing.T) {
	s := ParseSchedule("01")
	assert.Equal(t, "**--------------", s.String())
}
