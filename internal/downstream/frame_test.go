package downstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g4klx/dapnetgateway/internal/paging"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, err := paging.New(1, 0xABCDEF, paging.FunctionalAlphanumeric, []byte("test payload"), time.Now())
	require.NoError(t, err)

	frame := EncodeFrame(msg)
	ric, functional, body, err := DecodeFrame(frame)
	require.NoError(t, err)

	assert.Equal(t, msg.RIC, ric)
	assert.Equal(t, msg.Functional, functional)
	assert.Equal(t, msg.Body, body)
}

func TestEncodeFrameHeaderLayout(t *testing.T) {
	msg, err := paging.New(1, 0x010203, paging.FunctionalNumeric, []byte("12345"), time.Now())
	require.NoError(t, err)

	frame := EncodeFrame(msg)
	require.Len(t, frame, 15)
	assert.Equal(t, "POCSAG", string(frame[:6]))
	assert.Equal(t, byte(0x01), frame[6])
	assert.Equal(t, byte(0x02), frame[7])
	assert.Equal(t, byte(0x03), frame[8])
	assert.Equal(t, byte(paging.FunctionalNumeric), frame[9])
	assert.Equal(t, "12345", string(frame[10:]))
}

func TestDecodeFrameRejectsShortFrames(t *testing.T) {
	_, _, _, err := DecodeFrame([]byte("short"))
	assert.Error(t, err)
}

func TestDecodeFrameRejectsBadMagic(t *testing.T) {
	frame := make([]byte, 10)
	copy(frame, "NOTPOCS")
	_, _, _, err := DecodeFrame(frame)
	assert.Error(t, err)
}
