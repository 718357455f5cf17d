package downstream

import (
	"fmt"

	"github.com/g4klx/dapnetgateway/internal/paging"
)

// frameMagic is the literal 6-byte preamble of every outbound POCSAG
// frame.
var frameMagic = [6]byte{'P', 'O', 'C', 'S', 'A', 'G'}

// EncodeFrame builds the 10-byte-header + body datagram:
// "POCSAG" + 3-byte big-endian RIC + 1-byte functional + body.
func EncodeFrame(msg paging.Message) []byte {
	frame := make([]byte, 10+len(msg.Body))
	copy(frame[0:6], frameMagic[:])
	frame[6] = byte(msg.RIC >> 16)
	frame[7] = byte(msg.RIC >> 8)
	frame[8] = byte(msg.RIC)
	frame[9] = byte(msg.Functional)
	copy(frame[10:], msg.Body)
	return frame
}

// DecodeFrame is the inverse of EncodeFrame, used by tests to verify the
// encoding round-trips.
func DecodeFrame(frame []byte) (ric uint32, functional paging.Functional, body []byte, err error) {
	if len(frame) < 10 {
		return 0, 0, nil, fmt.Errorf("downstream: frame too short (%d bytes)", len(frame))
	}
	for i, b := range frameMagic {
		if frame[i] != b {
			return 0, 0, nil, fmt.Errorf("downstream: bad magic %q", frame[:6])
		}
	}

	ric = uint32(frame[6])<<16 | uint32(frame[7])<<8 | uint32(frame[8])
	functional = paging.Functional(frame[9])
	body = append([]byte(nil), frame[10:]...)
	return ric, functional, body, nil
}
