// Package downstream implements the POCSAG modem-facing UDP link: frame
// encoding, beacon decoding, and peer-address validation.
package downstream

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/g4klx/dapnetgateway/internal/paging"
)

// Beacon is the decoded state of a single downstream datagram's first
// byte.
type Beacon int

const (
	BeaconUnknown Beacon = iota
	BeaconIdle
	BeaconBusy
)

const (
	beaconIdleByte = 0x00
	beaconBusyByte = 0xFF
)

// Link is a bound UDP socket talking to a single, resolved peer. The peer
// is resolved once at Open; failure to resolve is fatal.
type Link struct {
	LocalAddress  string
	LocalPort     int
	RemoteAddress string
	RemotePort    int
	Debug         bool

	conn *net.UDPConn
	peer *net.UDPAddr
}

// NewLink constructs a Link. Call Open before any other method.
func NewLink(localAddress string, localPort int, remoteAddress string, remotePort int, debug bool) *Link {
	return &Link{
		LocalAddress:  localAddress,
		LocalPort:     localPort,
		RemoteAddress: remoteAddress,
		RemotePort:    remotePort,
		Debug:         debug,
	}
}

// Open resolves the remote peer and binds the local socket.
func (l *Link) Open() error {
	peer, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", l.RemoteAddress, l.RemotePort))
	if err != nil {
		return fmt.Errorf("downstream: unable to resolve the address of the host: %w", err)
	}
	l.peer = peer

	local := &net.UDPAddr{IP: net.ParseIP(l.LocalAddress), Port: l.LocalPort}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return fmt.Errorf("downstream: open failed: %w", err)
	}
	l.conn = conn

	log.Info("Opening POCSAG network connection")
	return nil
}

// Close releases the socket.
func (l *Link) Close() {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	log.Info("Closing POCSAG network connection")
}

// ReadBeacon performs one non-blocking-ish read (via a minimal deadline,
// matching Link.ReadLine's approach in the upstream package) and decodes
// the first byte as an idle/busy beacon. Datagrams from an address other
// than the resolved peer are logged and dropped. It returns
// BeaconUnknown if nothing was read or the datagram was rejected.
func (l *Link) ReadBeacon(deadline time.Time) Beacon {
	if l.conn == nil {
		return BeaconUnknown
	}

	_ = l.conn.SetReadDeadline(deadline)

	buf := make([]byte, 200)
	n, addr, err := l.conn.ReadFromUDP(buf)
	if err != nil || n == 0 {
		return BeaconUnknown
	}

	if !l.matchesPeer(addr) {
		log.Warn("Received a packet from an unknown address")
		return BeaconUnknown
	}

	if l.Debug {
		log.Debugf("POCSAG Network Data Received: % X", buf[:n])
	}

	switch buf[0] {
	case beaconIdleByte:
		return BeaconIdle
	case beaconBusyByte:
		return BeaconBusy
	default:
		log.Warnf("Unknown data from the MMDVM - 0x%02X", buf[0])
		return BeaconUnknown
	}
}

func (l *Link) matchesPeer(addr *net.UDPAddr) bool {
	if l.peer == nil || addr == nil {
		return false
	}
	return l.peer.IP.Equal(addr.IP) && l.peer.Port == addr.Port
}

// Send encodes msg into its POCSAG frame and writes it to the peer. A
// write error is logged but never treated as fatal: the caller has no
// feedback channel and must consider the message sent regardless.
func (l *Link) Send(msg paging.Message) error {
	frame := EncodeFrame(msg)

	if l.Debug {
		log.Debugf("POCSAG Network Data Sent: % X", frame)
	}

	_, err := l.conn.WriteToUDP(frame, l.peer)
	if err != nil {
		log.Warnf("Error when writing to the POCSAG network: %v", err)
	}
	return err
}
