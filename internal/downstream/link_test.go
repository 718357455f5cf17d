package downstream

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesPeer(t *testing.T) {
	l := &Link{peer: &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8011}}

	assert.True(t, l.matchesPeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8011}))
	assert.False(t, l.matchesPeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.2"), Port: 8011}))
	assert.False(t, l.matchesPeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}))
	assert.False(t, l.matchesPeer(nil))
}

func TestMatchesPeerNoPeerResolved(t *testing.T) {
	l := &Link{}
	assert.False(t, l.matchesPeer(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8011}))
}
