package gatewayproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopCancelsContext(t *testing.T) {
	s := New()
	assert.NoError(t, s.Context().Err())

	s.Stop()
	assert.Error(t, s.Context().Err())
	assert.False(t, s.ShouldReload())
}
