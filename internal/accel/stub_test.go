//go:build !opencv

package accel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeWithoutBackend(t *testing.T) {
	t.Parallel()

	p, err := Probe(ModeAuto, discardLogger())
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrAccelerationUnavailable)
	assert.Empty(t, Version())
}
