package trading

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestMarketHealth_TripsOnThirdConsecutiveFailure(t *testing.T) {
	h := NewMarketHealth(zerolog.Nop())

	h.RecordFailure()
	h.RecordFailure()
	assert.True(t, h.Healthy(), "two failures are tolerated")

	h.RecordFailure()
	assert.False(t, h.Healthy())
}

func TestMarketHealth_SuccessResetsStreak(t *testing.T) {
	h := NewMarketHealth(zerolog.Nop())

	h.RecordFailure()
	h.RecordFailure()
	h.RecordSuccess()
	h.RecordFailure()
	h.RecordFailure()
	assert.True(t, h.Healthy(), "the streak must be consecutive")
}

func TestMarketHealth_SuccessClearsTrippedFlag(t *testing.T) {
	h := NewMarketHealth(zerolog.Nop())

	h.RecordFailure()
	h.RecordFailure()
	h.RecordFailure()
	assert.False(t, h.Healthy())

	h.RecordSuccess()
	assert.True(t, h.Healthy())
}
