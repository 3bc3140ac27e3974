package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	assert.True(t, CanTransition(TxStatusPending, TxStatusProcessing))
	assert.True(t, CanTransition(TxStatusPending, TxStatusSuccess))
	assert.True(t, CanTransition(TxStatusPending, TxStatusFailed))
	assert.True(t, CanTransition(TxStatusProcessing, TxStatusSuccess))
	assert.True(t, CanTransition(TxStatusProcessing, TxStatusFailed))
	assert.True(t, CanTransition(TxStatusSuccess, TxStatusRefunded))

	// No regressions out of terminal states.
	for _, terminal := range []string{TxStatusFailed, TxStatusRefunded} {
		for _, to := range []string{TxStatusPending, TxStatusProcessing, TxStatusSuccess} {
			assert.False(t, CanTransition(terminal, to), "%s -> %s must be rejected", terminal, to)
		}
	}
	assert.False(t, CanTransition(TxStatusSuccess, TxStatusPending))
	assert.False(t, CanTransition(TxStatusSuccess, TxStatusProcessing))
	assert.False(t, CanTransition(TxStatusProcessing, TxStatusPending))
}

func TestTerminalStatus(t *testing.T) {
	assert.False(t, TerminalStatus(TxStatusPending))
	assert.False(t, TerminalStatus(TxStatusProcessing))
	assert.True(t, TerminalStatus(TxStatusSuccess))
	assert.True(t, TerminalStatus(TxStatusFailed))
	assert.True(t, TerminalStatus(TxStatusRefunded))
}

func TestTimelineCheckpoints(t *testing.T) {
	now := time.Now()

	tx := Transaction{Status: TxStatusPending, InitiatedAt: now}
	steps := tx.Timeline()
	assert.Len(t, steps, 3)
	assert.True(t, steps[0].Complete)
	assert.False(t, steps[1].Complete)
	assert.False(t, steps[2].Complete)

	cb := now.Add(time.Minute)
	tx.Status = TxStatusProcessing
	tx.CallbackReceivedAt = &cb
	steps = tx.Timeline()
	assert.True(t, steps[1].Complete)
	assert.False(t, steps[2].Complete)

	done := now.Add(2 * time.Minute)
	tx.Status = TxStatusSuccess
	tx.CompletedAt = &done
	steps = tx.Timeline()
	assert.True(t, steps[2].Complete)
	assert.Equal(t, "Completed", steps[2].Label)

	tx.Status = TxStatusFailed
	steps = tx.Timeline()
	assert.Equal(t, "Failed", steps[2].Label)
	assert.True(t, steps[2].Complete)
}
