package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	valid := []struct {
		from State
		ev   event
		to   State
	}{
		{StateUnmapped, eventSendBegin, StateBeginSent},
		{StateUnmapped, eventRecvBegin, StateBeginRcvd},
		{StateBeginSent, eventRecvBegin, StateMapped},
		{StateBeginRcvd, eventSendBegin, StateMapped},
		{StateMapped, eventSendEnd, StateEndSent},
		{StateMapped, eventRecvEnd, StateEndRcvd},
		{StateEndSent, eventRecvEnd, StateUnmapped},
		{StateEndRcvd, eventSendEnd, StateUnmapped},
		{StateDiscarding, eventRecvEnd, StateUnmapped},
	}

	for _, tc := range valid {
		t.Run(tc.from.String()+"/"+tc.ev.String(), func(t *testing.T) {
			next, err := transition(tc.from, tc.ev)
			require.NoError(t, err)
			assert.Equal(t, tc.to, next)
		})
	}
}

func TestTransitionRejectsUndefinedCombinations(t *testing.T) {
	states := []State{
		StateUnmapped, StateBeginSent, StateBeginRcvd, StateMapped,
		StateEndSent, StateEndRcvd, StateDiscarding,
	}
	events := []event{eventSendBegin, eventRecvBegin, eventSendEnd, eventRecvEnd}

	defined := map[State]map[event]bool{
		StateUnmapped:   {eventSendBegin: true, eventRecvBegin: true},
		StateBeginSent:  {eventRecvBegin: true},
		StateBeginRcvd:  {eventSendBegin: true},
		StateMapped:     {eventSendEnd: true, eventRecvEnd: true},
		StateEndSent:    {eventRecvEnd: true},
		StateEndRcvd:    {eventSendEnd: true},
		StateDiscarding: {eventRecvEnd: true},
	}

	for _, s := range states {
		for _, e := range events {
			if defined[s][e] {
				continue
			}
			next, err := transition(s, e)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s/%s", s, e)
			// A rejected event leaves the state unchanged.
			assert.Equal(t, s, next, "%s/%s", s, e)
		}
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UNMAPPED", StateUnmapped.String())
	assert.Equal(t, "DISCARDING", StateDiscarding.String())
	assert.Equal(t, "STATE(42)", State(42).String())
}
