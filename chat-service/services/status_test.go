package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	allowed := [][2]Status{
		{StatusIdle, StatusSending},
		{StatusSending, StatusProcessing},
		{StatusSending, StatusError},
		{StatusProcessing, StatusReceiving},
		{StatusProcessing, StatusError},
		{StatusReceiving, StatusIdle},
		{StatusReceiving, StatusError},
		{StatusError, StatusIdle},
		{StatusError, StatusSending},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	denied := [][2]Status{
		{StatusIdle, StatusProcessing},
		{StatusIdle, StatusError},
		{StatusSending, StatusIdle},
		{StatusProcessing, StatusIdle},
		{StatusReceiving, StatusSending},
		{StatusError, StatusReceiving},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestStatusMachineKeepsStateOnInvalidTransition(t *testing.T) {
	m := NewStatusMachine()
	require.NoError(t, m.Transition(StatusSending))

	err := m.Transition(StatusReceiving)
	require.Error(t, err)
	assert.Equal(t, StatusSending, m.Current())

	require.NoError(t, m.Transition(StatusError))
	require.NoError(t, m.Transition(StatusSending))
}

func TestAffordances(t *testing.T) {
	assert.Equal(t, Affordances{Vibration: []int{50}, ScrollToBottom: true}, AffordancesFor(StatusSending))
	assert.True(t, AffordancesFor(StatusProcessing).Typing)
	assert.Equal(t, []int{100, 50, 100}, AffordancesFor(StatusReceiving).Vibration)
	assert.Equal(t, []int{200, 100, 200}, AffordancesFor(StatusError).Vibration)
	assert.Equal(t, Affordances{}, AffordancesFor(StatusIdle))
}

func TestStatusEventJSON(t *testing.T) {
	ev := NewStatusEvent(uuid.New(), StatusReceiving)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "status", body["type"])
	assert.Equal(t, "receiving", body["status"])
	assert.Equal(t, true, body["typing"])
	assert.Equal(t, true, body["scroll_to_bottom"])
	assert.Len(t, body["vibration"], 3)
}
