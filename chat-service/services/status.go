package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the delivery state of the message a user is sending.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSending    Status = "sending"
	StatusProcessing Status = "processing"
	StatusReceiving  Status = "receiving"
	StatusError      Status = "error"
)

var transitions = map[Status][]Status{
	StatusIdle:       {StatusSending},
	StatusSending:    {StatusProcessing, StatusError},
	StatusProcessing: {StatusReceiving, StatusError},
	StatusReceiving:  {StatusIdle, StatusError},
	StatusError:      {StatusIdle, StatusSending},
}

// Affordances tell the client how to render a status.
type Affordances struct {
	Typing         bool  `json:"typing"`
	Vibration      []int `json:"vibration"`
	ScrollToBottom bool  `json:"scroll_to_bottom"`
}

// AffordancesFor returns the UI hints of s. Vibration patterns are in milliseconds.
func AffordancesFor(s Status) Affordances {
	switch s {
	case StatusSending:
		return Affordances{Vibration: []int{50}, ScrollToBottom: true}
	case StatusProcessing:
		return Affordances{Typing: true}
	case StatusReceiving:
		return Affordances{Typing: true, Vibration: []int{100, 50, 100}, ScrollToBottom: true}
	case StatusError:
		return Affordances{Vibration: []int{200, 100, 200}}
	default:
		return Affordances{}
	}
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusMachine tracks one message exchange. It is not safe for concurrent use.
type StatusMachine struct {
	current Status
}

func NewStatusMachine() *StatusMachine {
	return &StatusMachine{current: StatusIdle}
}

func (m *StatusMachine) Current() Status {
	return m.current
}

// Transition moves to next or fails without changing state.
func (m *StatusMachine) Transition(next Status) error {
	if !CanTransition(m.current, next) {
		return fmt.Errorf("invalid status transition %s -> %s", m.current, next)
	}
	m.current = next
	return nil
}

// StatusEvent is pushed to the user's websocket connections.
type StatusEvent struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Status         Status    `json:"status"`
	Affordances
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStatusEvent(conversationID uuid.UUID, s Status) StatusEvent {
	return StatusEvent{
		Type:           "status",
		ConversationID: conversationID,
		Status:         s,
		Affordances:    AffordancesFor(s),
		Timestamp:      time.Now().UTC(),
	}
}
