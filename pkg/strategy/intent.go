package strategy

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/pkg/field"
)

// UserIntent is the operator's latest input: which robot is selected, where
// they clicked, which way they dragged and the actuator switches.
type UserIntent struct {
	Selected bool       `json:"selected"`
	Team     field.Team `json:"team"`
	RobotID  int        `json:"robot_id"`

	Click *r2.Vec `json:"click,omitempty"`
	// Drag, when non-zero, is the direction the robot should face at the
	// click position.
	Drag r2.Vec `json:"drag"`

	Kick    bool `json:"kick"`
	Charge  bool `json:"charge"`
	Dribble bool `json:"dribble"`
}

// IntentSource is polled once per strategy tick. Only the latest intent
// matters; nothing is queued.
type IntentSource interface {
	Intent() UserIntent
}

// IntentStore is an IntentSource that holds whatever was set last.
type IntentStore struct {
	mu     sync.RWMutex
	intent UserIntent
}

// NewIntentStore creates an empty store.
func NewIntentStore() *IntentStore {
	return &IntentStore{}
}

// Set replaces the current intent.
func (s *IntentStore) Set(in UserIntent) {
	if in.Click != nil {
		c := *in.Click
		in.Click = &c
	}
	s.mu.Lock()
	s.intent = in
	s.mu.Unlock()
}

// Intent returns the current intent.
func (s *IntentStore) Intent() UserIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in := s.intent
	if in.Click != nil {
		c := *in.Click
		in.Click = &c
	}
	return in
}
