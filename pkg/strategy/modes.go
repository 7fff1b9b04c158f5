package strategy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for names it does not know.
var ErrUnknownMode = errors.New("strategy: unknown mode")

// Mode selects what the control loop does each tick. The set is closed:
// FollowPointer, InterceptDemo, Goalie and Idle.
type Mode interface {
	fmt.Stringer
	mode()
}

// FollowPointer drives the operator's selected robot to where they clicked,
// routing around obstacles, and copies their kick, charge and dribble
// switches.
type FollowPointer struct{}

// InterceptDemo keeps one robot heading for the middle of its interception
// window.
type InterceptDemo struct {
	RobotID int
}

// Goalie plays one robot as goalkeeper. Opposite guards the other team's goal.
type Goalie struct {
	RobotID  int
	Opposite bool
}

// Idle issues no new commands; robots finish their queues.
type Idle struct{}

func (FollowPointer) mode() {}
func (InterceptDemo) mode() {}
func (Goalie) mode()        {}
func (Idle) mode()          {}

func (FollowPointer) String() string   { return "follow_pointer" }
func (m InterceptDemo) String() string { return fmt.Sprintf("intercept_demo:%d", m.RobotID) }
func (Idle) String() string            { return "idle" }

func (m Goalie) String() string {
	if m.Opposite {
		return fmt.Sprintf("goalie_opposite:%d", m.RobotID)
	}
	return fmt.Sprintf("goalie:%d", m.RobotID)
}

// ParseMode reads a mode from configuration. Modes that drive one robot take
// an optional ":id" suffix, robot 0 by default: "goalie:1",
// "intercept_demo", "goalie_opposite:2".
func ParseMode(s string) (Mode, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(s), ":")
	id := 0
	if hasArg {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad robot id in %q", ErrUnknownMode, s)
		}
		id = n
	}

	switch strings.ToLower(name) {
	case "follow_pointer", "ui":
		if hasArg {
			break
		}
		return FollowPointer{}, nil
	case "intercept_demo", "entry_video":
		return InterceptDemo{RobotID: id}, nil
	case "goalie":
		return Goalie{RobotID: id}, nil
	case "goalie_opposite":
		return Goalie{RobotID: id, Opposite: true}, nil
	case "idle":
		if hasArg {
			break
		}
		return Idle{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}
