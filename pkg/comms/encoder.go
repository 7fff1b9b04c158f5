package comms

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// RobotFrame is one robot's slice of a team frame. Speeds are in the
// robot's body frame: x forward, y left, w counter-clockwise.
type RobotFrame struct {
	_msgpack struct{} `msgpack:",as_array"`

	ID      uint8   `msgpack:"id"`
	VX      float32 `msgpack:"vx"`
	VY      float32 `msgpack:"vy"`
	W       float32 `msgpack:"w"`
	Kick    bool    `msgpack:"kick"`
	Charge  bool    `msgpack:"charge"`
	Dribble bool    `msgpack:"dribble"`
}

// TeamFrame is what goes over the radio each send tick.
type TeamFrame struct {
	Team   string       `msgpack:"team"`
	Seq    uint32       `msgpack:"seq"`
	Robots []RobotFrame `msgpack:"robots"`
}

// Encoder turns a team frame into radio bytes.
type Encoder interface {
	Encode(TeamFrame) ([]byte, error)
}

// MsgpackEncoder is the default Encoder.
type MsgpackEncoder struct{}

func (MsgpackEncoder) Encode(f TeamFrame) ([]byte, error) {
	b, err := msgpack.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("encode team frame: %w", err)
	}
	return b, nil
}

// Decode reads a frame produced by Encode. Simulators and tests use it.
func (MsgpackEncoder) Decode(b []byte) (TeamFrame, error) {
	var f TeamFrame
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return TeamFrame{}, fmt.Errorf("decode team frame: %w", err)
	}
	return f, nil
}
