// Package vision fuses detection frames from the overhead cameras into ball
// and robot positions and feeds them to the world model.
package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/field"
	"github.com/teslashibe/go-ssl/pkg/loop"
	"github.com/teslashibe/go-ssl/pkg/worldmodel"
)

const (
	// DefaultCameras is the number of cameras over a full field.
	DefaultCameras = 4

	// ConfidenceThreshold is the lowest confidence a detection needs to count.
	ConfidenceThreshold = 0.5
)

// ErrUnknownCamera is returned for frames from a camera id out of range.
var ErrUnknownCamera = errors.New("vision: unknown camera")

// Ball is one ball detection.
type Ball struct {
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// Robot is one robot detection. Orientation is in radians.
type Robot struct {
	Confidence  float64 `json:"confidence"`
	RobotID     int     `json:"robot_id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Orientation float64 `json:"orientation"`
}

// DetectionFrame is everything one camera saw in one capture.
type DetectionFrame struct {
	CameraID     int     `json:"camera_id"`
	Balls        []Ball  `json:"balls"`
	RobotsBlue   []Robot `json:"robots_blue"`
	RobotsYellow []Robot `json:"robots_yellow"`
}

func (f *DetectionFrame) robots(team field.Team) []Robot {
	if team == field.Blue {
		return f.RobotsBlue
	}
	return f.RobotsYellow
}

type cameraFrame struct {
	at    time.Time
	frame DetectionFrame
}

// Provider keeps the latest frame of each camera.
type Provider struct {
	world  *worldmodel.World
	logger *slog.Logger

	// MaxFrameAge drops frames from a camera that went quiet. Zero keeps
	// frames forever.
	MaxFrameAge time.Duration
	OnOverrun   func(name string, delay time.Duration)

	mu     sync.RWMutex
	frames []*cameraFrame

	lmu  sync.Mutex
	loop *loop.Periodic
}

// NewProvider creates a provider for the given number of cameras,
// DefaultCameras if cameras is not positive.
func NewProvider(world *worldmodel.World, cameras int) *Provider {
	if cameras <= 0 {
		cameras = DefaultCameras
	}
	return &Provider{
		world:       world,
		logger:      log.For("vision"),
		MaxFrameAge: time.Second,
		frames:      make([]*cameraFrame, cameras),
	}
}

// HandleFrame replaces the stored frame of the frame's camera.
func (p *Provider) HandleFrame(f DetectionFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.CameraID < 0 || f.CameraID >= len(p.frames) {
		return fmt.Errorf("%w: %d", ErrUnknownCamera, f.CameraID)
	}
	p.frames[f.CameraID] = &cameraFrame{at: p.world.Clock().Now(), frame: f}
	return nil
}

// current returns the frames still fresh enough to use.
func (p *Provider) current() []*cameraFrame {
	now := p.world.Clock().Now()
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*cameraFrame, 0, len(p.frames))
	for _, cf := range p.frames {
		if cf == nil {
			continue
		}
		if p.MaxFrameAge > 0 && now.Sub(cf.at) > p.MaxFrameAge {
			continue
		}
		out = append(out, cf)
	}
	return out
}

type poseSum struct {
	pos      r2.Vec
	sin, cos float64
	n        int
}

// RobotPositions averages each robot over the cameras that see it with
// enough confidence. Headings use the circular mean.
func (p *Provider) RobotPositions(team field.Team) map[int]field.Pose {
	_ = team.Index() // panics on an invalid team
	sums := make(map[int]*poseSum)
	for _, cf := range p.current() {
		for _, r := range cf.frame.robots(team) {
			if r.Confidence < ConfidenceThreshold {
				continue
			}
			s := sums[r.RobotID]
			if s == nil {
				s = &poseSum{}
				sums[r.RobotID] = s
			}
			s.pos = r2.Add(s.pos, r2.Vec{X: r.X, Y: r.Y})
			sin, cos := math.Sincos(r.Orientation)
			s.sin += sin
			s.cos += cos
			s.n++
		}
	}

	out := make(map[int]field.Pose, len(sums))
	for id, s := range sums {
		out[id] = field.Pose{
			Pos:     r2.Scale(1/float64(s.n), s.pos),
			Heading: circularMean(s.sin, s.cos),
		}
	}
	return out
}

// circularMean is atan2 of the summed unit vectors; opposite headings that
// cancel out give 0.
func circularMean(sin, cos float64) float64 {
	if math.Abs(sin) < 1e-12 && math.Abs(cos) < 1e-12 {
		return 0
	}
	return math.Atan2(sin, cos)
}

// BallPosition averages the first ball of every camera whose first ball is
// confident enough.
func (p *Provider) BallPosition() (r2.Vec, bool) {
	var (
		sum r2.Vec
		n   int
	)
	for _, cf := range p.current() {
		balls := cf.frame.Balls
		if len(balls) == 0 || balls[0].Confidence < ConfidenceThreshold {
			continue
		}
		sum = r2.Add(sum, r2.Vec{X: balls[0].X, Y: balls[0].Y})
		n++
	}
	if n == 0 {
		return r2.Vec{}, false
	}
	return r2.Scale(1/float64(n), sum), true
}

// Update pushes the fused positions into the world model once.
func (p *Provider) Update() {
	for _, team := range []field.Team{field.Blue, field.Yellow} {
		for id, pose := range p.RobotPositions(team) {
			p.world.UpdateRobotPosition(team, id, pose)
		}
	}
	if ball, ok := p.BallPosition(); ok {
		p.world.UpdateBallPosition(ball)
	}
}

// StartUpdating calls Update every period once the game begins.
func (p *Provider) StartUpdating(period time.Duration) error {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	if p.loop != nil {
		return loop.ErrAlreadyRunning
	}
	l := &loop.Periodic{
		Name:      "vision",
		Period:    period,
		Barrier:   p.world,
		Tick:      func(time.Duration) { p.Update() },
		OnOverrun: p.OnOverrun,
		Clock:     p.world.Clock(),
		Logger:    p.logger,
	}
	if err := l.Start(); err != nil {
		return fmt.Errorf("start vision loop: %w", err)
	}
	p.loop = l
	return nil
}

// StopUpdating stops the loop started by StartUpdating.
func (p *Provider) StopUpdating() {
	p.lmu.Lock()
	l := p.loop
	p.loop = nil
	p.lmu.Unlock()
	if l != nil {
		l.Stop()
	}
}
