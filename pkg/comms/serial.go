package comms

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// PortOptions describes the serial link to the base station.
type PortOptions struct {
	Path         string
	BaudRate     int
	DataBits     int
	StopBits     int
	MessageDelay time.Duration
}

// Normalize fills unset fields with 115200 8N1 and the default delay.
func (o PortOptions) Normalize() PortOptions {
	if o.BaudRate == 0 {
		o.BaudRate = 115200
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.StopBits == 0 {
		o.StopBits = 1
	}
	if o.MessageDelay == 0 {
		o.MessageDelay = DefaultMessageDelay
	}
	return o
}

// SerialMode converts the options into a go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	o = o.Normalize()
	var stop serial.StopBits
	switch o.StopBits {
	case 1:
		stop = serial.OneStopBit
	case 2:
		stop = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", o.StopBits)
	}
	return &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: o.DataBits,
		Parity:   serial.NoParity,
		StopBits: stop,
	}, nil
}

// SerialRadio frames messages over a byte stream with a two byte big-endian
// length prefix.
type SerialRadio struct {
	port  io.ReadWriteCloser
	delay time.Duration

	wmu sync.Mutex
	rmu sync.Mutex
	r   *bufio.Reader

	closed atomic.Bool
}

// OpenSerial opens the port at opts.Path.
func OpenSerial(opts PortOptions) (*SerialRadio, error) {
	opts = opts.Normalize()
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(opts.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", opts.Path, err)
	}
	return NewSerialRadio(port, opts.MessageDelay), nil
}

// NewSerialRadio wraps an already open stream.
func NewSerialRadio(port io.ReadWriteCloser, delay time.Duration) *SerialRadio {
	if delay <= 0 {
		delay = DefaultMessageDelay
	}
	return &SerialRadio{port: port, delay: delay, r: bufio.NewReader(port)}
}

func (s *SerialRadio) Send(frame []byte) error {
	if s.closed.Load() {
		return ErrRadioClosed
	}
	if len(frame) > math.MaxUint16 {
		return fmt.Errorf("frame of %d bytes too large for serial link", len(frame))
	}
	buf := make([]byte, 2+len(frame))
	binary.BigEndian.PutUint16(buf, uint16(len(frame)))
	copy(buf[2:], frame)

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.port.Write(buf); err != nil {
		return s.wrap(err)
	}
	return nil
}

func (s *SerialRadio) Read() ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrRadioClosed
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()

	var hdr [2]byte
	if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
		return nil, s.wrap(err)
	}
	frame := make([]byte, binary.BigEndian.Uint16(hdr[:]))
	if _, err := io.ReadFull(s.r, frame); err != nil {
		return nil, s.wrap(err)
	}
	return frame, nil
}

func (s *SerialRadio) MessageDelay() time.Duration { return s.delay }

// Close closes the port. Closing twice is a no-op.
func (s *SerialRadio) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.port.Close()
}

func (s *SerialRadio) wrap(err error) error {
	if s.closed.Load() || errors.Is(err, io.ErrClosedPipe) {
		return ErrRadioClosed
	}
	return fmt.Errorf("serial radio: %w", err)
}
