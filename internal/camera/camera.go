package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/session"
	"github.com/AlexxIT/go2cam/pkg/tracker"
	"github.com/AlexxIT/go2cam/pkg/v4l2/device"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Config struct {
	Device      string           `yaml:"device" json:"device"`
	Width       int              `yaml:"width" json:"width"`
	Height      int              `yaml:"height" json:"height"`
	Buffers     int              `yaml:"buffers" json:"buffers,omitempty"`
	JPEGQuality int              `yaml:"jpeg_quality" json:"jpeg_quality,omitempty"`
	Rotation    int              `yaml:"rotation" json:"rotation,omitempty"`
	Controls    map[string]int32 `yaml:"controls" json:"controls,omitempty"`
	Make        string           `yaml:"make" json:"make,omitempty"`
	Model       string           `yaml:"model" json:"model,omitempty"`
}

// Driver is a session driver with control access
type Driver interface {
	session.Driver
	Control(id uint32) (int32, error)
	Controls() ([]*device.Control, error)
}

// Opener connects to the device, closer releases the connection
type Opener func(path string, log zerolog.Logger) (Driver, io.Closer, error)

var ErrUnknown = errors.New("camera: unknown camera")

// Camera captures JPEG frames from one device through a session,
// the session is opened on first use and reopened after a device fault
type Camera struct {
	Name string

	cfg  Config
	open Opener
	log  zerolog.Logger

	mu         sync.Mutex
	id         string
	drv        Driver
	sess       *session.Session
	current    Request
	configured bool
	streamID   int32
	frame      uint32

	wmu     sync.Mutex
	waiters map[uint32]chan *session.CaptureResult
}

func New(name string, cfg Config, open Opener, log zerolog.Logger) *Camera {
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	return &Camera{
		Name:    name,
		cfg:     cfg,
		open:    open,
		log:     log.With().Str("camera", name).Logger(),
		waiters: map[uint32]chan *session.CaptureResult{},
	}
}

type Info struct {
	Name    string `json:"name"`
	Config  Config `json:"config"`
	Session string `json:"session,omitempty"`
	Stream  string `json:"stream,omitempty"`
	Frames  uint32 `json:"frames"`
	Error   string `json:"error,omitempty"`
}

func (c *Camera) Info() *Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := &Info{Name: c.Name, Config: c.cfg, Session: c.id, Frames: c.frame}
	if c.sess != nil {
		if c.configured {
			info.Stream = c.sess.Format().String()
		}
		if err := c.sess.Err(); err != nil {
			info.Error = err.Error()
		}
	}
	return info
}

// connect opens the session if there is none or the last one failed
func (c *Camera) connect() error {
	if c.sess != nil {
		if c.sess.Err() == nil {
			return nil
		}
		c.closeSession()
	}

	drv, conn, err := c.open(c.cfg.Device, c.log)
	if err != nil {
		return err
	}

	c.id = uuid.NewString()
	c.drv = drv
	c.configured = false
	c.sess = session.Open(drv, conn, session.Options{
		Log:      c.log.With().Str("session", c.id).Logger(),
		Buffers:  c.cfg.Buffers,
		Callback: c,
	})

	c.log.Debug().Str("session", c.id).Msgf("[camera] open %s", c.cfg.Device)

	return nil
}

func (c *Camera) closeSession() {
	if err := c.sess.Close(); err != nil {
		c.log.Warn().Err(err).Msg("[camera] close")
	}
	c.log.Debug().Str("session", c.id).Msg("[camera] closed")
	c.sess = nil
	c.drv = nil
	c.id = ""
}

type Request struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Rotation int `json:"rotation"`
}

func (c *Camera) configure(req Request) error {
	if req.Width == 0 || req.Height == 0 {
		req.Width, req.Height = c.cfg.Width, c.cfg.Height
	}
	if req.Rotation == 0 {
		req.Rotation = c.cfg.Rotation
	}

	if c.configured && req == c.current {
		return nil
	}

	// new stream id, the old stream is dropped with its buffers
	c.streamID++

	st := session.Stream{
		ID:       c.streamID,
		Width:    req.Width,
		Height:   req.Height,
		Format:   fourcc.JPEG,
		Rotation: req.Rotation,
	}
	if _, err := c.sess.Configure([]session.Stream{st}); err != nil {
		c.configured = false
		return err
	}

	c.current, c.configured = req, true
	c.log.Debug().Msgf("[camera] configure %dx%d from %s", st.Width, st.Height, c.sess.Format())

	return nil
}

func (c *Camera) settings() *session.Settings {
	s := &session.Settings{Controls: map[uint32]int32{}}
	s.JPEGQuality = c.cfg.JPEGQuality
	s.Make = c.cfg.Make
	s.Model = c.cfg.Model
	s.Time = time.Now()

	for key, value := range c.cfg.Controls {
		id, err := ParseControlID(key)
		if err != nil {
			c.log.Warn().Err(err).Msg("[camera] config")
			continue
		}
		s.Controls[id] = value
	}
	return s
}

// Capture returns one JPEG frame
func (c *Camera) Capture(ctx context.Context, req Request) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return nil, err
	}
	if err := c.configure(req); err != nil {
		return nil, err
	}

	c.frame++
	number := c.frame

	buf := frame.NewAllocated(c.current.Width, c.current.Height, fourcc.JPEG)
	ch := make(chan *session.CaptureResult, 1)

	c.wmu.Lock()
	c.waiters[number] = ch
	c.wmu.Unlock()

	streamID := c.streamID
	err := c.sess.Submit(&session.Request{
		FrameNumber: number,
		Settings:    c.settings(),
		Outputs: []session.StreamBuffer{
			{StreamID: streamID, BufferID: uint64(number), Handle: buf},
		},
	})
	if errors.Is(err, session.ErrClosed) {
		// rejected before any result
		c.wmu.Lock()
		delete(c.waiters, number)
		c.wmu.Unlock()
		return nil, err
	}

	var res *session.CaptureResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		// flush delivers the result
		if err := c.sess.Flush(); err != nil {
			c.log.Debug().Err(err).Msg("[camera] flush")
		}
		res = <-ch
	}

	c.sess.EvictBuffers(streamID, uint64(number))

	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if res.Outputs[0].Status != tracker.StatusOK {
		return nil, fmt.Errorf("camera: frame %d failed", number)
	}

	return buf.Bytes(), nil
}

func (c *Camera) Notify(msg *session.Message) {
	switch msg.Type {
	case session.MessageShutter:
		c.log.Trace().Uint32("frame", msg.FrameNumber).Msg("[camera] shutter")
	case session.MessageError:
		c.log.Warn().Uint32("frame", msg.FrameNumber).Int32("stream", msg.StreamID).
			Msgf("[camera] %s error", msg.Code)
	}
}

func (c *Camera) ProcessCaptureResult(res *session.CaptureResult) {
	c.wmu.Lock()
	ch := c.waiters[res.FrameNumber]
	delete(c.waiters, res.FrameNumber)
	c.wmu.Unlock()

	if ch != nil {
		ch <- res
	}
}

// Controls lists device controls with current values
func (c *Camera) Controls() ([]*Control, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return nil, err
	}

	items, err := c.drv.Controls()
	if err != nil {
		return nil, err
	}

	controls := make([]*Control, 0, len(items))
	for _, item := range items {
		ctrl := &Control{Control: item}
		if value, err := c.drv.Control(item.ID); err == nil {
			ctrl.Value = &value
		}
		controls = append(controls, ctrl)
	}
	return controls, nil
}

type Control struct {
	*device.Control
	Value *int32 `json:"value,omitempty"`
}

func (c *Camera) Control(id uint32) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return 0, err
	}
	return c.drv.Control(id)
}

// SetControl returns the applied value, it is also used for the next captures
func (c *Camera) SetControl(id uint32, value int32) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return 0, err
	}

	applied, err := c.drv.SetControl(id, value)
	if err != nil {
		return 0, err
	}

	if c.cfg.Controls == nil {
		c.cfg.Controls = map[string]int32{}
	}
	c.cfg.Controls[FormatControlID(id)] = applied

	return applied, nil
}

func (c *Camera) Close() {
	c.mu.Lock()
	if c.sess != nil {
		c.closeSession()
	}
	c.mu.Unlock()
}

// ParseControlID accepts decimal and 0x prefixed ids
func ParseControlID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("camera: control id %q: %w", s, err)
	}
	return uint32(id), nil
}

func FormatControlID(id uint32) string {
	return fmt.Sprintf("0x%08x", id)
}
