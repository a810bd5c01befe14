package session

import (
	"errors"
	"time"

	"github.com/AlexxIT/go2cam/pkg/convert"
	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/tracker"
	"github.com/AlexxIT/go2cam/pkg/v4l2/device"
	"github.com/AlexxIT/go2cam/pkg/v4l2/format"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
)

var (
	ErrInvalidArgument = errors.New("session: invalid argument")
	ErrBusy            = errors.New("session: requests in flight")
	ErrClosed          = errors.New("session: closed")
)

// Driver is the part of the device connection used by the session
type Driver interface {
	format.Enumerator

	SetFormat(sf format.StreamFormat) error
	RequestBuffers(n int) (int, int, error)
	ExportBuffer(index int) (int, error)
	Enqueue(index int) error
	Dequeue() (device.Buffer, error)
	StreamOn() error
	StreamOff() error
	SetControl(id uint32, value int32) (int32, error)
}

// Importer turns a client buffer handle into a frame buffer of the stream
type Importer interface {
	Import(handle any, stream *Stream) (frame.FrameBuffer, error)
}

type ImporterFunc func(handle any, stream *Stream) (frame.FrameBuffer, error)

func (f ImporterFunc) Import(handle any, stream *Stream) (frame.FrameBuffer, error) {
	return f(handle, stream)
}

// DirectImporter accepts handles that are frame buffers already
var DirectImporter = ImporterFunc(func(handle any, _ *Stream) (frame.FrameBuffer, error) {
	if buf, ok := handle.(frame.FrameBuffer); ok {
		return buf, nil
	}
	return nil, ErrInvalidArgument
})

type Callback interface {
	Notify(msg *Message)
	ProcessCaptureResult(res *CaptureResult)
}

type StreamType byte

const (
	StreamOutput StreamType = iota
	StreamInput
)

type Usage uint64

const (
	UsageCPUReadOften  Usage = 0x3
	UsageCPUWriteOften Usage = 0x30
)

type Stream struct {
	ID       int32
	Type     StreamType
	Width    int
	Height   int
	Format   fourcc.PixelFormat
	Usage    Usage
	Rotation int
}

// HalStream is the configure answer for one stream
type HalStream struct {
	ID             int32
	OverrideFormat fourcc.PixelFormat
	ProducerUsage  Usage
	ConsumerUsage  Usage
	MaxBuffers     int
}

// Settings are capture settings, device controls are applied on submit
type Settings struct {
	convert.Settings
	Controls map[uint32]int32
}

type StreamBuffer struct {
	StreamID int32
	BufferID uint64
	// Handle is imported on the first use of BufferID, may be nil after that
	Handle any
	Status tracker.Status
}

type Request struct {
	FrameNumber uint32
	// Settings nil means the settings of the previous request
	Settings *Settings
	Input    *StreamBuffer
	Outputs  []StreamBuffer
}

type CaptureResult struct {
	FrameNumber   uint32
	Settings      *Settings
	Timestamp     time.Duration
	PartialResult int
	Input         *tracker.StreamBuffer
	Outputs       []tracker.StreamBuffer
}

type MessageType byte

const (
	MessageShutter MessageType = iota
	MessageError
)

type ErrorCode byte

const (
	ErrorDevice ErrorCode = iota + 1
	ErrorRequest
	ErrorResult
	ErrorBuffer
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorDevice:
		return "device"
	case ErrorRequest:
		return "request"
	case ErrorResult:
		return "result"
	case ErrorBuffer:
		return "buffer"
	}
	return "unknown"
}

type Message struct {
	Type        MessageType
	FrameNumber uint32
	Timestamp   time.Duration // shutter only
	Code        ErrorCode     // error only
	StreamID    int32         // error buffer only, -1 otherwise
}

// captureSettings are stored in the tracker per request
type captureSettings struct {
	settings  *Settings
	timestamp time.Duration
}
