//go:build linux

package device

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/AlexxIT/go2cam/pkg/ioctl"
	"github.com/AlexxIT/go2cam/pkg/v4l2/format"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Device serializes all control calls to one V4L2 node.
// It is opened by the first Connect and closed by the last Connection.Close.
type Device struct {
	path string
	log  zerolog.Logger

	mu         sync.Mutex
	fd         int
	refs       int
	extQuery   bool
	format     *format.StreamFormat
	bufferSize int
}

func New(path string, log zerolog.Logger) *Device {
	return &Device{path: path, log: log, fd: -1}
}

func (d *Device) Path() string {
	return d.path
}

// Connection holds one reference to an open device
type Connection struct {
	dev  *Device
	once sync.Once
}

func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		err = c.dev.disconnect()
	})
	return err
}

func (d *Device) Connect() (*Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fd >= 0 {
		d.refs++
		return &Connection{dev: d}, nil
	}

	// nonblocking, so DQBUF returns EAGAIN
	fd, err := unix.Open(d.path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("v4l2: open %s: %w", d.path, err)
	}

	d.fd = fd
	d.refs = 1

	q := v4l2_query_ext_ctrl{id: V4L2_CTRL_FLAG_NEXT_CTRL | V4L2_CTRL_FLAG_NEXT_COMPOUND}
	d.extQuery = d.ioctl(VIDIOC_QUERY_EXT_CTRL, unsafe.Pointer(&q)) == nil

	// 15 fps for preview stability
	p := v4l2_streamparm{
		typ: V4L2_BUF_TYPE_VIDEO_CAPTURE,
		capture: v4l2_captureparm{
			timeperframe: v4l2_fract{numerator: 1000, denominator: 15 * 1000},
		},
	}
	if err = d.ioctl(VIDIOC_S_PARM, unsafe.Pointer(&p)); err != nil {
		d.log.Warn().Err(err).Str("path", d.path).Msg("[v4l2] set param")
	}

	d.log.Debug().Str("path", d.path).Msg("[v4l2] connect")

	return &Connection{dev: d}, nil
}

func (d *Device) disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refs == 0 {
		return ErrNotConnected
	}

	if d.refs--; d.refs > 0 {
		return nil
	}

	err := unix.Close(d.fd)
	d.fd = -1
	d.format = nil
	d.bufferSize = 0

	d.log.Debug().Str("path", d.path).Msg("[v4l2] disconnect")

	return err
}

func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fd >= 0
}

type Capability struct {
	Driver  string `json:"driver"`
	Card    string `json:"card"`
	BusInfo string `json:"bus_info"`
	Version string `json:"version"`
}

func (d *Device) Capability() (*Capability, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := v4l2_capability{}
	if err := d.ioctl(VIDIOC_QUERYCAP, unsafe.Pointer(&c)); err != nil {
		return nil, err
	}
	return &Capability{
		Driver:  ioctl.Str(c.driver[:]),
		Card:    ioctl.Str(c.card[:]),
		BusInfo: ioctl.Str(c.bus_info[:]),
		Version: fmt.Sprintf("%d.%d.%d", byte(c.version>>16), byte(c.version>>8), byte(c.version)),
	}, nil
}

func (d *Device) Formats() ([]fourcc.PixelFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var items []fourcc.PixelFormat

	for i := uint32(0); ; i++ {
		fd := v4l2_fmtdesc{
			index: i,
			typ:   V4L2_BUF_TYPE_VIDEO_CAPTURE,
		}
		if err := d.ioctl(VIDIOC_ENUM_FMT, unsafe.Pointer(&fd)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		items = append(items, fourcc.PixelFormat(fd.pixelformat))
	}

	return items, nil
}

func (d *Device) FrameSizes(pixFmt fourcc.PixelFormat) ([]format.FrameSize, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var items []format.FrameSize

	for i := uint32(0); ; i++ {
		fs := v4l2_frmsizeenum{
			index:        i,
			pixel_format: uint32(pixFmt),
		}
		if err := d.ioctl(VIDIOC_ENUM_FRAMESIZES, unsafe.Pointer(&fs)); err != nil {
			if !errors.Is(err, unix.EINVAL) || i == 0 {
				return nil, err
			}
			break
		}

		if fs.typ != V4L2_FRMSIZE_TYPE_DISCRETE {
			// stepwise and continuous have only one item
			sw := fs.stepwise()
			items = append(items, format.FrameSize{
				MinWidth:   int(sw.min_width),
				MaxWidth:   int(sw.max_width),
				StepWidth:  int(sw.step_width),
				MinHeight:  int(sw.min_height),
				MaxHeight:  int(sw.max_height),
				StepHeight: int(sw.step_height),
			})
			break
		}

		items = append(items, format.FrameSize{
			Discrete: true,
			Width:    int(fs.discrete().width),
			Height:   int(fs.discrete().height),
		})
	}

	return items, nil
}

func (d *Device) FrameIntervals(pixFmt fourcc.PixelFormat, width, height int) ([]format.FrameInterval, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var items []format.FrameInterval

	for i := uint32(0); ; i++ {
		fi := v4l2_frmivalenum{
			index:        i,
			pixel_format: uint32(pixFmt),
			width:        uint32(width),
			height:       uint32(height),
		}
		if err := d.ioctl(VIDIOC_ENUM_FRAMEINTERVALS, unsafe.Pointer(&fi)); err != nil {
			if !errors.Is(err, unix.EINVAL) || i == 0 {
				return nil, err
			}
			break
		}

		if fi.typ != V4L2_FRMIVAL_TYPE_DISCRETE {
			sw := fi.stepwise()
			items = append(items, format.FrameInterval{
				Min:  fract(sw.min),
				Max:  fract(sw.max),
				Step: fract(sw.step),
			})
			break
		}

		items = append(items, format.FrameInterval{
			Discrete: true,
			Value:    fract(*fi.discrete()),
		})
	}

	return items, nil
}

// Format returns current device format and image size
func (d *Device) Format() (format.StreamFormat, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := v4l2_format{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	if err := d.ioctl(VIDIOC_G_FMT, unsafe.Pointer(&f)); err != nil {
		return format.StreamFormat{}, 0, err
	}
	return streamFormat(&f), int(f.pix.sizeimage), nil
}

// SetFormat does nothing if the same format is already set and fails with
// ErrInvalid if the driver adjusted any of fourcc, width or height
func (d *Device) SetFormat(sf format.StreamFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.format != nil && *d.format == sf {
		return nil
	}

	f := v4l2_format{
		typ: sf.Type,
		pix: v4l2_pix_format{
			width:       uint32(sf.Width),
			height:      uint32(sf.Height),
			pixelformat: uint32(sf.Format),
			field:       V4L2_FIELD_NONE,
			colorspace:  V4L2_COLORSPACE_DEFAULT,
		},
	}
	if err := d.ioctl(VIDIOC_S_FMT, unsafe.Pointer(&f)); err != nil {
		return fmt.Errorf("v4l2: set format %s: %w", sf, err)
	}

	if got := streamFormat(&f); got != sf {
		return fmt.Errorf("%w: device set %s instead of %s", ErrInvalid, got, sf)
	}

	d.format = &sf
	d.bufferSize = int(f.pix.sizeimage)

	return nil
}

// RequestBuffers asks the driver for n mmap buffers, n == 0 releases all.
// Returns granted count and size of one buffer.
func (d *Device) RequestBuffers(n int) (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.format == nil {
		return 0, 0, ErrNoFormat
	}

	rb := v4l2_requestbuffers{
		count:  uint32(n),
		typ:    d.format.Type,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := d.ioctl(VIDIOC_REQBUFS, unsafe.Pointer(&rb)); err != nil {
		return 0, 0, fmt.Errorf("v4l2: request buffers: %w", err)
	}

	if n > 0 && rb.count < 1 {
		return 0, 0, fmt.Errorf("v4l2: driver can't handle any buffers")
	}

	return int(rb.count), d.bufferSize, nil
}

// ExportBuffer returns a DMABUF descriptor for pool buffer index,
// the caller owns the descriptor
func (d *Device) ExportBuffer(index int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.format == nil {
		return -1, ErrNoFormat
	}

	eb := v4l2_exportbuffer{
		typ:   d.format.Type,
		index: uint32(index),
		flags: unix.O_CLOEXEC,
	}
	if err := d.ioctl(VIDIOC_EXPBUF, unsafe.Pointer(&eb)); err != nil {
		return -1, fmt.Errorf("v4l2: export buffer %d: %w", index, err)
	}

	return int(eb.fd), nil
}

func (d *Device) Enqueue(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.format == nil {
		return ErrNoFormat
	}

	b := v4l2_buffer{
		index:  uint32(index),
		typ:    d.format.Type,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := d.ioctl(VIDIOC_QUERYBUF, unsafe.Pointer(&b)); err != nil {
		return fmt.Errorf("v4l2: query buffer %d: %w", index, err)
	}

	if b.flags&V4L2_BUF_FLAG_QUEUED != 0 {
		return fmt.Errorf("%w: buffer %d already queued", ErrNotReady, index)
	}

	if err := d.ioctl(VIDIOC_QBUF, unsafe.Pointer(&b)); err != nil {
		return fmt.Errorf("v4l2: queue buffer %d: %w", index, err)
	}

	return nil
}

// Dequeue never blocks, it returns ErrNotReady if no buffer is filled yet
func (d *Device) Dequeue() (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.format == nil {
		// stream can't be on without format
		return Buffer{}, ErrNotReady
	}

	b := v4l2_buffer{
		typ:    d.format.Type,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := d.ioctl(VIDIOC_DQBUF, unsafe.Pointer(&b)); err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return Buffer{}, ErrNotReady
		}
		return Buffer{}, fmt.Errorf("v4l2: dequeue: %w", err)
	}

	return Buffer{
		Index:     int(b.index),
		BytesUsed: int(b.bytesused),
		Sequence:  b.sequence,
		Timestamp: time.Duration(b.timestamp.sec)*time.Second + time.Duration(b.timestamp.usec)*time.Microsecond,
	}, nil
}

func (d *Device) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.format == nil {
		return ErrNoFormat
	}

	typ := d.format.Type
	if err := d.ioctl(VIDIOC_STREAMON, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("v4l2: stream on: %w", err)
	}
	return nil
}

// StreamOff without negotiated format is a no-op, the stream can't be on
func (d *Device) StreamOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.format == nil {
		return nil
	}

	typ := d.format.Type
	if err := d.ioctl(VIDIOC_STREAMOFF, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("v4l2: stream off: %w", err)
	}
	return nil
}

func (d *Device) ioctl(req uint, arg unsafe.Pointer) error {
	if d.fd < 0 {
		return ErrNotConnected
	}
	for {
		err := ioctl.Ioctl(d.fd, req, arg)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func fract(f v4l2_fract) format.Fract {
	return format.Fract{Numerator: f.numerator, Denominator: f.denominator}
}

func streamFormat(f *v4l2_format) format.StreamFormat {
	return format.StreamFormat{
		Type:   f.typ,
		Format: fourcc.PixelFormat(f.pix.pixelformat),
		Width:  int(f.pix.width),
		Height: int(f.pix.height),
	}
}
