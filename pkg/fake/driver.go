//go:build unix

package fake

import (
	"os"
	"sort"
	"sync"

	"github.com/AlexxIT/go2cam/pkg/v4l2/device"
	"github.com/AlexxIT/go2cam/pkg/v4l2/format"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"golang.org/x/sys/unix"
)

// Driver is an in-memory YUYV camera. Device buffers are files in dir,
// so they can be exported and mapped like dma-buf descriptors.
type Driver struct {
	dir string

	mu        sync.Mutex
	sizes     map[fourcc.PixelFormat][]format.Size
	format    format.StreamFormat
	files     []*os.File
	queue     []int
	streaming bool
	hold      bool
	err       error
	controls  map[uint32]int32
	sequence  uint32
}

// NewDriver supports YUYV at 320x240 and 640x480
func NewDriver(dir string) *Driver {
	return &Driver{
		dir: dir,
		sizes: map[fourcc.PixelFormat][]format.Size{
			fourcc.YUYV: {{Width: 320, Height: 240}, {Width: 640, Height: 480}},
		},
		controls: map[uint32]int32{},
	}
}

func (d *Driver) Formats() ([]fourcc.PixelFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var items []fourcc.PixelFormat
	for f := range d.sizes {
		items = append(items, f)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items, nil
}

func (d *Driver) FrameSizes(f fourcc.PixelFormat) ([]format.FrameSize, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var items []format.FrameSize
	for _, size := range d.sizes[f] {
		items = append(items, format.FrameSize{Discrete: true, Width: size.Width, Height: size.Height})
	}
	return items, nil
}

func (d *Driver) FrameIntervals(fourcc.PixelFormat, int, int) ([]format.FrameInterval, error) {
	return []format.FrameInterval{
		{Discrete: true, Value: format.Fract{Numerator: 1, Denominator: 30}},
		{Discrete: true, Value: format.Fract{Numerator: 1, Denominator: 15}},
	}, nil
}

func (d *Driver) SetFormat(sf format.StreamFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, size := range d.sizes[sf.Format] {
		if size.Width == sf.Width && size.Height == sf.Height {
			d.format = sf
			return nil
		}
	}
	return device.ErrInvalid
}

func (d *Driver) Format() format.StreamFormat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format
}

func (d *Driver) frameSize() int {
	return d.format.Width * d.format.Height * 2
}

func (d *Driver) RequestBuffers(n int) (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, f := range d.files {
		_ = f.Close()
	}
	d.files = nil
	d.queue = nil

	if n == 0 {
		return 0, 0, nil
	}
	if d.format.Width == 0 {
		return 0, 0, device.ErrNoFormat
	}

	for i := 0; i < n; i++ {
		f, err := os.CreateTemp(d.dir, "buf")
		if err != nil {
			return 0, 0, err
		}
		if err = f.Truncate(int64(d.frameSize())); err != nil {
			_ = f.Close()
			return 0, 0, err
		}
		d.files = append(d.files, f)
	}
	return n, d.frameSize(), nil
}

func (d *Driver) ExportBuffer(index int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.files) {
		return -1, device.ErrInvalid
	}
	return unix.Dup(int(d.files[index].Fd()))
}

func (d *Driver) Enqueue(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, i := range d.queue {
		if i == index {
			return device.ErrNotReady
		}
	}
	d.queue = append(d.queue, index)
	return nil
}

// Dequeue writes a grey picture with luma equal to the row index
func (d *Driver) Dequeue() (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return device.Buffer{}, d.err
	}
	if !d.streaming || d.hold || len(d.queue) == 0 {
		return device.Buffer{}, device.ErrNotReady
	}

	index := d.queue[0]
	d.queue = d.queue[1:]

	b := make([]byte, d.frameSize())
	stride := d.format.Width * 2
	for i := range b {
		if i%2 == 0 {
			b[i] = byte(i / stride)
		} else {
			b[i] = 128
		}
	}
	if _, err := d.files[index].WriteAt(b, 0); err != nil {
		return device.Buffer{}, err
	}

	d.sequence++
	return device.Buffer{Index: index, BytesUsed: len(b), Sequence: d.sequence}, nil
}

func (d *Driver) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.format.Width == 0 {
		return device.ErrNoFormat
	}
	d.streaming = true
	return nil
}

func (d *Driver) StreamOff() error {
	d.mu.Lock()
	d.streaming = false
	d.queue = nil
	d.mu.Unlock()
	return nil
}

func (d *Driver) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Control 0 is invalid, any other id is accepted
func (d *Driver) Control(id uint32) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id == 0 {
		return 0, device.ErrInvalid
	}
	return d.controls[id], nil
}

func (d *Driver) SetControl(id uint32, value int32) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id == 0 {
		return 0, device.ErrInvalid
	}
	d.controls[id] = value
	return value, nil
}

func (d *Driver) Controls() ([]*device.Control, error) {
	return []*device.Control{
		{ID: 0x00980900, Type: 1, Name: "Brightness", Minimum: 0, Maximum: 255, Step: 1, Default: 128, ElemSize: 4, Elems: 1},
	}, nil
}

// Hold stops frame delivery without an error
func (d *Driver) Hold(hold bool) {
	d.mu.Lock()
	d.hold = hold
	d.mu.Unlock()
}

// Fail makes every Dequeue return err
func (d *Driver) Fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}
