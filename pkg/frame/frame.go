package frame

import (
	"errors"
	"fmt"

	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
)

var (
	ErrInvalid   = errors.New("frame: invalid argument")
	ErrNotMapped = errors.New("frame: buffer not mapped")
)

// FrameBuffer is a view over pixel memory. Buffers whose memory is not owned
// by the process must be mapped before Data is read and unmapped after writes.
type FrameBuffer interface {
	// Data returns the whole backing memory, len(Data()) == Capacity()
	Data() []byte
	// Bytes returns the used part of Data
	Bytes() []byte
	Capacity() int
	Size() int
	SetSize(n int) error

	Width() int
	Height() int
	Format() fourcc.PixelFormat
	SetFormat(w, h int, f fourcc.PixelFormat)

	Map() error
	Unmap() error
}

type header struct {
	width  int
	height int
	format fourcc.PixelFormat
	size   int
}

func (h *header) Width() int                 { return h.width }
func (h *header) Height() int                { return h.height }
func (h *header) Format() fourcc.PixelFormat { return h.format }
func (h *header) Size() int                  { return h.size }

func (h *header) SetFormat(w, hh int, f fourcc.PixelFormat) {
	h.width, h.height, h.format = w, hh, f
}

func (h *header) String() string {
	return fmt.Sprintf("%s %dx%d", h.format, h.width, h.height)
}

// Allocated owns its memory and grows it on demand
type Allocated struct {
	header
	data []byte
}

func NewAllocated(w, h int, f fourcc.PixelFormat) *Allocated {
	return &Allocated{header: header{width: w, height: h, format: f}}
}

func (a *Allocated) Data() []byte  { return a.data }
func (a *Allocated) Bytes() []byte { return a.data[:a.size] }
func (a *Allocated) Capacity() int { return len(a.data) }

func (a *Allocated) SetSize(n int) error {
	if n < 0 {
		return ErrInvalid
	}
	if n > len(a.data) {
		a.data = make([]byte, n)
	}
	a.size = n
	return nil
}

func (a *Allocated) Map() error   { return nil }
func (a *Allocated) Unmap() error { return nil }

// Reset sets format and size in one step, Data content is undefined after it
func (a *Allocated) Reset(w, h int, f fourcc.PixelFormat, size int) error {
	a.SetFormat(w, h, f)
	return a.SetSize(size)
}

// Locker locks and unlocks memory owned by the graphics subsystem
type Locker interface {
	Lock(handle any, w, h int, f fourcc.PixelFormat) ([]byte, error)
	Unlock(handle any) error
}

// External is a client-owned buffer borrowed for one Map/Unmap cycle.
// It is never freed here.
type External struct {
	header
	handle any
	length int
	locker Locker
	data   []byte
}

// NewExternal length is used as capacity only for formats without
// a fixed size (JPEG)
func NewExternal(handle any, w, h int, f fourcc.PixelFormat, length int, locker Locker) *External {
	return &External{
		header: header{width: w, height: h, format: f},
		handle: handle,
		length: length,
		locker: locker,
	}
}

func (e *External) Handle() any { return e.handle }

func (e *External) Data() []byte {
	return e.data
}

func (e *External) Bytes() []byte {
	if e.data == nil {
		return nil
	}
	return e.data[:e.size]
}

func (e *External) Capacity() int {
	if n := fourcc.BufferSize(e.format, e.width, e.height); n > 0 {
		return n
	}
	return e.length
}

func (e *External) SetSize(n int) error {
	if n < 0 || n > e.Capacity() {
		return fmt.Errorf("%w: size %d over capacity %d", ErrInvalid, n, e.Capacity())
	}
	e.size = n
	return nil
}

func (e *External) Map() error {
	if e.data != nil {
		return fmt.Errorf("%w: already mapped", ErrInvalid)
	}
	data, err := e.locker.Lock(e.handle, e.width, e.height, e.format)
	if err != nil {
		return err
	}
	n := e.Capacity()
	if len(data) < n {
		_ = e.locker.Unlock(e.handle)
		return fmt.Errorf("%w: locked %d bytes, need %d", ErrInvalid, len(data), n)
	}
	e.data = data[:n]
	return nil
}

func (e *External) Unmap() error {
	if e.data == nil {
		return ErrNotMapped
	}
	e.data = nil
	return e.locker.Unlock(e.handle)
}
