package device

import (
	"errors"
	"time"
)

var (
	ErrNotConnected = errors.New("v4l2: device not connected")
	ErrNoFormat     = errors.New("v4l2: format not negotiated")
	ErrNotReady     = errors.New("v4l2: buffer not ready")
	ErrInvalid      = errors.New("v4l2: invalid argument")
)

// Buffer describes a filled buffer returned by Dequeue
type Buffer struct {
	Index     int
	BytesUsed int
	Sequence  uint32
	Timestamp time.Duration
}

// Control is the extended control description, legacy QUERYCTRL
// results are converted to it
type Control struct {
	ID       uint32 `json:"id"`
	Type     uint32 `json:"type"`
	Name     string `json:"name"`
	Minimum  int64  `json:"minimum"`
	Maximum  int64  `json:"maximum"`
	Step     uint64 `json:"step"`
	Default  int64  `json:"default"`
	Flags    uint32 `json:"flags"`
	ElemSize uint32 `json:"elem_size"`
	Elems    uint32 `json:"elems"`
}
