package fourcc

import (
	"encoding/binary"
	"fmt"
)

type PixelFormat uint32

const (
	YUYV   PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	YUV420 PixelFormat = 'Y' | 'U'<<8 | '1'<<16 | '2'<<24 // I420, canonical intermediate
	YVU420 PixelFormat = 'Y' | 'V'<<8 | '1'<<16 | '2'<<24
	NV21   PixelFormat = 'N' | 'V'<<8 | '2'<<16 | '1'<<24
	RGB32  PixelFormat = 'R' | 'G'<<8 | 'B'<<16 | '4'<<24
	BGR32  PixelFormat = 'B' | 'G'<<8 | 'R'<<16 | '4'<<24
	MJPEG  PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	JPEG   PixelFormat = 'J' | 'P'<<8 | 'E'<<16 | 'G'<<24
	H264   PixelFormat = 'H' | '2'<<8 | '6'<<16 | '4'<<24
)

type Info struct {
	Format PixelFormat
	Name   string
}

var Known = []Info{
	{YUYV, "YUV 4:2:2"},
	{YUV420, "Planar YUV 4:2:0"},
	{YVU420, "Planar YVU 4:2:0"},
	{NV21, "Y/VU 4:2:0"},
	{RGB32, "32-bit A/XRGB 8-8-8-8"},
	{BGR32, "32-bit BGRA/X 8-8-8-8"},
	{MJPEG, "Motion-JPEG"},
	{JPEG, "JFIF JPEG"},
	{H264, "H.264"},
}

func (f PixelFormat) String() string {
	b := binary.LittleEndian.AppendUint32(nil, uint32(f))
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return fmt.Sprintf("0x%08x", uint32(f))
		}
	}
	return string(b)
}

func (f PixelFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *PixelFormat) UnmarshalText(b []byte) (err error) {
	*f, err = Parse(string(b))
	return
}

func (f PixelFormat) Name() string {
	for _, info := range Known {
		if info.Format == f {
			return info.Name
		}
	}
	return f.String()
}

// Parse accepts a fourcc string like "YUYV" or one of the short names
// used in config files ("yuyv", "mjpeg", "i420"...)
func Parse(s string) (PixelFormat, error) {
	switch s {
	case "yuyv", "yuyv422":
		return YUYV, nil
	case "i420", "yu12", "yuv420p":
		return YUV420, nil
	case "yv12":
		return YVU420, nil
	case "nv21":
		return NV21, nil
	case "rgb32", "argb":
		return RGB32, nil
	case "bgr32", "abgr":
		return BGR32, nil
	case "mjpeg", "mjpg":
		return MJPEG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	if len(s) == 4 {
		return PixelFormat(binary.LittleEndian.Uint32([]byte(s))), nil
	}
	return 0, fmt.Errorf("fourcc: unknown format %q", s)
}

func Align16(v int) int {
	return (v + 15) &^ 15
}

// BufferSize returns bytes needed for a w*h frame in format f
// or 0 if the format has no fixed size or dimensions are odd
func BufferSize(f PixelFormat, w, h int) int {
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return 0
	}

	switch f {
	case YVU420:
		// YV12 luma and chroma strides are 16-aligned
		return Align16(w)*h + Align16(w/2)*h
	case YUV420, NV21:
		return w * h * 3 / 2
	case RGB32, BGR32:
		return w * h * 4
	}

	return 0
}

// IsYUV420 reports planar or semi-planar 4:2:0 layouts
func IsYUV420(f PixelFormat) bool {
	return f == YUV420 || f == YVU420 || f == NV21
}
