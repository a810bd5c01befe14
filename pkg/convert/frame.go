package convert

import (
	"fmt"

	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
)

// Frame holds the YUV420 copy of the last captured frame
// and the scratch buffers reused between captures
type Frame struct {
	yuv     *frame.Allocated
	scaled  *frame.Allocated
	rotated []byte
}

func NewFrame() *Frame {
	return &Frame{
		yuv:    frame.NewAllocated(0, 0, fourcc.YUV420),
		scaled: frame.NewAllocated(0, 0, fourcc.YUV420),
	}
}

func (f *Frame) Width() int  { return f.yuv.Width() }
func (f *Frame) Height() int { return f.yuv.Height() }

// Buffer returns the cached YUV420 frame
func (f *Frame) Buffer() frame.FrameBuffer {
	return f.yuv
}

// SetSource canonicalizes src and for rotate 90 or 270 applies CropRotateScale
func (f *Frame) SetSource(src frame.FrameBuffer, rotate int) error {
	if err := Canonicalize(src, f.yuv); err != nil {
		return err
	}
	if rotate > 0 {
		return f.CropRotateScale(rotate)
	}
	return nil
}

// Convert writes cached frame to out, scaling it first if sizes differ
func (f *Frame) Convert(s *Settings, out frame.FrameBuffer) error {
	in := f.yuv
	if out.Width() != in.Width() || out.Height() != in.Height() {
		if err := Scale(f.yuv, f.scaled, out.Width(), out.Height()); err != nil {
			return err
		}
		in = f.scaled
	}
	return ConvertFormat(s, in, out)
}

// CropRotateScale crops the centre of a wide frame to the portrait
// aspect, rotates it and scales back to the original size
func (f *Frame) CropRotateScale(degrees int) error {
	w, h := f.yuv.Width(), f.yuv.Height()
	if w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("%w: odd size %dx%d", ErrUnsupported, w, h)
	}
	if h > w {
		return fmt.Errorf("%w: tall frame %dx%d", ErrConversion, w, h)
	}
	if degrees != 90 && degrees != 270 {
		return fmt.Errorf("%w: rotation %d", ErrUnsupported, degrees)
	}

	cropW := h * h / w
	if cropW%2 != 0 {
		cropW++
	}
	margin := (w - cropW) / 2

	// rotated frame is h wide and cropW tall
	rw, rh := h, cropW
	size := fourcc.BufferSize(fourcc.YUV420, rw, rh)
	if cap(f.rotated) < size {
		f.rotated = make([]byte, size)
	}
	f.rotated = f.rotated[:size]

	sy, su, sv := planes(f.yuv.Data(), w, h)
	ry, ru, rv := planes(f.rotated, rw, rh)
	rotatePlane(ry, sy, w, margin, cropW, h, degrees)
	rotatePlane(ru, su, w/2, margin/2, cropW/2, h/2, degrees)
	rotatePlane(rv, sv, w/2, margin/2, cropW/2, h/2, degrees)

	scaleI420(f.yuv.Data(), w, h, f.rotated, rw, rh)
	return nil
}

// rotatePlane rotates the cw x ch region at column x0 of src by 90 or 270,
// dst is ch wide and cw tall
func rotatePlane(dst, src []byte, stride, x0, cw, ch, degrees int) {
	for y := 0; y < cw; y++ {
		for x := 0; x < ch; x++ {
			var i int
			if degrees == 90 {
				i = (ch-1-x)*stride + x0 + y
			} else {
				i = x*stride + x0 + cw - 1 - y
			}
			dst[y*ch+x] = src[i]
		}
	}
}
