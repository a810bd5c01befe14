package convert

import (
	"errors"
	"fmt"
	"time"

	"github.com/AlexxIT/go2cam/pkg/exif"
	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/mjpeg"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
)

const DefaultJPEGQuality = 80

var (
	ErrUnsupported = errors.New("convert: unsupported conversion")
	ErrConversion  = errors.New("convert: conversion failed")
)

// QualifiedFormats are device formats the pipeline can capture from, by priority
var QualifiedFormats = []fourcc.PixelFormat{fourcc.YUYV, fourcc.MJPEG}

// Settings are per-capture options, zero values mean defaults
type Settings struct {
	JPEGQuality      int
	ThumbnailQuality int
	ThumbnailWidth   int
	ThumbnailHeight  int
	Orientation      int
	FocalLength      float64
	GPS              *exif.GPS
	Make             string
	Model            string
	Time             time.Time
}

func SupportsConversion(from, to fourcc.PixelFormat) bool {
	switch from {
	case fourcc.YUYV, fourcc.MJPEG:
		return to == fourcc.YUV420
	case fourcc.YUV420:
		switch to {
		case fourcc.YUV420, fourcc.YVU420, fourcc.NV21, fourcc.RGB32, fourcc.BGR32, fourcc.JPEG:
			return true
		}
	}
	return false
}

// Canonicalize converts a device frame to the YUV420 intermediate of the same size
func Canonicalize(src frame.FrameBuffer, dst *frame.Allocated) error {
	w, h := src.Width(), src.Height()
	size := fourcc.BufferSize(fourcc.YUV420, w, h)
	if size == 0 {
		return fmt.Errorf("%w: source size %dx%d", ErrUnsupported, w, h)
	}
	if err := dst.Reset(w, h, fourcc.YUV420, size); err != nil {
		return err
	}
	return ConvertFormat(nil, src, dst)
}

// ConvertFormat converts in to the format of out, sizes must be equal
func ConvertFormat(s *Settings, in, out frame.FrameBuffer) error {
	w, h := in.Width(), in.Height()
	if w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("%w: odd size %dx%d", ErrUnsupported, w, h)
	}
	if out.Width() != w || out.Height() != h {
		return fmt.Errorf("%w: size %dx%d to %dx%d", ErrConversion, w, h, out.Width(), out.Height())
	}
	if !SupportsConversion(in.Format(), out.Format()) {
		return fmt.Errorf("%w: %s to %s", ErrUnsupported, in.Format(), out.Format())
	}

	if out.Format() == fourcc.JPEG {
		b, err := EncodeJPEG(s, in)
		if err != nil {
			return err
		}
		if err = out.SetSize(len(b)); err != nil {
			return fmt.Errorf("%w: jpeg %d bytes: %w", ErrConversion, len(b), err)
		}
		copy(out.Data(), b)
		return nil
	}

	if err := out.SetSize(fourcc.BufferSize(out.Format(), w, h)); err != nil {
		return err
	}

	src, dst := in.Bytes(), out.Data()

	switch in.Format() {
	case fourcc.YUYV:
		if len(src) < w*h*2 {
			return fmt.Errorf("%w: short yuyv frame %d", ErrConversion, len(src))
		}
		yuyvToI420(dst, src, w, h)
		return nil

	case fourcc.MJPEG:
		img, err := mjpeg.Decode(src)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConversion, err)
		}
		if r := img.Bounds(); r.Dx() != w || r.Dy() != h {
			return fmt.Errorf("%w: mjpeg size %dx%d", ErrConversion, r.Dx(), r.Dy())
		}
		imageToI420(dst, img)
		return nil
	}

	if len(src) < w*h*3/2 {
		return fmt.Errorf("%w: short yuv420 frame %d", ErrConversion, len(src))
	}

	switch out.Format() {
	case fourcc.YUV420:
		copy(dst, src[:w*h*3/2])
	case fourcc.YVU420:
		i420ToYV12(dst, src, w, h)
	case fourcc.NV21:
		i420ToNV21(dst, src, w, h)
	case fourcc.BGR32:
		i420ToRGBA(dst, src, w, h, false)
	case fourcc.RGB32:
		i420ToRGBA(dst, src, w, h, true)
	}

	return nil
}

// Scale resizes YUV420 frame with nearest neighbour filter
func Scale(in frame.FrameBuffer, out *frame.Allocated, w, h int) error {
	if in.Format() != fourcc.YUV420 {
		return fmt.Errorf("%w: scale %s", ErrUnsupported, in.Format())
	}
	inSize := fourcc.BufferSize(fourcc.YUV420, in.Width(), in.Height())
	if inSize == 0 {
		return fmt.Errorf("%w: scale from %dx%d", ErrUnsupported, in.Width(), in.Height())
	}
	if len(in.Bytes()) < inSize {
		return fmt.Errorf("%w: short yuv420 frame %d", ErrConversion, len(in.Bytes()))
	}
	size := fourcc.BufferSize(fourcc.YUV420, w, h)
	if size == 0 {
		return fmt.Errorf("%w: scale to %dx%d", ErrUnsupported, w, h)
	}
	if err := out.Reset(w, h, fourcc.YUV420, size); err != nil {
		return err
	}
	scaleI420(out.Data(), w, h, in.Bytes(), in.Width(), in.Height())
	return nil
}

func scaleI420(dst []byte, dw, dh int, src []byte, sw, sh int) {
	dy, du, dv := planes(dst, dw, dh)
	sy, su, sv := planes(src, sw, sh)
	scalePlane(dy, dw, dh, sy, sw, sh)
	scalePlane(du, dw/2, dh/2, su, sw/2, sh/2)
	scalePlane(dv, dw/2, dh/2, sv, sw/2, sh/2)
}

// Copy moves used bytes of in to out, both must have the same format and size
func Copy(in, out frame.FrameBuffer) error {
	if in.Format() != out.Format() || in.Width() != out.Width() || in.Height() != out.Height() {
		return fmt.Errorf("%w: copy %s %dx%d to %s %dx%d", ErrUnsupported,
			in.Format(), in.Width(), in.Height(), out.Format(), out.Width(), out.Height())
	}
	if err := out.SetSize(in.Size()); err != nil {
		return err
	}
	copy(out.Data(), in.Bytes())
	return nil
}
