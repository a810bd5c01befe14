package convert

import (
	"fmt"

	"github.com/AlexxIT/go2cam/pkg/exif"
	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/mjpeg"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
)

func (s *Settings) quality() int {
	if s == nil || s.JPEGQuality == 0 {
		return DefaultJPEGQuality
	}
	return s.JPEGQuality
}

func (s *Settings) thumbnailQuality() int {
	if s == nil || s.ThumbnailQuality == 0 {
		return s.quality()
	}
	return s.ThumbnailQuality
}

// EncodeJPEG compresses YUV420 frame and inserts APP1 with Exif and thumbnail
func EncodeJPEG(s *Settings, in frame.FrameBuffer) ([]byte, error) {
	if in.Format() != fourcc.YUV420 {
		return nil, fmt.Errorf("%w: jpeg from %s", ErrUnsupported, in.Format())
	}

	w, h := in.Width(), in.Height()
	size := fourcc.BufferSize(fourcc.YUV420, w, h)
	if size == 0 {
		return nil, fmt.Errorf("%w: jpeg size %dx%d", ErrUnsupported, w, h)
	}
	if len(in.Bytes()) < size {
		return nil, fmt.Errorf("%w: short yuv420 frame %d", ErrConversion, len(in.Bytes()))
	}

	quality := s.quality()
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("%w: jpeg quality %d", ErrConversion, quality)
	}

	info := &exif.Info{Width: w, Height: h}
	if s != nil {
		info.Make = s.Make
		info.Model = s.Model
		info.Time = s.Time
		info.Orientation = s.Orientation
		info.FocalLength = s.FocalLength
		info.GPS = s.GPS

		if s.ThumbnailWidth > 0 && s.ThumbnailHeight > 0 {
			thumb, err := thumbnail(s, in.Bytes(), w, h)
			if err != nil {
				return nil, err
			}
			info.Thumbnail = thumb
		}
	}

	app1, err := exif.Build(info)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	b, err := mjpeg.Encode(newYCbCr(in.Bytes(), w, h), quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	if b, err = mjpeg.InsertAPP1(b, app1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	return b, nil
}

func thumbnail(s *Settings, src []byte, w, h int) ([]byte, error) {
	tw, th := s.ThumbnailWidth, s.ThumbnailHeight
	if tw%2 != 0 || th%2 != 0 {
		return nil, fmt.Errorf("%w: thumbnail size %dx%d", ErrUnsupported, tw, th)
	}

	quality := s.thumbnailQuality()
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("%w: thumbnail quality %d", ErrConversion, quality)
	}

	buf := make([]byte, fourcc.BufferSize(fourcc.YUV420, tw, th))
	scaleI420(buf, tw, th, src, w, h)

	b, err := mjpeg.Encode(newYCbCr(buf, tw, th), quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return b, nil
}
