package convert

import (
	"bytes"
	"testing"

	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/mjpeg"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"github.com/stretchr/testify/require"
)

// i420Frame makes frame with luma equal to column index and flat chroma
func i420Frame(t *testing.T, w, h int, cb, cr byte) *frame.Allocated {
	f := frame.NewAllocated(w, h, fourcc.YUV420)
	require.Nil(t, f.SetSize(w*h*3/2))
	y, u, v := planes(f.Data(), w, h)
	for i := range y {
		y[i] = byte(i % w)
	}
	for i := range u {
		u[i] = cb
		v[i] = cr
	}
	return f
}

func TestSupportsConversion(t *testing.T) {
	require.True(t, SupportsConversion(fourcc.YUYV, fourcc.YUV420))
	require.True(t, SupportsConversion(fourcc.MJPEG, fourcc.YUV420))
	require.False(t, SupportsConversion(fourcc.YUYV, fourcc.JPEG))
	require.False(t, SupportsConversion(fourcc.H264, fourcc.YUV420))

	for _, to := range []fourcc.PixelFormat{
		fourcc.YUV420, fourcc.YVU420, fourcc.NV21, fourcc.RGB32, fourcc.BGR32, fourcc.JPEG,
	} {
		require.True(t, SupportsConversion(fourcc.YUV420, to), to.String())
	}
	require.False(t, SupportsConversion(fourcc.YUV420, fourcc.YUYV))
}

func TestCanonicalizeYUYV(t *testing.T) {
	src := frame.NewAllocated(4, 2, fourcc.YUYV)
	require.Nil(t, src.SetSize(16))
	copy(src.Data(), []byte{
		10, 100, 11, 200, 12, 50, 13, 60,
		20, 102, 21, 202, 22, 51, 23, 61,
	})

	dst := frame.NewAllocated(0, 0, 0)
	require.Nil(t, Canonicalize(src, dst))
	require.Equal(t, fourcc.YUV420, dst.Format())
	require.Equal(t, 12, dst.Size())
	require.Equal(t, []byte{
		10, 11, 12, 13, 20, 21, 22, 23, // Y
		101, 51, // U
		201, 61, // V
	}, dst.Bytes())
}

func TestCanonicalizeMJPEG(t *testing.T) {
	src := i420Frame(t, 16, 16, 128, 128)
	b, err := mjpeg.Encode(newYCbCr(src.Data(), 16, 16), 100)
	require.Nil(t, err)

	in := frame.NewAllocated(16, 16, fourcc.MJPEG)
	require.Nil(t, in.SetSize(len(b)))
	copy(in.Data(), b)

	dst := frame.NewAllocated(0, 0, 0)
	require.Nil(t, Canonicalize(in, dst))
	require.Equal(t, 16*16*3/2, dst.Size())

	y, _, _ := planes(dst.Data(), 16, 16)
	require.InDelta(t, 0, int(y[0]), 4)
	require.InDelta(t, 15, int(y[15]), 4)

	// wrong declared size
	in.SetFormat(32, 32, fourcc.MJPEG)
	require.ErrorIs(t, Canonicalize(in, dst), ErrConversion)
}

func TestCanonicalizeUnsupported(t *testing.T) {
	src := frame.NewAllocated(4, 4, fourcc.H264)
	require.ErrorIs(t, Canonicalize(src, frame.NewAllocated(0, 0, 0)), ErrUnsupported)

	src = frame.NewAllocated(5, 4, fourcc.YUYV)
	require.ErrorIs(t, Canonicalize(src, frame.NewAllocated(0, 0, 0)), ErrUnsupported)
}

func TestConvertYV12(t *testing.T) {
	in := i420Frame(t, 4, 2, 1, 2)
	out := frame.NewAllocated(4, 2, fourcc.YVU420)
	require.Nil(t, ConvertFormat(nil, in, out))

	// luma stride 16, chroma stride 16
	require.Equal(t, 16*2+16*2, out.Size())
	require.Equal(t, []byte{0, 1, 2, 3}, out.Data()[0:4])
	require.Equal(t, []byte{0, 1, 2, 3}, out.Data()[16:20])
	require.Equal(t, []byte{2, 2}, out.Data()[32:34]) // V
	require.Equal(t, []byte{1, 1}, out.Data()[48:50]) // U
}

func TestConvertNV21(t *testing.T) {
	in := i420Frame(t, 4, 2, 1, 2)
	out := frame.NewAllocated(4, 2, fourcc.NV21)
	require.Nil(t, ConvertFormat(nil, in, out))
	require.Equal(t, []byte{0, 1, 2, 3, 0, 1, 2, 3, 2, 1, 2, 1}, out.Bytes())
}

func TestConvertRGB(t *testing.T) {
	// pure red in BT.601
	in := i420Frame(t, 2, 2, 90, 240)
	y, _, _ := planes(in.Data(), 2, 2)
	for i := range y {
		y[i] = 81
	}

	bgr := frame.NewAllocated(2, 2, fourcc.BGR32)
	require.Nil(t, ConvertFormat(nil, in, bgr))
	require.Equal(t, 16, bgr.Size())
	require.Greater(t, bgr.Data()[0], byte(200)) // R
	require.Less(t, bgr.Data()[2], byte(50))     // B
	require.Equal(t, byte(255), bgr.Data()[3])

	rgb := frame.NewAllocated(2, 2, fourcc.RGB32)
	require.Nil(t, ConvertFormat(nil, in, rgb))
	require.Less(t, rgb.Data()[0], byte(50))     // B
	require.Greater(t, rgb.Data()[2], byte(200)) // R
}

func TestConvertIdentityAndErrors(t *testing.T) {
	in := i420Frame(t, 4, 2, 1, 2)
	out := frame.NewAllocated(4, 2, fourcc.YUV420)
	require.Nil(t, ConvertFormat(nil, in, out))
	require.Equal(t, in.Bytes(), out.Bytes())

	require.ErrorIs(t, ConvertFormat(nil, in, frame.NewAllocated(2, 2, fourcc.YUV420)), ErrConversion)
	require.ErrorIs(t, ConvertFormat(nil, in, frame.NewAllocated(4, 2, fourcc.YUYV)), ErrUnsupported)
}

func TestConvertJPEG(t *testing.T) {
	in := i420Frame(t, 64, 48, 128, 128)
	out := frame.NewAllocated(64, 48, fourcc.JPEG)

	s := &Settings{JPEGQuality: 90, ThumbnailWidth: 16, ThumbnailHeight: 12, Make: "go2cam", Orientation: 90}
	require.Nil(t, ConvertFormat(s, in, out))

	b := out.Bytes()
	require.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE1}, b[:4])
	require.True(t, bytes.Contains(b[:200], []byte("Exif\x00\x00")))

	img, err := mjpeg.Decode(b)
	require.Nil(t, err)
	require.Equal(t, 64, img.Bounds().Dx())
	require.Equal(t, 48, img.Bounds().Dy())

	s.ThumbnailWidth = 15
	require.ErrorIs(t, ConvertFormat(s, in, out), ErrUnsupported)

	s = &Settings{JPEGQuality: 101}
	require.ErrorIs(t, ConvertFormat(s, in, out), ErrConversion)
}

func TestEncodeJPEGOddSize(t *testing.T) {
	in := frame.NewAllocated(3, 2, fourcc.YUV420)
	require.Nil(t, in.SetSize(9))

	_, err := EncodeJPEG(nil, in)
	require.ErrorIs(t, err, ErrUnsupported)

	in = frame.NewAllocated(4, 2, fourcc.YUV420)
	require.Nil(t, in.SetSize(6))

	_, err = EncodeJPEG(nil, in)
	require.ErrorIs(t, err, ErrConversion)
}

func TestConvertJPEGCapacity(t *testing.T) {
	in := i420Frame(t, 64, 48, 128, 128)
	buf := make([]byte, 100)
	out := frame.NewExternal("h", 64, 48, fourcc.JPEG, len(buf), &staticLocker{buf: buf})
	require.Nil(t, out.Map())
	require.ErrorIs(t, ConvertFormat(nil, in, out), ErrConversion)
	require.Nil(t, out.Unmap())
}

type staticLocker struct {
	buf []byte
}

func (l *staticLocker) Lock(any, int, int, fourcc.PixelFormat) ([]byte, error) {
	return l.buf, nil
}

func (l *staticLocker) Unlock(any) error {
	return nil
}

func TestScale(t *testing.T) {
	in := i420Frame(t, 8, 4, 1, 2)
	out := frame.NewAllocated(0, 0, 0)
	require.Nil(t, Scale(in, out, 4, 2))
	require.Equal(t, 4*2*3/2, out.Size())

	y, u, v := planes(out.Data(), 4, 2)
	require.Equal(t, []byte{1, 3, 5, 7}, y[:4])
	require.Equal(t, []byte{1, 1}, u)
	require.Equal(t, []byte{2, 2}, v)

	require.ErrorIs(t, Scale(in, out, 3, 2), ErrUnsupported)
	require.ErrorIs(t, Scale(frame.NewAllocated(4, 4, fourcc.YUYV), out, 2, 2), ErrUnsupported)
}

func TestScaleSource(t *testing.T) {
	out := frame.NewAllocated(0, 0, 0)

	odd := frame.NewAllocated(5, 4, fourcc.YUV420)
	require.Nil(t, odd.SetSize(30))
	require.ErrorIs(t, Scale(odd, out, 4, 4), ErrUnsupported)

	short := frame.NewAllocated(8, 4, fourcc.YUV420)
	require.Nil(t, short.SetSize(8*4))
	require.ErrorIs(t, Scale(short, out, 4, 2), ErrConversion)
}

func TestCopy(t *testing.T) {
	in := i420Frame(t, 4, 2, 1, 2)
	out := frame.NewAllocated(4, 2, fourcc.YUV420)
	require.Nil(t, Copy(in, out))
	require.Equal(t, in.Bytes(), out.Bytes())

	require.ErrorIs(t, Copy(in, frame.NewAllocated(4, 2, fourcc.NV21)), ErrUnsupported)
}
