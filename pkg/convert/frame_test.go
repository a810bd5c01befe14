package convert

import (
	"testing"

	"github.com/AlexxIT/go2cam/pkg/frame"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"github.com/stretchr/testify/require"
)

func TestCropRotateScale(t *testing.T) {
	f := NewFrame()
	require.Nil(t, f.SetSource(i420Frame(t, 8, 4, 1, 2), 90))
	require.Equal(t, 8, f.Width())
	require.Equal(t, 4, f.Height())

	// crop width 4*4/8 = 2 at margin 3, columns become rows
	y, u, _ := planes(f.Buffer().Data(), 8, 4)
	require.Equal(t, []byte{3, 3, 3, 3, 3, 3, 3, 3}, y[0:8])
	require.Equal(t, []byte{3, 3, 3, 3, 3, 3, 3, 3}, y[8:16])
	require.Equal(t, []byte{4, 4, 4, 4, 4, 4, 4, 4}, y[16:24])
	require.Equal(t, []byte{4, 4, 4, 4, 4, 4, 4, 4}, y[24:32])
	require.Equal(t, []byte{1, 1, 1, 1, 1, 1, 1, 1}, u)

	require.Nil(t, f.SetSource(i420Frame(t, 8, 4, 1, 2), 270))
	y, _, _ = planes(f.Buffer().Data(), 8, 4)
	require.Equal(t, byte(4), y[0])
	require.Equal(t, byte(3), y[31])
}

func TestCropRotateScalePortrait(t *testing.T) {
	f := NewFrame()
	require.Nil(t, f.SetSource(i420Frame(t, 640, 480, 1, 2), 90))

	// 480 wide, crop 480*480/640 = 360 tall
	require.Len(t, f.rotated, fourcc.BufferSize(fourcc.YUV420, 480, 360))
	require.Equal(t, 640, f.Width())
	require.Equal(t, 480, f.Height())

	out := frame.NewAllocated(480, 640, fourcc.YUV420)
	require.Nil(t, f.Convert(nil, out))
	require.Equal(t, 480, out.Width())
	require.Equal(t, 640, out.Height())
	require.Equal(t, fourcc.BufferSize(fourcc.YUV420, 480, 640), out.Size())

	_, u, v := planes(out.Bytes(), 480, 640)
	require.Equal(t, byte(1), u[0])
	require.Equal(t, byte(2), v[len(v)-1])
}

func TestCropRotateScaleErrors(t *testing.T) {
	f := NewFrame()
	require.ErrorIs(t, f.SetSource(i420Frame(t, 8, 4, 1, 2), 180), ErrUnsupported)
	require.ErrorIs(t, f.SetSource(i420Frame(t, 4, 8, 1, 2), 90), ErrConversion)
}

func TestFrameConvert(t *testing.T) {
	f := NewFrame()
	require.Nil(t, f.SetSource(i420Frame(t, 8, 4, 1, 2), 0))

	// same size
	out := frame.NewAllocated(8, 4, fourcc.NV21)
	require.Nil(t, f.Convert(nil, out))
	require.Equal(t, 8*4*3/2, out.Size())

	// scaled
	out = frame.NewAllocated(4, 2, fourcc.YUV420)
	require.Nil(t, f.Convert(nil, out))
	require.Equal(t, []byte{1, 3, 5, 7}, out.Bytes()[:4])

	// cached frame is not modified by scaling
	require.Equal(t, 8, f.Width())
}
