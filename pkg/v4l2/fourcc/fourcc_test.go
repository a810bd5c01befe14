package fourcc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	require.Equal(t, "YUYV", YUYV.String())
	require.Equal(t, "YU12", YUV420.String())
	require.Equal(t, "MJPG", MJPEG.String())
	require.Equal(t, "0x00000001", PixelFormat(1).String())
}

func TestParse(t *testing.T) {
	f, err := Parse("mjpeg")
	require.Nil(t, err)
	require.Equal(t, MJPEG, f)

	f, err = Parse("NV21")
	require.Nil(t, err)
	require.Equal(t, NV21, f)

	_, err = Parse("unknown")
	require.NotNil(t, err)
}

func TestBufferSize(t *testing.T) {
	tests := []struct {
		format PixelFormat
		w, h   int
		size   int
	}{
		{YUV420, 640, 480, 460800},
		{NV21, 640, 480, 460800},
		{YVU420, 640, 480, 640*480 + 320*480},
		{YVU420, 100, 50, 112*50 + 64*50},
		{RGB32, 320, 240, 307200},
		{BGR32, 2, 2, 16},
		{YUYV, 640, 480, 0},
		{JPEG, 640, 480, 0},
	}
	for _, test := range tests {
		t.Run(test.format.String(), func(t *testing.T) {
			require.Equal(t, test.size, BufferSize(test.format, test.w, test.h))
			// pure function
			require.Equal(t, test.size, BufferSize(test.format, test.w, test.h))
		})
	}
}

func TestBufferSizeOdd(t *testing.T) {
	for _, info := range Known {
		require.Zero(t, BufferSize(info.Format, 641, 480), info.Name)
		require.Zero(t, BufferSize(info.Format, 640, 481), info.Name)
	}
}

func TestBufferSizeEven(t *testing.T) {
	for _, f := range []PixelFormat{YUV420, YVU420, NV21, RGB32, BGR32} {
		for w := 2; w <= 64; w += 2 {
			for h := 2; h <= 64; h += 6 {
				require.Greater(t, BufferSize(f, w, h), 0)
			}
		}
	}
}

func TestText(t *testing.T) {
	b, err := MJPEG.MarshalText()
	require.Nil(t, err)
	require.Equal(t, "MJPG", string(b))

	var f PixelFormat
	require.Nil(t, f.UnmarshalText([]byte("yuyv")))
	require.Equal(t, YUYV, f)
	require.NotNil(t, f.UnmarshalText([]byte("unknown")))
}
