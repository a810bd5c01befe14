package ioctl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIOR(t *testing.T) {
	// #define VIDIOC_QUERYCAP _IOR('V', 0, struct v4l2_capability)
	require.Equal(t, uint(0x80685600), IOR('V', 0, 104))
}

func TestIOW(t *testing.T) {
	// #define VIDIOC_STREAMON _IOW('V', 18, int)
	require.Equal(t, uint(0x40045612), IOW('V', 18, 4))
}

func TestIORW(t *testing.T) {
	// #define VIDIOC_REQBUFS _IOWR('V', 8, struct v4l2_requestbuffers)
	require.Equal(t, uint(0xc0145608), IORW('V', 8, 20))
	// #define VIDIOC_EXPBUF _IOWR('V', 16, struct v4l2_exportbuffer)
	require.Equal(t, uint(0xc0405610), IORW('V', 16, 64))
}

func TestStr(t *testing.T) {
	require.Equal(t, "uvcvideo", Str([]byte("uvcvideo\x00\x00\x00")))
	require.Equal(t, "abc", Str([]byte("abc")))
}
