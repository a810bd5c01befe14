//go:build linux

package device

import (
	"testing"

	"github.com/AlexxIT/go2cam/pkg/v4l2/format"
	"github.com/AlexxIT/go2cam/pkg/v4l2/fourcc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// /dev/null opens like a device node, but every ioctl fails with ENOTTY

func TestConnectRefs(t *testing.T) {
	d := New("/dev/null", zerolog.Nop())
	require.False(t, d.Connected())

	c1, err := d.Connect()
	require.Nil(t, err)
	require.True(t, d.Connected())

	c2, err := d.Connect()
	require.Nil(t, err)

	require.Nil(t, c1.Close())
	require.Nil(t, c1.Close())
	require.True(t, d.Connected())

	require.Nil(t, c2.Close())
	require.False(t, d.Connected())

	require.ErrorIs(t, (&Connection{dev: d}).Close(), ErrNotConnected)

	// opens again after the last close
	c3, err := d.Connect()
	require.Nil(t, err)
	require.True(t, d.Connected())
	require.Nil(t, c3.Close())
}

func TestConnectMissing(t *testing.T) {
	d := New("/dev/video-missing", zerolog.Nop())
	_, err := d.Connect()
	require.NotNil(t, err)
	require.False(t, d.Connected())
}

func TestWithoutFormat(t *testing.T) {
	d := New("/dev/null", zerolog.Nop())

	conn, err := d.Connect()
	require.Nil(t, err)
	defer conn.Close()

	require.Nil(t, d.StreamOff())

	_, err = d.Dequeue()
	require.ErrorIs(t, err, ErrNotReady)

	_, _, err = d.RequestBuffers(4)
	require.ErrorIs(t, err, ErrNoFormat)

	_, err = d.ExportBuffer(0)
	require.ErrorIs(t, err, ErrNoFormat)

	require.ErrorIs(t, d.Enqueue(0), ErrNoFormat)
	require.ErrorIs(t, d.StreamOn(), ErrNoFormat)

	// rejected by the driver, nothing is negotiated
	require.NotNil(t, d.SetFormat(format.New(fourcc.YUYV, 640, 480)))
	require.ErrorIs(t, d.StreamOn(), ErrNoFormat)
}

func TestNotConnected(t *testing.T) {
	d := New("/dev/null", zerolog.Nop())

	_, err := d.Capability()
	require.ErrorIs(t, err, ErrNotConnected)

	conn, err := d.Connect()
	require.Nil(t, err)
	require.Nil(t, conn.Close())

	_, _, err = d.Format()
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = d.Control(0x00980900)
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = d.SetControl(0x00980900, 1)
	require.ErrorIs(t, err, ErrNotConnected)

	require.ErrorIs(t, d.SetFormat(format.New(fourcc.YUYV, 640, 480)), ErrNotConnected)
}
