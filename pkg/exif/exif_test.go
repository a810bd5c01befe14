package exif

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeUndefined = 7
)

const (
	tagImageWidth      = 0x0100
	tagMake            = 0x010F
	tagOrientation     = 0x0112
	tagDateTime        = 0x0132
	tagJPEGOffset      = 0x0201
	tagJPEGLength      = 0x0202
	tagExifIFD         = 0x8769
	tagGPSIFD          = 0x8825
	tagFocalLength     = 0x920A
	tagPixelXDimension = 0xA002
	tagPixelYDimension = 0xA003

	tagGPSLatitudeRef  = 0x0001
	tagGPSLatitude     = 0x0002
	tagGPSLongitudeRef = 0x0003
	tagGPSAltitudeRef  = 0x0005
	tagGPSDateStamp    = 0x001D
)

type testEntry struct {
	typ   uint16
	count uint32
	value []byte // inline 4 bytes or pointed data
}

// readIFD returns entries and next offset, offsets are relative to TIFF start
func readIFD(t *testing.T, tiff []byte, offset uint32) (map[uint16]testEntry, uint32) {
	n := int(binary.LittleEndian.Uint16(tiff[offset:]))
	items := map[uint16]testEntry{}
	prev := -1
	for i := 0; i < n; i++ {
		b := tiff[int(offset)+2+12*i:]
		tag := binary.LittleEndian.Uint16(b)
		require.Greater(t, int(tag), prev, "tags must be sorted")
		prev = int(tag)

		e := testEntry{typ: binary.LittleEndian.Uint16(b[2:]), count: binary.LittleEndian.Uint32(b[4:])}
		size := int(e.count) * map[uint16]int{typeByte: 1, typeASCII: 1, typeShort: 2, typeLong: 4, typeRational: 8, typeUndefined: 1}[e.typ]
		if size <= 4 {
			e.value = b[8 : 8+size]
		} else {
			p := binary.LittleEndian.Uint32(b[8:])
			e.value = tiff[p : int(p)+size]
		}
		items[tag] = e
	}
	next := binary.LittleEndian.Uint32(tiff[int(offset)+2+12*n:])
	return items, next
}

func TestOrientation(t *testing.T) {
	require.Equal(t, uint16(1), Orientation(0))
	require.Equal(t, uint16(6), Orientation(90))
	require.Equal(t, uint16(3), Orientation(180))
	require.Equal(t, uint16(8), Orientation(270))
	require.Equal(t, uint16(1), Orientation(45))
}

func TestBuild(t *testing.T) {
	thumb := []byte{0xFF, 0xD8, 1, 2, 3, 0xFF, 0xD9}
	ts := time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)

	b, err := Build(&Info{
		Make:        "go2cam",
		Model:       "usb",
		Time:        ts,
		Width:       640,
		Height:      480,
		Orientation: 90,
		FocalLength: 3.04,
		GPS: &GPS{
			Latitude:         -33.5,
			Longitude:        151.25,
			Altitude:         -10,
			Timestamp:        ts,
			ProcessingMethod: "GPS",
		},
		Thumbnail: thumb,
	})
	require.Nil(t, err)
	require.Equal(t, header, string(b[:6]))

	tiff := b[6:]
	require.Equal(t, []byte{'I', 'I', 0x2A, 0, 8, 0, 0, 0}, tiff[:8])

	ifd0, next := readIFD(t, tiff, 8)
	require.Equal(t, uint16(typeLong), ifd0[tagImageWidth].typ)
	require.Equal(t, []byte{0x80, 0x02, 0, 0}, ifd0[tagImageWidth].value)
	require.Equal(t, []byte{6, 0}, ifd0[tagOrientation].value)
	require.Equal(t, "go2cam\x00", string(ifd0[tagMake].value))
	require.Equal(t, "2024:03:05 14:30:15\x00", string(ifd0[tagDateTime].value))

	sub, _ := readIFD(t, tiff, binary.LittleEndian.Uint32(ifd0[tagExifIFD].value))
	require.Equal(t, "0230", string(sub[tagExifVersion].value))
	require.Equal(t, []byte{0xE0, 0x01, 0, 0}, sub[tagPixelYDimension].value)
	focal := sub[tagFocalLength].value
	require.Equal(t, uint32(30400), binary.LittleEndian.Uint32(focal))
	require.Equal(t, uint32(10000), binary.LittleEndian.Uint32(focal[4:]))

	gps, _ := readIFD(t, tiff, binary.LittleEndian.Uint32(ifd0[tagGPSIFD].value))
	require.Equal(t, "S\x00", string(gps[tagGPSLatitudeRef].value))
	require.Equal(t, "E\x00", string(gps[tagGPSLongitudeRef].value))
	require.Equal(t, []byte{1}, gps[tagGPSAltitudeRef].value)
	lat := gps[tagGPSLatitude].value
	require.Equal(t, uint32(33), binary.LittleEndian.Uint32(lat))
	require.Equal(t, uint32(30), binary.LittleEndian.Uint32(lat[8:]))
	require.Equal(t, "ASCII\x00\x00\x00GPS", string(gps[tagGPSProcessingMethod].value))
	require.Equal(t, "2024:03:05\x00", string(gps[tagGPSDateStamp].value))

	require.NotZero(t, next)
	ifd1, _ := readIFD(t, tiff, next)
	offset := binary.LittleEndian.Uint32(ifd1[tagJPEGOffset].value)
	length := binary.LittleEndian.Uint32(ifd1[tagJPEGLength].value)
	require.Equal(t, thumb, tiff[offset:offset+length])
}

func TestBuildNoOptional(t *testing.T) {
	b, err := Build(&Info{Width: 2, Height: 2})
	require.Nil(t, err)

	ifd0, next := readIFD(t, b[6:], 8)
	require.Zero(t, next)
	require.NotContains(t, ifd0, uint16(tagGPSIFD))
	require.Contains(t, ifd0, uint16(tagExifIFD))
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(&Info{})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Build(&Info{Width: 640, Height: 480, Thumbnail: make([]byte, MaxAPP1)})
	require.ErrorIs(t, err, ErrTooLarge)
}
