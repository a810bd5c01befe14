package mjpeg

import (
	"image"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = byte(i)
	}
	for i := range img.Cb {
		img.Cb[i] = 100
		img.Cr[i] = 150
	}
	return img
}

func stripHuffmanTables(t *testing.T, b []byte) []byte {
	var out []byte
	err := walk(b, func(marker byte, i, n int) bool {
		if marker == markerSOS {
			out = append(out, b[i:]...)
			return false
		}
		if marker != markerDHT {
			out = append(out, b[i:i+n]...)
		}
		return true
	})
	require.Nil(t, err)
	return append([]byte{0xFF, markerSOI}, out...)
}

func TestDefaultDHT(t *testing.T) {
	// 4 tables: 4 class bytes, 4*16 counts, 12+162+12+162 values
	require.Len(t, defaultDHT, 4+4+64+348)
}

func TestFixJPEG(t *testing.T) {
	b, err := Encode(testImage(32, 16), 90)
	require.Nil(t, err)
	require.True(t, HasHuffmanTables(b))
	require.Equal(t, b, FixJPEG(b))

	stripped := stripHuffmanTables(t, b)
	require.False(t, HasHuffmanTables(stripped))

	img, err := Decode(stripped)
	require.Nil(t, err)
	require.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
}

func TestFixJPEGNotJPEG(t *testing.T) {
	b := []byte("not a jpeg at all")
	require.Equal(t, b, FixJPEG(b))
}

func TestInsertAPP1(t *testing.T) {
	b, err := Encode(testImage(16, 16), 80)
	require.Nil(t, err)

	payload := []byte("Exif\x00\x00test")
	b2, err := InsertAPP1(b, payload)
	require.Nil(t, err)
	require.Equal(t, []byte{0xFF, markerSOI, 0xFF, markerAPP1, 0, byte(2 + len(payload))}, b2[:6])
	require.Equal(t, payload, b2[6:6+len(payload)])

	_, err = Decode(b2)
	require.Nil(t, err)

	_, err = InsertAPP1(b, make([]byte, MaxSegment-1))
	require.NotNil(t, err)

	_, err = InsertAPP1([]byte{1, 2, 3, 4}, payload)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	wr := NewWriter(rec)

	n, err := wr.Write([]byte{1, 2, 3})
	require.Nil(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
	require.Equal(t, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 3\r\n\r\n\x01\x02\x03\r\n", rec.Body.String())
}
