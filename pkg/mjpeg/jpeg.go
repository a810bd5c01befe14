package mjpeg

import (
	"encoding/binary"
	"errors"
)

const (
	markerSOF  = 0xC0 // Start Of Frame (Baseline Sequential)
	markerDHT  = 0xC4 // Define Huffman Table
	markerSOI  = 0xD8 // Start Of Image
	markerEOI  = 0xD9 // End Of Image
	markerSOS  = 0xDA // Start Of Scan
	markerDQT  = 0xDB // Define Quantization Table
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1 // Exif
)

// MaxSegment is the payload limit of one marker segment (length field included)
const MaxSegment = 0xFFFF

var ErrInvalid = errors.New("mjpeg: invalid jpeg")

func IsJPEG(b []byte) bool {
	return len(b) >= 4 && b[0] == 0xFF && b[1] == markerSOI
}

// segment returns marker and full segment length (with 0xFF and marker) at i
func segment(b []byte, i int) (byte, int, error) {
	if i+4 > len(b) || b[i] != 0xFF {
		return 0, 0, ErrInvalid
	}
	marker := b[i+1]
	size := int(binary.BigEndian.Uint16(b[i+2:]))
	if size < 2 || i+2+size > len(b) {
		return 0, 0, ErrInvalid
	}
	return marker, 2 + size, nil
}

// walk calls fn for every header segment until SOS, SOS is included
func walk(b []byte, fn func(marker byte, i, n int) bool) error {
	if !IsJPEG(b) {
		return ErrInvalid
	}
	for i := 2; ; {
		marker, n, err := segment(b, i)
		if err != nil {
			return err
		}
		if !fn(marker, i, n) || marker == markerSOS {
			return nil
		}
		i += n
	}
}

// HasHuffmanTables reports if the header carries DHT before SOS
func HasHuffmanTables(b []byte) bool {
	var ok bool
	_ = walk(b, func(marker byte, _, _ int) bool {
		ok = marker == markerDHT
		return !ok
	})
	return ok
}

// InsertHuffmanTables puts default DHT right before SOS
func InsertHuffmanTables(b []byte) ([]byte, error) {
	sos := -1
	err := walk(b, func(marker byte, i, _ int) bool {
		if marker == markerSOS {
			sos = i
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if sos < 0 {
		return nil, ErrInvalid
	}

	buf := make([]byte, 0, len(b)+len(defaultDHT))
	buf = append(buf, b[:sos]...)
	buf = append(buf, defaultDHT...)
	buf = append(buf, b[sos:]...)
	return buf, nil
}

// InsertAPP1 puts APP1 segment with payload right after SOI
func InsertAPP1(b, payload []byte) ([]byte, error) {
	if !IsJPEG(b) {
		return nil, ErrInvalid
	}
	size := 2 + len(payload)
	if size > MaxSegment {
		return nil, errors.New("mjpeg: APP1 segment too large")
	}

	buf := make([]byte, 0, len(b)+2+size)
	buf = append(buf, 0xFF, markerSOI, 0xFF, markerAPP1, byte(size>>8), byte(size))
	buf = append(buf, payload...)
	buf = append(buf, b[2:]...)
	return buf, nil
}
