package mjpeg

import (
	"bytes"
	"image"
	"image/jpeg"
)

// FixJPEG adds default Huffman tables if the frame has none
//
// for example, most UVC webcams send MJPEG frames without DHT
// and they can't be decoded by image/jpeg
func FixJPEG(b []byte) []byte {
	// skip non-JPEG
	if !IsJPEG(b) || HasHuffmanTables(b) {
		return b
	}
	if fixed, err := InsertHuffmanTables(b); err == nil {
		return fixed
	}
	return b
}

func Decode(b []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(FixJPEG(b)))
}

func Encode(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
