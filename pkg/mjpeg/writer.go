package mjpeg

import (
	"io"
	"net/http"
	"strconv"
)

const boundary = "frame"

// NewWriter wraps HTTP response into multipart MJPEG stream,
// every Write sends one JPEG part
func NewWriter(w http.ResponseWriter) io.Writer {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	return &writer{wr: w, buf: []byte(header)}
}

const header = "--" + boundary + "\r\nContent-Type: image/jpeg\r\nContent-Length: "

type writer struct {
	wr  http.ResponseWriter
	buf []byte
}

func (w *writer) Write(p []byte) (n int, err error) {
	w.buf = w.buf[:len(header)]
	w.buf = append(w.buf, strconv.Itoa(len(p))...)
	w.buf = append(w.buf, "\r\n\r\n"...)
	w.buf = append(w.buf, p...)
	w.buf = append(w.buf, "\r\n"...)

	// Chrome bug: mjpeg image always shows the second to last image
	// https://bugs.chromium.org/p/chromium/issues/detail?id=527446
	if _, err = w.wr.Write(w.buf); err != nil {
		return 0, err
	}

	if f, ok := w.wr.(http.Flusher); ok {
		f.Flush()
	}

	return len(p), nil
}
