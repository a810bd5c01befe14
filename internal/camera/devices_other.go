//go:build !linux

package camera

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

var errUnsupportedPlatform = errors.New("camera: v4l2 is supported on linux only")

func openDevice(string, zerolog.Logger) (Driver, io.Closer, error) {
	return nil, nil, errUnsupportedPlatform
}

func apiV4L2(w http.ResponseWriter, r *http.Request) {
	http.Error(w, errUnsupportedPlatform.Error(), http.StatusNotImplemented)
}
